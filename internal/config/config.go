package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

const DefaultConfigFileName = "taskmanager.yaml"

// Config keeps runtime settings for the task manager.
type Config struct {
	TelegramToken string `yaml:"telegram_token"`
	// ChatID pins the bot to a single private chat. Zero accepts the chat
	// that sends /start.
	ChatID      int64  `yaml:"chat_id"`
	DatabaseURL string `yaml:"database_url"`
	Timezone    string `yaml:"timezone"`
	// RecurrenceTime is the HH:MM at which the daily recurrence pass runs.
	RecurrenceTime string        `yaml:"recurrence_time"`
	ReportInterval time.Duration `yaml:"report_interval"`
	ReminderPoll   time.Duration `yaml:"reminder_poll"`
	// SendRate caps outbound Telegram messages per second.
	SendRate int       `yaml:"send_rate"`
	Log      LogConfig `yaml:"log"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// Format is "console" or "json".
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		DatabaseURL:    "task_manager.db",
		RecurrenceTime: "00:05",
		ReportInterval: 12 * time.Hour,
		ReminderPoll:   time.Minute,
		SendRate:       5,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the optional YAML file at path and then applies environment
// variables on top. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.validate()
}

func applyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")); v != "" {
		cfg.TelegramToken = v
	}
	if v := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.ChatID = id
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("TASKMANAGER_TIMEZONE")); v != "" {
		cfg.Timezone = v
	}
	if interval := parseInterval(strings.TrimSpace(os.Getenv("REPORT_INTERVAL_HOURS"))); interval > 0 {
		cfg.ReportInterval = interval
	}
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.Log.Level = v
	}
	return nil
}

func (c Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("database_url is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.ReminderPoll < time.Second {
		return fmt.Errorf("reminder_poll must be at least 1s, got %s", c.ReminderPoll)
	}
	if c.SendRate <= 0 {
		return fmt.Errorf("send_rate must be positive, got %d", c.SendRate)
	}
	return nil
}

// RequireTelegram checks the settings the bot cannot start without.
func (c Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	return nil
}

// Location resolves Timezone; empty means the process local zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func parseInterval(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours <= 0 {
		return 0
	}
	return hours
}
