package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"task-manager/internal/config"
	"task-manager/internal/logging"
	"task-manager/internal/repository"
)

// Global flags.
var (
	flagConfig   string
	flagDB       string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "taskmanager",
	Short: "Personal task manager with recurring tasks and Telegram reminders",
	Long: `taskmanager keeps tasks in a local SQLite database, repeats daily, weekly and
monthly tasks, and talks to you through a Telegram bot. Run it without a
subcommand to start the bot.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", config.DefaultConfigFileName, "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path, overrides the config")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds what every subcommand opens.
type app struct {
	cfg  config.Config
	log  zerolog.Logger
	loc  *time.Location
	db   *gorm.DB
	repo *repository.TaskRepository
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if flagDB != "" {
		cfg.DatabaseURL = flagDB
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	return cfg, nil
}

func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := logging.New(cfg.Log)

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	db, err := repository.NewDB(cfg.DatabaseURL, log)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}

	return &app{
		cfg:  cfg,
		log:  log,
		loc:  loc,
		db:   db,
		repo: repository.NewTaskRepository(db),
	}, nil
}

func (a *app) Close() {
	sqlDB, err := a.db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		a.log.Warn().Err(err).Msg("close database")
	}
}

// parseDay reads a YYYY-MM-DD flag value; empty means now.
func parseDay(raw string, loc *time.Location) (time.Time, error) {
	if raw == "" {
		return time.Now().In(loc), nil
	}
	day, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q, expected YYYY-MM-DD", raw)
	}
	return day, nil
}
