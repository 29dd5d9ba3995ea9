package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"TELEGRAM_TOKEN", "TELEGRAM_CHAT_ID", "DATABASE_URL", "TASKMANAGER_TIMEZONE", "REPORT_INTERVAL_HOURS", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.DatabaseURL != "task_manager.db" {
		t.Fatalf("DatabaseURL = %q, want default", cfg.DatabaseURL)
	}
	if cfg.RecurrenceTime != "00:05" || cfg.ReminderPoll != time.Minute {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.RequireTelegram(); err == nil {
		t.Fatal("expected RequireTelegram to fail without a token")
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	data := []byte(`
telegram_token: from-file
chat_id: 42
database_url: data/tasks.db
timezone: UTC
report_interval: 6h
log:
  level: debug
  format: json
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TELEGRAM_TOKEN", "from-env")
	t.Setenv("REPORT_INTERVAL_HOURS", "3")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.TelegramToken != "from-env" {
		t.Fatalf("TelegramToken = %q, want from-env", cfg.TelegramToken)
	}
	if cfg.ChatID != 42 || cfg.DatabaseURL != "data/tasks.db" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.ReportInterval != 3*time.Hour {
		t.Fatalf("ReportInterval = %s, want 3h", cfg.ReportInterval)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("Log = %+v", cfg.Log)
	}
	loc, err := cfg.Location()
	if err != nil || loc != time.UTC {
		t.Fatalf("Location = %v, %v", loc, err)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("TASKMANAGER_TIMEZONE", "Mars/Olympus")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for unknown timezone")
	}

	clearEnv(t)
	t.Setenv("TELEGRAM_CHAT_ID", "abc")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for non-numeric chat id")
	}
}

func TestParseInterval(t *testing.T) {
	t.Parallel()
	if got := parseInterval("5"); got != 5*time.Hour {
		t.Fatalf("parseInterval(5) = %s", got)
	}
	for _, raw := range []string{"", "-1", "x"} {
		if got := parseInterval(raw); got != 0 {
			t.Fatalf("parseInterval(%q) = %s, want 0", raw, got)
		}
	}
}
