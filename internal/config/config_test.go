package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "telegram:\n  token: \"123:abc\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Telegram.Token != "123:abc" {
		t.Errorf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Logger.Level != "info" {
		t.Errorf("default log level = %q, want info", cfg.Logger.Level)
	}
	if cfg.Broadcast.MaxParallel != 4 {
		t.Errorf("default max_parallel = %d, want 4", cfg.Broadcast.MaxParallel)
	}
	if cfg.Wizard.SessionTTL != 30*time.Minute {
		t.Errorf("default session_ttl = %v, want 30m", cfg.Wizard.SessionTTL)
	}
	if task, ok := cfg.Scheduler.Tasks["sql_maintenance"]; !ok || !task.Enabled || task.Schedule == "" {
		t.Errorf("sql_maintenance task not configured by default: %+v", cfg.Scheduler.Tasks)
	}
	if task, ok := cfg.Scheduler.Tasks["session_sweep"]; !ok || !task.Enabled {
		t.Errorf("session_sweep task not configured by default: %+v", cfg.Scheduler.Tasks)
	}
	if cfg.Messages.RideNotFound == "" || cfg.Messages.GeneralError == "" {
		t.Error("default messages missing")
	}
	if !strings.Contains(cfg.Messages.RideCancelledFmt, "%d") {
		t.Errorf("ride_cancelled_fmt must carry a count verb: %q", cfg.Messages.RideCancelledFmt)
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, strings.Join([]string{
		"telegram:",
		"  token: \"123:abc\"",
		"logger:",
		"  level: debug",
		"  json: false",
		"broadcast:",
		"  max_parallel: 2",
		"wizard:",
		"  session_ttl: 2h",
		"scheduler:",
		"  tasks:",
		"    sql_maintenance:",
		"      enabled: false",
	}, "\n"))

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Logger.Level != "debug" || cfg.Logger.JSON {
		t.Errorf("logger overrides lost: %+v", cfg.Logger)
	}
	if cfg.Broadcast.MaxParallel != 2 {
		t.Errorf("max_parallel = %d, want 2", cfg.Broadcast.MaxParallel)
	}
	if cfg.Wizard.SessionTTL != 2*time.Hour {
		t.Errorf("session_ttl = %v, want 2h", cfg.Wizard.SessionTTL)
	}
	if cfg.Scheduler.Tasks["sql_maintenance"].Enabled {
		t.Error("task disable override lost")
	}
}

func TestLoadTokenFromEnv(t *testing.T) {
	t.Setenv("BOT_TELEGRAM_TOKEN", "456:def")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Telegram.Token != "456:def" {
		t.Errorf("token = %q, want the env value", cfg.Telegram.Token)
	}
}

func TestLoadMissingToken(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected validation error without a token")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "unknown log level",
			content: "telegram:\n  token: \"123:abc\"\nlogger:\n  level: verbose\n",
		},
		{
			name:    "max_parallel out of range",
			content: "telegram:\n  token: \"123:abc\"\nbroadcast:\n  max_parallel: 64\n",
		},
		{
			name:    "session_ttl too short",
			content: "telegram:\n  token: \"123:abc\"\nwizard:\n  session_ttl: 5s\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if _, err := Load(writeConfig(t, tc.content)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
