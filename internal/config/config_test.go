package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadSettingsMissingFileUsesDefaults(t *testing.T) {
	root := t.TempDir()
	t.Setenv("CONFIG_PATH", filepath.Join(root, "missing.yaml"))
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FILE", "")

	cfg, err := LoadSettings("")
	if err != nil {
		t.Fatalf("failed to load settings: %v", err)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("expected default level info, got %s", cfg.Logging.Level)
	}
	if cfg.Service.StaleAfterDuration() != 2*time.Minute {
		t.Fatalf("unexpected stale duration %v", cfg.Service.StaleAfterDuration())
	}
}

func TestLoadSettingsExplicitMissingFileFails(t *testing.T) {
	if _, err := LoadSettings(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit settings file")
	}
}

func TestLoadSettingsFromFileAndEnv(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "masterserver.yaml")
	data := "logging:\n  level: debug\n  format: json\nservice:\n  stale_after: 45s\n  prune_schedule: \"@every 10s\"\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("failed to write settings: %v", err)
	}

	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_FILE", "")

	cfg, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("failed to load settings: %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("expected env override warn, got %s", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json format, got %s", cfg.Logging.Format)
	}
	if cfg.Service.StaleAfterDuration() != 45*time.Second {
		t.Fatalf("expected 45s, got %v", cfg.Service.StaleAfterDuration())
	}
	if cfg.Service.ReadTimeoutDuration() != 15*time.Second {
		t.Fatalf("expected default read timeout, got %v", cfg.Service.ReadTimeoutDuration())
	}
}

func TestValidateRejectsBadSchedule(t *testing.T) {
	cfg := DefaultSettings()
	cfg.Service.PruneSchedule = "every now and then"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected invalid schedule error")
	}
}

func TestValidateRejectsNonPositiveDuration(t *testing.T) {
	cfg := DefaultSettings()
	cfg.Service.StaleAfter = "0s"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected invalid duration error")
	}
}
