package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFile_PartialOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/custom.db
scoring:
  critical_bonus: 5.0
features:
  notifications: false
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Path != "/tmp/custom.db" {
		t.Errorf("database path not applied: %q", cfg.Database.Path)
	}
	if cfg.Scoring.CriticalBonus != 5.0 {
		t.Errorf("critical bonus not applied: %v", cfg.Scoring.CriticalBonus)
	}
	// Keys the file does not name keep their defaults.
	if cfg.Scoring.Direct != 2.0 {
		t.Errorf("expected default direct weight, got %v", cfg.Scoring.Direct)
	}
	if cfg.Features.Notifications {
		t.Error("notifications toggle not applied")
	}
	if !cfg.Features.Inference {
		t.Error("expected inference to stay enabled")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log level, got %q", cfg.LogLevel)
	}
}

func TestLoadFile_Malformed(t *testing.T) {
	path := writeConfig(t, "database: [not: a: mapping")
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Database.Path == "" {
		t.Error("expected a default database path")
	}
	if !cfg.Features.Notifications || !cfg.Features.TimeTracking {
		t.Error("expected features enabled by default")
	}
}
