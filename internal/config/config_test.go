package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "availd.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Run("missing file falls back to defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.Listen != ":8080" || cfg.Storage != "file" || cfg.HoldTTLHours != 48 {
			t.Fatalf("unexpected defaults: %+v", cfg)
		}
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := writeConfig(t, `
listen: ":9090"
data_dir: /var/lib/availd
storage: badger
hold_ttl_hours: 24
autopilot:
  enabled: true
  max_nights: 21
`)
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.Listen != ":9090" || cfg.DataDir != "/var/lib/availd" || cfg.Storage != "badger" {
			t.Fatalf("unexpected config: %+v", cfg)
		}
		if cfg.HoldTTL() != 24*time.Hour {
			t.Fatalf("unexpected ttl: %v", cfg.HoldTTL())
		}
		if !cfg.Autopilot.Enabled || cfg.Autopilot.MaxNights != 21 {
			t.Fatalf("autopilot not parsed: %+v", cfg.Autopilot)
		}
		// Unset autopilot fields keep their defaults.
		if cfg.Autopilot.MinDaysBeforeArrival != 2 {
			t.Fatalf("default min_days_before_arrival lost: %+v", cfg.Autopilot)
		}
	})

	t.Run("env wins over file", func(t *testing.T) {
		path := writeConfig(t, `listen: ":9090"`)
		t.Setenv("PORT", "7070")
		t.Setenv("DATA_DIR", "/tmp/availd-test")
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.Listen != ":7070" || cfg.DataDir != "/tmp/availd-test" {
			t.Fatalf("env override lost: %+v", cfg)
		}
	})

	t.Run("unknown storage backend rejected", func(t *testing.T) {
		path := writeConfig(t, `storage: redis`)
		if _, err := Load(path); err == nil {
			t.Fatalf("expected error for unknown backend")
		}
	})
}

func TestAutopilotForUnit(t *testing.T) {
	path := writeConfig(t, `
autopilot:
  enabled: true
  min_days_before_arrival: 2
  max_nights: 14
  allowed_sources: [direct, website]
units:
  penthouse:
    autopilot:
      enabled: false
  studio:
    autopilot:
      max_nights: 7
      test_mode: true
      test_mode_until: 2025-12-31T00:00:00Z
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	t.Run("unknown unit gets the global policy", func(t *testing.T) {
		p := cfg.AutopilotForUnit("a1")
		if !p.Enabled || p.MaxNights != 14 {
			t.Fatalf("unexpected policy: %+v", p)
		}
	})

	t.Run("override replaces only the set fields", func(t *testing.T) {
		p := cfg.AutopilotForUnit("studio")
		if p.MaxNights != 7 {
			t.Fatalf("max_nights override lost: %+v", p)
		}
		if !p.Enabled || p.MinDaysBeforeArrival != 2 || len(p.AllowedSources) != 2 {
			t.Fatalf("unset fields must keep global values: %+v", p)
		}
		if !p.TestMode || !p.TestModeActive(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)) {
			t.Fatalf("test window override lost: %+v", p)
		}
	})

	t.Run("disable override sticks", func(t *testing.T) {
		if p := cfg.AutopilotForUnit("penthouse"); p.Enabled {
			t.Fatalf("enabled override lost: %+v", p)
		}
	})
}
