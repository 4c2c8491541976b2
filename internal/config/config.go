// Package config loads the engine configuration from a YAML file with
// environment overrides for the knobs deploy scripts commonly set.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/viljemd-hub/channel-manager-sub000/internal/app"
)

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen"`

	// DataDir is the root of the per-unit segment files (or the badger
	// directory when Storage is "badger").
	DataDir string `yaml:"data_dir"`

	// Storage selects the store backend: "file" (default) or "badger".
	Storage string `yaml:"storage"`

	CORSOrigins []string `yaml:"cors_origins"`

	// HoldTTLHours is the default soft-hold TTL when the caller does
	// not supply one.
	HoldTTLHours int `yaml:"hold_ttl_hours"`

	// SweepCron is a cron-style schedule used only when the sweep runs
	// as a resident daemon; the usual deployment invokes one-shot
	// sweeps from system cron instead.
	SweepCron string `yaml:"sweep_cron"`

	// Autopilot is the global policy; Units may override it per unit.
	Autopilot app.AutopilotPolicy `yaml:"autopilot"`

	Units map[string]UnitConfig `yaml:"units"`
}

type UnitConfig struct {
	Autopilot *AutopilotOverride `yaml:"autopilot"`
}

// AutopilotOverride is a sparse per-unit policy: only set fields
// replace the global value.
type AutopilotOverride struct {
	Enabled              *bool      `yaml:"enabled"`
	Mode                 *string    `yaml:"mode"`
	MinDaysBeforeArrival *int       `yaml:"min_days_before_arrival"`
	MaxNights            *int       `yaml:"max_nights"`
	AllowedSources       []string   `yaml:"allowed_sources"`
	TestMode             *bool      `yaml:"test_mode"`
	TestModeUntil        *time.Time `yaml:"test_mode_until"`
}

func Default() *Config {
	return &Config{
		Listen:       ":8080",
		DataDir:      "data",
		Storage:      "file",
		HoldTTLHours: 48,
		SweepCron:    "17 * * * *",
		Autopilot: app.AutopilotPolicy{
			Enabled:              false,
			Mode:                 "auto_confirm_on_accept",
			MinDaysBeforeArrival: 2,
			MaxNights:            14,
			AllowedSources:       []string{"direct", "website", "internal"},
		},
	}
}

// Load reads path over the defaults. A missing file is not an error;
// the defaults plus environment overrides apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
			// fall through to defaults
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		c.Listen = ":" + v
	}
	if v := strings.TrimSpace(os.Getenv("DATA_DIR")); v != "" {
		c.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv("CORS_ORIGINS")); v != "" {
		c.CORSOrigins = splitCSV(v)
	}
}

func (c *Config) validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir is required")
	}
	switch c.Storage {
	case "", "file", "badger":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage)
	}
	if c.HoldTTLHours <= 0 {
		c.HoldTTLHours = 48
	}
	return nil
}

// HoldTTL is the configured default TTL as a duration.
func (c *Config) HoldTTL() time.Duration {
	return time.Duration(c.HoldTTLHours) * time.Hour
}

// AutopilotForUnit resolves the effective policy for one unit: the
// global policy with the unit's sparse override applied on top.
func (c *Config) AutopilotForUnit(unit string) app.AutopilotPolicy {
	policy := c.Autopilot
	uc, ok := c.Units[unit]
	if !ok || uc.Autopilot == nil {
		return policy
	}
	o := uc.Autopilot
	if o.Enabled != nil {
		policy.Enabled = *o.Enabled
	}
	if o.Mode != nil {
		policy.Mode = *o.Mode
	}
	if o.MinDaysBeforeArrival != nil {
		policy.MinDaysBeforeArrival = *o.MinDaysBeforeArrival
	}
	if o.MaxNights != nil {
		policy.MaxNights = *o.MaxNights
	}
	if o.AllowedSources != nil {
		policy.AllowedSources = o.AllowedSources
	}
	if o.TestMode != nil {
		policy.TestMode = *o.TestMode
	}
	if o.TestModeUntil != nil {
		policy.TestModeUntil = *o.TestModeUntil
	}
	return policy
}

func splitCSV(input string) []string {
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
