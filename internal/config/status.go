package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/carstatus/internal/units"
)

// DefaultConfigPath is the path to the canonical status defaults file.
const DefaultConfigPath = "config/status.defaults.json"

// Built-in fallbacks used when a field is omitted from the JSON file.
const (
	DefaultMaxSpeedSignValidTime            = 5 * time.Minute
	DefaultOverspeedWarningAfterTrafficSign = 5 * time.Second
	DefaultOverspeedWarningInterval         = 10 * time.Second
	DefaultTimeToRenotifySameTrafficSign    = 20 * time.Second
	DefaultImageMaxSize                     = 640
	DefaultSpeedUnits                       = units.KPH
)

// StatusConfig holds the process-wide constants of the car status hub. It is
// loaded once at startup and never mutated afterwards.
type StatusConfig struct {
	// Speed advisory timings (duration strings like "5s")
	MaxSpeedSignValidTime            *string `json:"max_speed_sign_valid_time,omitempty"`
	OverspeedWarningAfterTrafficSign *string `json:"overspeed_warning_after_traffic_sign,omitempty"`
	OverspeedWarningInterval         *string `json:"overspeed_warning_interval,omitempty"`
	TimeToRenotifySameTrafficSign    *string `json:"time_to_renotify_same_traffic_sign,omitempty"`

	// Longest side of the processing frame, in pixels. <= 0 disables resizing.
	ImageMaxSize *int `json:"image_max_size,omitempty"`

	// Units used for car speed and speed-limit values.
	SpeedUnits *string `json:"speed_units,omitempty"`
}

func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }

// EmptyStatusConfig returns a StatusConfig with all fields set to nil, so
// every getter returns its built-in default.
func EmptyStatusConfig() *StatusConfig {
	return &StatusConfig{}
}

// DefaultStatusConfig returns a StatusConfig with every field populated from
// the built-in defaults.
func DefaultStatusConfig() *StatusConfig {
	return &StatusConfig{
		MaxSpeedSignValidTime:            ptrString(DefaultMaxSpeedSignValidTime.String()),
		OverspeedWarningAfterTrafficSign: ptrString(DefaultOverspeedWarningAfterTrafficSign.String()),
		OverspeedWarningInterval:         ptrString(DefaultOverspeedWarningInterval.String()),
		TimeToRenotifySameTrafficSign:    ptrString(DefaultTimeToRenotifySameTrafficSign.String()),
		ImageMaxSize:                     ptrInt(DefaultImageMaxSize),
		SpeedUnits:                       ptrString(DefaultSpeedUnits),
	}
}

// LoadStatusConfig loads a StatusConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted from
// the file fall back to the built-in defaults, so partial configs are safe.
func LoadStatusConfig(path string) (*StatusConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyStatusConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath.
// It searches the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *StatusConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadStatusConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *StatusConfig) Validate() error {
	durations := []struct {
		name  string
		value *string
	}{
		{"max_speed_sign_valid_time", c.MaxSpeedSignValidTime},
		{"overspeed_warning_after_traffic_sign", c.OverspeedWarningAfterTrafficSign},
		{"overspeed_warning_interval", c.OverspeedWarningInterval},
		{"time_to_renotify_same_traffic_sign", c.TimeToRenotifySameTrafficSign},
	}
	for _, d := range durations {
		if d.value == nil || *d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(*d.value)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", d.name, *d.value, err)
		}
		if parsed < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", d.name, *d.value)
		}
	}

	if c.SpeedUnits != nil && *c.SpeedUnits != "" && !units.IsValid(*c.SpeedUnits) {
		return fmt.Errorf("invalid speed_units '%s': must be one of %s", *c.SpeedUnits, units.GetValidUnitsString())
	}

	return nil
}

func durationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}

// GetMaxSpeedSignValidTime returns how long a speed limit stays active after
// its sign was last (re)armed.
func (c *StatusConfig) GetMaxSpeedSignValidTime() time.Duration {
	return durationOr(c.MaxSpeedSignValidTime, DefaultMaxSpeedSignValidTime)
}

// GetOverspeedWarningAfterTrafficSign returns the grace period after a sign
// before an overspeed warning may fire.
func (c *StatusConfig) GetOverspeedWarningAfterTrafficSign() time.Duration {
	return durationOr(c.OverspeedWarningAfterTrafficSign, DefaultOverspeedWarningAfterTrafficSign)
}

// GetOverspeedWarningInterval returns the overspeed re-notify cadence.
func (c *StatusConfig) GetOverspeedWarningInterval() time.Duration {
	return durationOr(c.OverspeedWarningInterval, DefaultOverspeedWarningInterval)
}

// GetTimeToRenotifySameTrafficSign returns the window after which a repeated
// identical sign re-arms the advisory.
func (c *StatusConfig) GetTimeToRenotifySameTrafficSign() time.Duration {
	return durationOr(c.TimeToRenotifySameTrafficSign, DefaultTimeToRenotifySameTrafficSign)
}

// GetImageMaxSize returns the image_max_size value or the default.
func (c *StatusConfig) GetImageMaxSize() int {
	if c.ImageMaxSize == nil {
		return DefaultImageMaxSize
	}
	return *c.ImageMaxSize
}

// GetSpeedUnits returns the speed_units value or the default.
func (c *StatusConfig) GetSpeedUnits() string {
	if c.SpeedUnits == nil || *c.SpeedUnits == "" {
		return DefaultSpeedUnits
	}
	return *c.SpeedUnits
}
