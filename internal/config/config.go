// Package config handles scanner configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds all scanner settings.
type Config struct {
	Scan    ScanConfig    `yaml:"scan"`
	Export  ExportConfig  `yaml:"export"`
	Logging LoggingConfig `yaml:"logging"`
}

// ScanConfig holds capture timing and patch selection settings.
type ScanConfig struct {
	MaxDistance     float32       `yaml:"max_distance"`     // Meters from the camera
	WarmupDelay     time.Duration `yaml:"warmup_delay"`     // Before the session is re-armed
	CaptureDuration time.Duration `yaml:"capture_duration"` // Between re-arm and capture
}

// ExportConfig holds output file settings.
type ExportConfig struct {
	Dir            string `yaml:"dir"`
	ModelName      string `yaml:"model_name"`
	WorldSpace     bool   `yaml:"world_space"`      // Apply patch transforms to positions
	RejectEmptyPLY bool   `yaml:"reject_empty_ply"` // Fail instead of writing "element vertex 0"
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			MaxDistance:     3.0,
			WarmupDelay:     10 * time.Second,
			CaptureDuration: 30 * time.Second,
		},
		Export: ExportConfig{
			Dir:            "OBJ",
			ModelName:      "scannedHumanBody",
			WorldSpace:     false,
			RejectEmptyPLY: false,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate reports settings a scan cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Scan.MaxDistance < 0 {
		errs = append(errs, fmt.Errorf("scan.max_distance must not be negative, got %v", c.Scan.MaxDistance))
	}
	if c.Scan.WarmupDelay < 0 {
		errs = append(errs, fmt.Errorf("scan.warmup_delay must not be negative, got %v", c.Scan.WarmupDelay))
	}
	if c.Scan.CaptureDuration < 0 {
		errs = append(errs, fmt.Errorf("scan.capture_duration must not be negative, got %v", c.Scan.CaptureDuration))
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level))
	}
	if c.Export.ModelName == "" {
		errs = append(errs, errors.New("export.model_name must not be empty"))
	}
	return errors.Join(errs...)
}
