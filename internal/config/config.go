// Package config defines process configuration and its loading order:
// built-in defaults, then an optional YAML file, then RADQC_-prefixed
// environment variables.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Config carries the process-level settings shared by every radqc command.
// Pipeline semantics (stage list, per-stage parameters) live in the pipeline
// configuration; Config only locates inputs and tunes the machinery around
// a run.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, or error.
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format" validate:"required,oneof=text json"`

	// DatabasePath locates the SQLite run store.
	DatabasePath string `koanf:"database_path" validate:"required"`

	// ReviewsPath locates the exam review CSV snapshot.
	ReviewsPath string `koanf:"reviews_path"`

	// EquipmentPath locates the optional equipment attribute CSV.
	EquipmentPath string `koanf:"equipment_path"`

	// SubspecialtyPath locates the optional subspecialty attribute CSV.
	SubspecialtyPath string `koanf:"subspecialty_path"`

	// PipelinePath locates an optional pipeline YAML. Empty selects the
	// built-in default pipeline.
	PipelinePath string `koanf:"pipeline_path"`

	// Seed seeds the cluster engine when the command line does not.
	Seed int64 `koanf:"seed"`

	// ReportFormat selects the run report rendering: table or csv.
	ReportFormat string `koanf:"report_format" validate:"required,oneof=table csv"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:     "info",
		LogFormat:    "text",
		DatabasePath: "radqc.db",
		Seed:         42,
		ReportFormat: "table",
	}
}

// Validate checks the configuration against its declared constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
