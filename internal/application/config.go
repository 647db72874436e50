package application

import (
	"gopkg.in/yaml.v3"
)

// PipelineConfig defines the complete specification for a classification
// pipeline and serves as the primary configuration entry point for the
// system. Use PipelineConfig to declare the stage sequence and per-stage
// parameters in YAML instead of wiring stages in code.
type PipelineConfig struct {
	// Version specifies the configuration schema version using semantic
	// versioning to ensure compatibility across system updates.
	Version string `yaml:"version" validate:"required,semver"`
	// Metadata contains descriptive information about the pipeline
	// including name, tags, and labels for organization and discovery.
	Metadata Metadata `yaml:"metadata" validate:"required"`
	// Stages lists the pipeline stages in execution order, each with its
	// own type and configuration parameters. State flows from each stage
	// to the next, so order matters.
	Stages []StageConfig `yaml:"stages" validate:"required,min=1,dive"`
}

// Metadata provides descriptive information about a pipeline to support
// organization, discovery, and operational management.
// Use Metadata to categorize pipelines and provide context for operators
// and automated systems that need to identify pipeline characteristics.
type Metadata struct {
	// Name is the human-readable identifier for this pipeline and must
	// be unique within the deployment scope. It is recorded with every
	// persisted run.
	Name string `yaml:"name" validate:"required,min=1,max=255"`
	// Description provides a detailed explanation of the pipeline's
	// purpose and intended use cases for documentation and discovery.
	Description string `yaml:"description" validate:"max=1000"`
	// Tags are categorical labels that enable filtering and grouping
	// of pipelines by functional domain or operational characteristics.
	Tags []string `yaml:"tags" validate:"max=20,dive,min=1,max=50"`
	// Labels are arbitrary key-value pairs that provide flexible metadata
	// for integration with external systems and custom categorization.
	Labels map[string]string `yaml:"labels" validate:"max=50"`
}

// StageConfig defines the specification for a single stage within a
// pipeline, including its type and type-specific parameters.
// Use StageConfig to declare atomic transformation steps that compose
// into the classification flow.
type StageConfig struct {
	// ID is the unique identifier for this stage within the pipeline
	// and must be alphanumeric for safe referencing in logs and errors.
	ID string `yaml:"id" validate:"required,alphanum,min=1,max=100"`
	// Type specifies the stage implementation to instantiate, determining
	// the available parameters and execution behavior.
	Type string `yaml:"type" validate:"required,oneof=metric_deriver exam_collapser provider_aggregator normalizer volume_expander cluster_engine"`
	// Parameters contains type-specific configuration as flexible YAML
	// that will be validated according to the stage type requirements.
	// Omitted parameters fall back to the stage's defaults.
	Parameters yaml.Node `yaml:"parameters"`
}
