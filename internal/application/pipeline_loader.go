package application

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-radqc/internal/ports"
)

// PipelineLoader provides YAML configuration parsing, validation, and
// caching for classification pipelines, transforming declarative YAML
// specifications into executable pipeline structures.
// Use PipelineLoader to load pipelines from files or readers while
// benefiting from SHA256-based caching and comprehensive validation.
type PipelineLoader struct {
	// validator performs struct field validation and custom validation
	// rules for pipeline configurations and their nested components.
	validator *validator.Validate
	// stageRegistry provides factory methods for creating stages based
	// on their type and configuration parameters.
	stageRegistry ports.StageRegistry
	// cache stores compiled pipelines indexed by SHA256 hash of the
	// normalized configuration to avoid recompiling identical inputs.
	// WARNING: Cached pipelines MUST NOT be mutated. Add should never
	// be called on a cached pipeline.
	cache map[string]*Pipeline
	// cacheMu provides thread-safe access to the cache map during
	// concurrent read and write operations.
	cacheMu sync.RWMutex
	// sf prevents duplicate pipeline compilation when multiple goroutines
	// request the same pipeline simultaneously.
	sf singleflight.Group
}

// NewPipelineLoader creates a new pipeline loader with validation
// capabilities and an empty cache, ready to load and compile pipelines.
// NewPipelineLoader registers custom validators for semantic validation
// beyond basic struct field validation and returns an error if validator
// registration fails.
func NewPipelineLoader(stageRegistry ports.StageRegistry) (*PipelineLoader, error) {
	v := validator.New()

	if err := v.RegisterValidation("semver", validateSemver); err != nil {
		return nil, fmt.Errorf("failed to register semver validator: %w", err)
	}

	return &PipelineLoader{
		validator:     v,
		stageRegistry: stageRegistry,
		cache:         make(map[string]*Pipeline),
	}, nil
}

// load is the common implementation for loading pipelines from byte data,
// utilizing singleflight to prevent duplicate compilation and SHA256-based
// caching for efficiency.
// WARNING: The returned pipeline is a pointer to a cached instance.
// Callers MUST NOT mutate the pipeline by calling Add.
func (pl *PipelineLoader) load(ctx context.Context, data []byte) (*Pipeline, error) {
	// Parse YAML first to normalize it before hashing.
	config, err := pl.parseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	hash, err := pl.calculateConfigHash(config)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}

	// Use singleflight to prevent multiple goroutines from compiling
	// the same pipeline simultaneously.
	v, err, _ := pl.sf.Do(hash, func() (any, error) {
		// Check cache inside singleflight to handle the race between the
		// cache check and singleflight group execution.
		if pipeline, ok := pl.getCachedPipeline(hash); ok {
			return pipeline, nil
		}

		if err := pl.validateConfig(config); err != nil {
			return nil, fmt.Errorf("validation failed: %w", err)
		}

		pipeline, err := pl.buildPipeline(ctx, config)
		if err != nil {
			return nil, fmt.Errorf("failed to build pipeline: %w", err)
		}

		pl.cachePipeline(hash, pipeline)

		return pipeline, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*Pipeline), nil
}

// LoadFromFile loads and compiles a classification pipeline from a YAML
// file, utilizing SHA256-based caching to avoid recompilation of identical
// files. LoadFromFile performs struct validation, semantic validation,
// and stage parameter validation.
// WARNING: The returned pipeline is a pointer to a cached instance.
// Callers MUST NOT mutate the pipeline by calling Add.
func (pl *PipelineLoader) LoadFromFile(ctx context.Context, path string) (*Pipeline, error) {
	// Clean the path to prevent directory traversal attacks.
	cleanPath := filepath.Clean(path)

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return pl.load(ctx, data)
}

// LoadFromReader loads and compiles a classification pipeline from an
// io.Reader, supporting any source that implements the Reader interface.
// LoadFromReader reads all data into memory, applies SHA256-based caching,
// and performs the same validation as LoadFromFile.
// WARNING: The returned pipeline is a pointer to a cached instance.
// Callers MUST NOT mutate the pipeline by calling Add.
func (pl *PipelineLoader) LoadFromReader(ctx context.Context, r io.Reader) (*Pipeline, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}

	return pl.load(ctx, data)
}

// parseYAML unmarshals YAML byte data into a structured PipelineConfig,
// preserving per-stage parameter flexibility.
// parseYAML uses strict decoding to detect unknown fields, preventing
// configuration typos from being silently ignored.
// parseYAML returns an error if YAML syntax is invalid, if unknown fields
// are present, or if the structure doesn't match the PipelineConfig schema.
func (pl *PipelineLoader) parseYAML(data []byte) (*PipelineConfig, error) {
	var config PipelineConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Strict mode - fail on unknown fields.

	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("YAML decode failed: %w", err)
	}
	return &config, nil
}

// validateConfig performs comprehensive validation on a parsed pipeline
// configuration, including both struct field validation and semantic
// validation of the stage list.
// validateConfig returns an error if any validation rule fails.
func (pl *PipelineLoader) validateConfig(config *PipelineConfig) error {
	if err := pl.validator.Struct(config); err != nil {
		return fmt.Errorf("struct validation failed: %w", err)
	}

	if err := pl.validateSemantics(config); err != nil {
		return fmt.Errorf("semantic validation failed: %w", err)
	}

	return nil
}

// validateSemantics performs domain-specific validation rules that cannot
// be expressed through struct tags: stage ID uniqueness and per-type
// parameter validation.
func (pl *PipelineLoader) validateSemantics(config *PipelineConfig) error {
	stageIDs := make(map[string]struct{}, len(config.Stages))

	for _, stage := range config.Stages {
		if _, exists := stageIDs[stage.ID]; exists {
			return fmt.Errorf("duplicate stage ID: %s", stage.ID)
		}
		stageIDs[stage.ID] = struct{}{}

		if err := ValidateStageParameters(stage.Type, stage.Parameters); err != nil {
			return fmt.Errorf("stage %s parameter validation failed: %w", stage.ID, err)
		}
	}

	return nil
}

// buildPipeline constructs an executable pipeline from a validated
// configuration, instantiating stages through the stage registry and
// wrapping them in adapters in declaration order.
// buildPipeline returns an error if stage creation or pipeline
// construction fails.
func (pl *PipelineLoader) buildPipeline(_ context.Context, config *PipelineConfig) (*Pipeline, error) {
	pipeline := NewPipeline(config.Metadata.Name)

	for _, stageConfig := range config.Stages {
		stage, err := pl.createStage(stageConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create stage %s: %w", stageConfig.ID, err)
		}

		executable := NewStageAdapter(stage, stageConfig.ID)
		if err := pipeline.Add(executable); err != nil {
			return nil, fmt.Errorf("failed to add stage to pipeline: %w", err)
		}
	}

	return pipeline, nil
}

// createStage instantiates a stage from its configuration, decoding the
// flexible YAML parameters and delegating to the stage registry for
// type-specific creation.
// createStage returns an error if parameter decoding or stage creation
// fails.
func (pl *PipelineLoader) createStage(config StageConfig) (ports.Stage, error) {
	// Convert yaml.Node parameters to map[string]any.
	var params map[string]any
	if err := config.Parameters.Decode(&params); err != nil {
		return nil, fmt.Errorf("failed to decode parameters: %w", err)
	}

	stage, err := pl.stageRegistry.CreateStage(config.Type, config.ID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create stage: %w", err)
	}

	return stage, nil
}

// calculateConfigHash computes the SHA256 hash of a normalized
// PipelineConfig for cache indexing, ensuring semantically identical
// configurations produce the same hash regardless of whitespace or key
// ordering differences.
// calculateConfigHash returns a hexadecimal string representation.
func (pl *PipelineLoader) calculateConfigHash(config *PipelineConfig) (string, error) {
	// Normalize the config by re-encoding it with consistent formatting.
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)

	if err := encoder.Encode(config); err != nil {
		return "", fmt.Errorf("failed to encode config for hashing: %w", err)
	}

	hash := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(hash[:]), nil
}

// getCachedPipeline attempts to retrieve a previously compiled pipeline
// from the cache using its SHA256 hash as the lookup key.
// getCachedPipeline returns the cached pipeline and true if found, or
// nil and false if no cached version exists.
// getCachedPipeline is safe for concurrent use.
func (pl *PipelineLoader) getCachedPipeline(hash string) (*Pipeline, bool) {
	pl.cacheMu.RLock()
	defer pl.cacheMu.RUnlock()

	pipeline, ok := pl.cache[hash]
	return pipeline, ok
}

// cachePipeline stores a compiled pipeline in the cache indexed by its
// configuration's SHA256 hash for future retrieval.
// cachePipeline is safe for concurrent use and will overwrite any
// existing entry with the same hash.
func (pl *PipelineLoader) cachePipeline(hash string, pipeline *Pipeline) {
	pl.cacheMu.Lock()
	defer pl.cacheMu.Unlock()

	pl.cache[hash] = pipeline
}

// ClearCache removes all cached pipelines and reinitializes the cache map,
// forcing subsequent loads to recompile from source.
// ClearCache is safe for concurrent use.
func (pl *PipelineLoader) ClearCache() {
	pl.cacheMu.Lock()
	defer pl.cacheMu.Unlock()

	pl.cache = make(map[string]*Pipeline)
}

// validateSemver validates that a string follows semantic versioning
// format (X.Y.Z where X, Y, Z are non-negative integers).
// validateSemver is a validator.Func registered with the loader's
// validator instance for use in struct tags.
func validateSemver(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	var major, minor, patch int
	n, err := fmt.Sscanf(value, "%d.%d.%d", &major, &minor, &patch)
	return err == nil && n == 3
}
