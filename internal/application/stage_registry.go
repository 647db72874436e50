package application

import (
	"fmt"
	"sync"

	"github.com/ahrav/go-radqc/infrastructure/stages"
	"github.com/ahrav/go-radqc/internal/ports"
)

// Stage type identifiers accepted by the registry and the pipeline loader.
const (
	// StageTypeMetricDeriver derives rate metrics from raw review counts.
	StageTypeMetricDeriver = "metric_deriver"
	// StageTypeExamCollapser collapses duplicate reviews of the same exam.
	StageTypeExamCollapser = "exam_collapser"
	// StageTypeProviderAggregator rolls exam records up to provider summaries.
	StageTypeProviderAggregator = "provider_aggregator"
	// StageTypeNormalizer fits and applies z-score normalization.
	StageTypeNormalizer = "normalizer"
	// StageTypeVolumeExpander replicates provider rows by exam volume.
	StageTypeVolumeExpander = "volume_expander"
	// StageTypeClusterEngine partitions providers into quality clusters.
	StageTypeClusterEngine = "cluster_engine"
)

// DefaultStageRegistry provides a thread-safe implementation of the
// StageRegistry interface with built-in support for every classification
// stage type. Use DefaultStageRegistry to create stages from declarative
// pipeline configuration or to register custom stage factories.
type DefaultStageRegistry struct {
	// factories maps stage type names to their corresponding factory
	// functions for dynamic stage creation.
	factories map[string]ports.StageFactory
	// mu provides thread-safe access to the factories map during
	// concurrent registration and creation operations.
	mu sync.RWMutex
}

var _ ports.StageRegistry = (*DefaultStageRegistry)(nil)

// NewStageRegistry creates a new stage registry with all built-in stage
// factories pre-registered, ready for immediate use in pipeline loading.
func NewStageRegistry() *DefaultStageRegistry {
	registry := &DefaultStageRegistry{factories: make(map[string]ports.StageFactory)}
	registry.registerBuiltinFactories()
	return registry
}

// registerBuiltinFactories registers factory functions for all built-in
// stage types. Each factory delegates to the stage's FromConfig
// constructor, which applies defaults before overlaying the provided
// configuration.
func (r *DefaultStageRegistry) registerBuiltinFactories() {
	r.factories[StageTypeMetricDeriver] = stages.NewMetricDeriverFromConfig
	r.factories[StageTypeExamCollapser] = stages.NewExamCollapserFromConfig
	r.factories[StageTypeProviderAggregator] = stages.NewProviderAggregatorFromConfig
	r.factories[StageTypeNormalizer] = stages.NewNormalizerFromConfig
	r.factories[StageTypeVolumeExpander] = stages.NewVolumeExpanderFromConfig
	r.factories[StageTypeClusterEngine] = stages.NewClusterEngineFromConfig
}

// CreateStage instantiates a new stage of the specified type with the
// given identifier and configuration parameters.
// CreateStage returns an error if the stage type is not supported, the
// ID is empty, or if stage creation fails due to invalid configuration.
func (r *DefaultStageRegistry) CreateStage(stageType, id string, config map[string]any) (ports.Stage, error) {
	r.mu.RLock()
	factory, exists := r.factories[stageType]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported stage type: %s", stageType)
	}

	if id == "" {
		return nil, fmt.Errorf("stage ID cannot be empty")
	}

	if config == nil {
		config = make(map[string]any)
	}

	stage, err := factory(id, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create stage %s of type %s: %w", id, stageType, err)
	}

	return stage, nil
}

// RegisterStageFactory registers a custom factory function for the
// specified stage type, replacing any existing registration.
// RegisterStageFactory returns an error if the stage type is empty
// or the factory function is nil.
func (r *DefaultStageRegistry) RegisterStageFactory(stageType string, factory ports.StageFactory) error {
	if stageType == "" {
		return fmt.Errorf("stage type cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[stageType] = factory
	return nil
}

// GetSupportedTypes returns a list of all currently registered stage
// types that this registry can create.
// The returned slice is a snapshot and is safe to modify.
func (r *DefaultStageRegistry) GetSupportedTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for stageType := range r.factories {
		types = append(types, stageType)
	}
	return types
}
