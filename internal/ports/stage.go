// Package ports defines the core interfaces that form the contract between
// the domain/application layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the system testable.
package ports

import (
	"context"

	"github.com/ahrav/go-radqc/internal/domain"
)

// Stage represents the fundamental building block of the classification
// pipeline. Each Stage performs a specific transformation on the pipeline
// State, enabling composable and reusable processing logic.
// Stages should be stateless and thread-safe for concurrent execution.
type Stage interface {
	// Name returns a unique identifier for this stage.
	// The name is used for logging, debugging, and configuration.
	Name() string

	// Execute performs the stage's transformation on the provided State.
	// It returns a new State containing the results of the transformation.
	// The original State should not be modified (immutability principle).
	// Any errors during execution should be returned rather than panicking.
	//
	// The context parameter allows for cancellation and deadline propagation.
	// Stages should respect context cancellation and return promptly.
	//
	// Example:
	//
	//	newState, err := stage.Execute(ctx, state)
	//	if err != nil {
	//	    return nil, fmt.Errorf("stage %s failed: %w", stage.Name(), err)
	//	}
	Execute(ctx context.Context, state domain.State) (domain.State, error)

	// Validate checks if the stage is properly configured and ready for
	// execution. This method should verify all required configuration.
	// It is typically called during pipeline construction or before execution.
	// Return nil if validation passes, or an error describing what is invalid.
	Validate() error
}

// StageFactory creates a Stage instance from its identifier and raw
// configuration parameters. Factories let the pipeline loader construct
// stages from declarative configuration without knowing concrete types.
type StageFactory func(id string, config map[string]any) (Stage, error)

// StageRegistry manages the mapping from stage type names to factories.
// Implementations must be safe for concurrent use.
type StageRegistry interface {
	// CreateStage instantiates a stage of the given type with the provided
	// identifier and configuration parameters.
	CreateStage(stageType, id string, config map[string]any) (Stage, error)

	// RegisterStageFactory registers a factory for a stage type, replacing
	// any existing registration for that type.
	RegisterStageFactory(stageType string, factory StageFactory) error

	// GetSupportedTypes returns the stage types this registry can create.
	GetSupportedTypes() []string
}
