package application

import (
	"context"
	"fmt"

	"github.com/ahrav/go-radqc/internal/domain"
	"github.com/ahrav/go-radqc/internal/ports"
)

// StageAdapter wraps a ports.Stage to implement the ports.Executable
// interface, bridging the gap between stage implementations and pipeline
// execution. Use StageAdapter when adding stages to pipelines, which
// require the Executable interface with its ID-based identity.
type StageAdapter struct {
	// stage is the wrapped stage that performs the actual transformation.
	stage ports.Stage
	// id is the unique identifier assigned to this adapter instance,
	// which may differ from the stage's own name.
	id string
}

var _ ports.Executable = (*StageAdapter)(nil)

// NewStageAdapter creates a new adapter that wraps the provided stage
// with the specified identifier, enabling the stage to participate in
// pipeline execution. The id parameter allows multiple instances of the
// same stage type to have distinct identities within a pipeline.
func NewStageAdapter(stage ports.Stage, id string) *StageAdapter {
	return &StageAdapter{stage: stage, id: id}
}

// Execute delegates to the wrapped stage's Execute method, maintaining
// the same state transformation semantics and error handling.
// Execute preserves the immutability contract by passing through the
// stage's copy-on-write state handling.
func (sa *StageAdapter) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	return sa.stage.Execute(ctx, state)
}

// ID returns the unique identifier assigned to this adapter instance,
// which is used for pipeline registration and error reporting.
func (sa *StageAdapter) ID() string { return sa.id }

// Stage returns the wrapped stage, allowing callers to access
// stage-specific methods such as Validate.
func (sa *StageAdapter) Stage() ports.Stage { return sa.stage }

// Validate checks the wrapped stage's configuration, wrapping any
// failure with the adapter's identifier for debugging.
func (sa *StageAdapter) Validate() error {
	if err := sa.stage.Validate(); err != nil {
		return fmt.Errorf("stage %s: %w", sa.id, err)
	}
	return nil
}
