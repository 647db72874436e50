package stages

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-radqc/internal/domain"
	"github.com/ahrav/go-radqc/internal/ports"
)

// VolumeExpanderStage materializes the volume-weighted clustering input: one
// row per exam, so a provider with forty exams occupies forty identical rows.
// This reproduces exam-volume weighting with clustering code that has no
// native weight support. The expanded rows feed clustering only; every other
// statistic keeps using the one-summary-per-provider view.
//
// Providers excluded by the normalizer carry no scaled vector and produce no
// rows. Row order follows summary order, so expansion is deterministic.
type VolumeExpanderStage struct {
	name   string
	config VolumeExpanderConfig
}

var _ ports.Stage = (*VolumeExpanderStage)(nil)

// VolumeExpanderConfig holds the configuration for a VolumeExpanderStage.
type VolumeExpanderConfig struct {
	// MaxRows caps the total number of expanded rows. Expansion grows with
	// total exam volume, not provider count; the cap guards against an
	// unexpectedly large batch exhausting memory. Zero means no cap.
	MaxRows int `yaml:"max_rows" json:"max_rows" validate:"min=0"`
}

// DefaultVolumeExpanderConfig returns a VolumeExpanderConfig with sensible defaults.
func DefaultVolumeExpanderConfig() VolumeExpanderConfig {
	return VolumeExpanderConfig{MaxRows: 0}
}

// NewVolumeExpanderStage creates a new VolumeExpanderStage with the given
// name and configuration.
// Returns an error if the name is empty or the configuration is invalid.
func NewVolumeExpanderStage(name string, config VolumeExpanderConfig) (*VolumeExpanderStage, error) {
	if name == "" {
		return nil, ErrEmptyStageName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &VolumeExpanderStage{name: name, config: config}, nil
}

// Name returns the unique identifier of this stage.
func (s *VolumeExpanderStage) Name() string { return s.name }

// Execute expands each clusterable provider into examCount identical rows.
// It reads domain.KeySummaries and domain.KeyNormalization and writes
// domain.KeyExpandedRows.
func (s *VolumeExpanderStage) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	summaries, ok := domain.Get(state, domain.KeySummaries)
	if !ok {
		return state, fmt.Errorf("provider summaries not found in state")
	}
	params, ok := domain.Get(state, domain.KeyNormalization)
	if !ok {
		return state, fmt.Errorf("normalization parameters not found in state")
	}

	total := 0
	for _, summary := range summaries {
		if summary.Scaled != nil {
			total += summary.ExamCount
		}
	}
	if s.config.MaxRows > 0 && total > s.config.MaxRows {
		return state, fmt.Errorf("expansion would produce %d rows, exceeding the cap of %d", total, s.config.MaxRows)
	}

	rows := make([]domain.ExpandedRow, 0, total)
	for _, summary := range summaries {
		if summary.Scaled == nil {
			continue
		}
		vector, err := featureVector(params, *summary.Scaled)
		if err != nil {
			return state, err
		}
		for i := 0; i < summary.ExamCount; i++ {
			rows = append(rows, domain.ExpandedRow{ProviderID: summary.ProviderID, Features: vector})
		}
	}

	return domain.With(state, domain.KeyExpandedRows, rows), nil
}

// featureVector builds a provider's scaled vector in the fitted feature
// order. The fitted parameters carry the authoritative feature list, so the
// vector layout always matches what the normalizer produced.
func featureVector(params domain.NormalizationParameters, features domain.ScaledFeatures) ([]float64, error) {
	vector := make([]float64, len(params.Scales))
	for i, scale := range params.Scales {
		spec, ok := domain.FeatureByName(scale.Feature)
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownFeature, scale.Feature)
		}
		vector[i] = spec.Scaled(features)
	}
	return vector, nil
}

// Validate checks if the stage is properly configured.
func (s *VolumeExpanderStage) Validate() error {
	if s.name == "" {
		return ErrEmptyStageName
	}
	if err := validate.Struct(s.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters updates the stage's configuration from YAML parameters.
func (s *VolumeExpanderStage) UnmarshalParameters(params yaml.Node) error {
	var config VolumeExpanderConfig
	if err := params.Decode(&config); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("parameter validation failed: %w", err)
	}
	s.config = config
	return nil
}

// NewVolumeExpanderFromConfig creates a VolumeExpanderStage from a configuration map.
// This constructor is used by the stage registry for dynamic stage creation.
func NewVolumeExpanderFromConfig(id string, config map[string]any) (ports.Stage, error) {
	data, err := yaml.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	cfg := DefaultVolumeExpanderConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return NewVolumeExpanderStage(id, cfg)
}
