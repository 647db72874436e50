package stages

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-radqc/internal/domain"
	"github.com/ahrav/go-radqc/internal/ports"
)

// NormalizerStage z-scores the provider feature matrix column by column.
// Each feature's mean and sample standard deviation are fitted over the
// providers whose value is defined; a zero-spread column scales to zero for
// every provider rather than dividing by zero.
//
// Undefined values split by feature kind. A rate-derived feature that is
// undefined scales to exactly zero, placing the provider at the population
// mean, because an absent denominator is expected whenever a provider saw no
// cases of one polarity. A score-derived feature that is undefined is real
// missing data: under the strict policy it aborts the run, under the exclude
// policy the provider keeps a nil scaled vector, is dropped from clustering,
// and an integrity warning is recorded.
//
// The fitted parameters are published to the state so downstream consumers
// can map centroids back to raw units.
type NormalizerStage struct {
	name   string
	config NormalizerConfig
	specs  []domain.FeatureSpec
}

var _ ports.Stage = (*NormalizerStage)(nil)

// NormalizerConfig holds the configuration for a NormalizerStage.
type NormalizerConfig struct {
	// Features lists the feature names to fit and scale, in the order the
	// clustering vector will use. Every name must be a known feature.
	Features []string `yaml:"features" json:"features" validate:"min=1,dive,required"`

	// ScorePolicy selects how an undefined score-derived feature is
	// handled: "strict" aborts the run, "exclude" drops the provider from
	// clustering with a warning.
	ScorePolicy ScorePolicy `yaml:"score_policy" json:"score_policy" validate:"required,oneof=strict exclude"`
}

// DefaultNormalizerConfig returns a NormalizerConfig with sensible defaults:
// every canonical feature, strict score policy.
func DefaultNormalizerConfig() NormalizerConfig {
	return NormalizerConfig{
		Features:    domain.FeatureNames(),
		ScorePolicy: ScoreStrict,
	}
}

// NewNormalizerStage creates a new NormalizerStage with the given name and
// configuration.
// Returns an error if the name is empty or the configuration is invalid.
func NewNormalizerStage(name string, config NormalizerConfig) (*NormalizerStage, error) {
	if name == "" {
		return nil, ErrEmptyStageName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	specs, err := resolveFeatures(config.Features)
	if err != nil {
		return nil, err
	}
	return &NormalizerStage{name: name, config: config, specs: specs}, nil
}

// resolveFeatures maps configured feature names to their descriptors.
// Unknown or duplicated names are configuration errors; a pipeline must
// never run against a feature list it cannot honor.
func resolveFeatures(names []string) ([]domain.FeatureSpec, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: feature list is empty", domain.ErrInvalidConfiguration)
	}
	specs := make([]domain.FeatureSpec, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		spec, ok := domain.FeatureByName(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown feature %q", domain.ErrInvalidConfiguration, name)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate feature %q", domain.ErrInvalidConfiguration, name)
		}
		seen[name] = true
		specs = append(specs, spec)
	}
	return specs, nil
}

// Name returns the unique identifier of this stage.
func (s *NormalizerStage) Name() string { return s.name }

// Execute fits scaling parameters over the provider summaries and attaches
// a scaled feature vector to each summary. It reads domain.KeySummaries and
// writes the updated summaries plus domain.KeyNormalization.
func (s *NormalizerStage) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	summaries, ok := domain.Get(state, domain.KeySummaries)
	if !ok {
		return state, fmt.Errorf("provider summaries not found in state")
	}
	if len(summaries) == 0 {
		return state, ErrNoRecords
	}

	params := s.fit(summaries)

	scaled := make([]domain.ProviderSummary, len(summaries))
	var violations []domain.IntegrityViolation
	for i, summary := range summaries {
		features, excluded, err := s.scaleSummary(params, summary)
		if err != nil {
			return state, err
		}
		if excluded != nil {
			violations = append(violations, *excluded)
			summary.Scaled = nil
		} else {
			summary.Scaled = features
		}
		scaled[i] = summary
	}

	state = domain.With(state, domain.KeySummaries, scaled)
	state = domain.With(state, domain.KeyNormalization, params)
	return state.AddWarnings(violations...), nil
}

// fit computes per-feature mean and sample standard deviation over the
// providers whose value is defined.
func (s *NormalizerStage) fit(summaries []domain.ProviderSummary) domain.NormalizationParameters {
	scales := make([]domain.FeatureScale, 0, len(s.specs))
	for _, spec := range s.specs {
		values := make([]float64, 0, len(summaries))
		for _, summary := range summaries {
			if v, ok := spec.Raw(summary).Value(); ok {
				values = append(values, v)
			}
		}
		mean, stdDev := domain.MeanStdDev(values)
		scales = append(scales, domain.FeatureScale{Feature: spec.Name, Mean: mean, StdDev: stdDev})
	}
	return domain.NormalizationParameters{Scales: scales}
}

// scaleSummary builds one provider's scaled feature vector. It returns a
// violation instead of a vector when the provider must be excluded, and an
// error when an undefined score feature is fatal under the strict policy.
func (s *NormalizerStage) scaleSummary(params domain.NormalizationParameters, summary domain.ProviderSummary) (*domain.ScaledFeatures, *domain.IntegrityViolation, error) {
	var features domain.ScaledFeatures
	for _, spec := range s.specs {
		value, defined := spec.Raw(summary).Value()
		if !defined {
			if spec.Kind == domain.FeatureKindRate {
				// No denominator means no evidence either way; the
				// provider sits at the population mean for this feature.
				spec.SetScaled(&features, 0)
				continue
			}
			if s.config.ScorePolicy == ScoreExclude {
				return nil, &domain.IntegrityViolation{
					Kind:  domain.ViolationUndefinedScore,
					Key:   fmt.Sprintf("provider %s", summary.ProviderID),
					Field: spec.Name,
				}, nil
			}
			return nil, nil, fmt.Errorf("provider %s: feature %s: %w",
				summary.ProviderID, spec.Name, domain.ErrUndefinedValue)
		}

		z, err := params.Scale(spec.Name, value)
		if err != nil {
			return nil, nil, fmt.Errorf("scale feature: %w", err)
		}
		spec.SetScaled(&features, z)
	}
	return &features, nil, nil
}

// Validate checks if the stage is properly configured.
func (s *NormalizerStage) Validate() error {
	if s.name == "" {
		return ErrEmptyStageName
	}
	if err := validate.Struct(s.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if _, err := resolveFeatures(s.config.Features); err != nil {
		return err
	}
	return nil
}

// UnmarshalParameters updates the stage's configuration from YAML parameters.
func (s *NormalizerStage) UnmarshalParameters(params yaml.Node) error {
	config := DefaultNormalizerConfig()
	if err := params.Decode(&config); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("parameter validation failed: %w", err)
	}
	specs, err := resolveFeatures(config.Features)
	if err != nil {
		return err
	}
	s.config = config
	s.specs = specs
	return nil
}

// NewNormalizerFromConfig creates a NormalizerStage from a configuration map.
// This constructor is used by the stage registry for dynamic stage creation.
func NewNormalizerFromConfig(id string, config map[string]any) (ports.Stage, error) {
	data, err := yaml.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	cfg := DefaultNormalizerConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return NewNormalizerStage(id, cfg)
}
