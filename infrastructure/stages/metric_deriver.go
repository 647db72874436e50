package stages

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-radqc/internal/domain"
	"github.com/ahrav/go-radqc/internal/ports"
)

// MetricDeriverStage computes per-review counts and rates from raw confusion
// counts. It is the first stage of the pipeline and is purely mechanical: a
// zero denominator yields an undefined rate, never an error, so a provider
// who saw no negative exams simply carries no false-positive evidence into
// the later stages.
//
// For each review it derives negativeCount (FP+TN), positiveCount (FN+TP),
// totalCount, the three rates FP/negative, FN/positive and
// totalErrors/total, and their significance-weighted variants. Weighting an
// undefined rate leaves it undefined; a missing significance score weights
// as zero.
type MetricDeriverStage struct {
	name   string
	config MetricDeriverConfig
}

var _ ports.Stage = (*MetricDeriverStage)(nil)

// MetricDeriverConfig holds the configuration for a MetricDeriverStage.
// The derivation is fully determined by the input counts, so there is
// nothing to configure; the type exists to keep the stage contract uniform.
type MetricDeriverConfig struct{}

// DefaultMetricDeriverConfig returns a MetricDeriverConfig with sensible defaults.
func DefaultMetricDeriverConfig() MetricDeriverConfig {
	return MetricDeriverConfig{}
}

// NewMetricDeriverStage creates a new MetricDeriverStage with the given
// name and configuration.
// Returns an error if the name is empty or the configuration is invalid.
func NewMetricDeriverStage(name string, config MetricDeriverConfig) (*MetricDeriverStage, error) {
	if name == "" {
		return nil, ErrEmptyStageName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &MetricDeriverStage{name: name, config: config}, nil
}

// Name returns the unique identifier of this stage.
func (s *MetricDeriverStage) Name() string { return s.name }

// Execute derives review-level metrics for every review in the state.
// It reads domain.KeyReviews and writes domain.KeyDerivedReviews; the input
// slice is left untouched.
func (s *MetricDeriverStage) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	reviews, ok := domain.Get(state, domain.KeyReviews)
	if !ok {
		return state, fmt.Errorf("reviews not found in state")
	}
	if len(reviews) == 0 {
		return state, ErrNoReviews
	}

	derived := make([]domain.DerivedReview, len(reviews))
	for i, review := range reviews {
		derived[i] = domain.DerivedReview{
			Review:  review,
			Metrics: deriveMetrics(review),
		}
	}

	return domain.With(state, domain.KeyDerivedReviews, derived), nil
}

// deriveMetrics computes the count and rate block for a single review.
func deriveMetrics(review domain.ExamReview) domain.ReviewMetrics {
	negative := review.FalsePositive + review.TrueNegative
	positive := review.FalseNegative + review.TruePositive
	total := negative + positive

	var significance float64
	if review.SignificanceOfErrors != nil {
		significance = *review.SignificanceOfErrors
	}

	fpr := domain.Ratio(float64(review.FalsePositive), float64(negative))
	fnr := domain.Ratio(float64(review.FalseNegative), float64(positive))
	errRate := domain.Ratio(float64(review.TotalDiagnosticErrors), float64(total))

	return domain.ReviewMetrics{
		NegativeCount:             negative,
		PositiveCount:             positive,
		TotalCount:                total,
		FalsePositiveRate:         fpr,
		FalseNegativeRate:         fnr,
		ErrorRate:                 errRate,
		SignificanceWeight:        significance,
		WeightedFalsePositiveRate: fpr.Mul(significance),
		WeightedFalseNegativeRate: fnr.Mul(significance),
		WeightedErrorRate:         errRate.Mul(significance),
	}
}

// Validate checks if the stage is properly configured.
func (s *MetricDeriverStage) Validate() error {
	if s.name == "" {
		return ErrEmptyStageName
	}
	if err := validate.Struct(s.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters updates the stage's configuration from YAML parameters.
func (s *MetricDeriverStage) UnmarshalParameters(params yaml.Node) error {
	var config MetricDeriverConfig
	if err := params.Decode(&config); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("parameter validation failed: %w", err)
	}
	s.config = config
	return nil
}

// NewMetricDeriverFromConfig creates a MetricDeriverStage from a configuration map.
// This constructor is used by the stage registry for dynamic stage creation.
func NewMetricDeriverFromConfig(id string, config map[string]any) (ports.Stage, error) {
	data, err := yaml.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	cfg := DefaultMetricDeriverConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return NewMetricDeriverStage(id, cfg)
}
