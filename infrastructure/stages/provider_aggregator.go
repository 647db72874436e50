package stages

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-radqc/internal/domain"
	"github.com/ahrav/go-radqc/internal/ports"
)

// ProviderAggregatorStage rolls exam records up into one summary per
// provider. Scores aggregate by unweighted mean over the exams that carry
// one; rates aggregate by a mean weighted on each exam's own collapsed
// denominator, so a provider's rate equals its summed errors over its summed
// cases no matter how reviews were split across exams. An exam whose rate is
// undefined, or whose denominator collapsed to zero, contributes nothing to
// that rate.
//
// Summaries appear in first-seen provider order and leave the scaled feature
// and cluster slots empty for the downstream stages to fill.
type ProviderAggregatorStage struct {
	name   string
	config ProviderAggregatorConfig
}

var _ ports.Stage = (*ProviderAggregatorStage)(nil)

// ProviderAggregatorConfig holds the configuration for a
// ProviderAggregatorStage. Aggregation is fully determined by the exam
// records, so there is nothing to configure.
type ProviderAggregatorConfig struct{}

// DefaultProviderAggregatorConfig returns a ProviderAggregatorConfig with sensible defaults.
func DefaultProviderAggregatorConfig() ProviderAggregatorConfig {
	return ProviderAggregatorConfig{}
}

// NewProviderAggregatorStage creates a new ProviderAggregatorStage with the
// given name and configuration.
// Returns an error if the name is empty or the configuration is invalid.
func NewProviderAggregatorStage(name string, config ProviderAggregatorConfig) (*ProviderAggregatorStage, error) {
	if name == "" {
		return nil, ErrEmptyStageName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &ProviderAggregatorStage{name: name, config: config}, nil
}

// Name returns the unique identifier of this stage.
func (s *ProviderAggregatorStage) Name() string { return s.name }

// Execute aggregates the exam records in the state into provider summaries.
// It reads domain.KeyExamRecords and writes domain.KeySummaries.
func (s *ProviderAggregatorStage) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	records, ok := domain.Get(state, domain.KeyExamRecords)
	if !ok {
		return state, fmt.Errorf("exam records not found in state")
	}
	if len(records) == 0 {
		return state, ErrNoRecords
	}

	groups := make(map[string][]domain.ExamRecord)
	order := make([]string, 0, len(records))
	for _, record := range records {
		if _, seen := groups[record.ProviderID]; !seen {
			order = append(order, record.ProviderID)
		}
		groups[record.ProviderID] = append(groups[record.ProviderID], record)
	}

	summaries := make([]domain.ProviderSummary, 0, len(order))
	for _, providerID := range order {
		summaries = append(summaries, aggregateProvider(providerID, groups[providerID]))
	}

	return domain.With(state, domain.KeySummaries, summaries), nil
}

// aggregateProvider folds one provider's exam records into a summary.
func aggregateProvider(providerID string, records []domain.ExamRecord) domain.ProviderSummary {
	var (
		negatives, positives, totals, errors float64

		radPeer   domain.MeanAccumulator
		technical domain.MeanAccumulator

		fpr, fnr, errRate    domain.WeightedMeanAccumulator
		wFPR, wFNR, wErrRate domain.WeightedMeanAccumulator
	)

	for _, record := range records {
		negatives += record.NegativeCount
		positives += record.PositiveCount
		totals += record.TotalCount
		errors += record.TotalDiagnosticErrors

		radPeer.Add(record.RadPeerScore)
		technical.Add(record.TechnicalPerformanceScore)

		fpr.Add(record.FalsePositiveRate, record.NegativeCount)
		fnr.Add(record.FalseNegativeRate, record.PositiveCount)
		errRate.Add(record.ErrorRate, record.TotalCount)
		wFPR.Add(record.WeightedFalsePositiveRate, record.NegativeCount)
		wFNR.Add(record.WeightedFalseNegativeRate, record.PositiveCount)
		wErrRate.Add(record.WeightedErrorRate, record.TotalCount)
	}

	return domain.ProviderSummary{
		ProviderID:                providerID,
		ExamCount:                 len(records),
		SumNegativeCount:          negatives,
		SumPositiveCount:          positives,
		SumTotalCount:             totals,
		SumTotalDiagnosticErrors:  errors,
		RadPeerScore:              radPeer.Mean(),
		TechnicalPerformanceScore: technical.Mean(),
		FalsePositiveRate:         fpr.Mean(),
		FalseNegativeRate:         fnr.Mean(),
		ErrorRate:                 errRate.Mean(),
		WeightedFalsePositiveRate: wFPR.Mean(),
		WeightedFalseNegativeRate: wFNR.Mean(),
		WeightedErrorRate:         wErrRate.Mean(),
	}
}

// Validate checks if the stage is properly configured.
func (s *ProviderAggregatorStage) Validate() error {
	if s.name == "" {
		return ErrEmptyStageName
	}
	if err := validate.Struct(s.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters updates the stage's configuration from YAML parameters.
func (s *ProviderAggregatorStage) UnmarshalParameters(params yaml.Node) error {
	var config ProviderAggregatorConfig
	if err := params.Decode(&config); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("parameter validation failed: %w", err)
	}
	s.config = config
	return nil
}

// NewProviderAggregatorFromConfig creates a ProviderAggregatorStage from a configuration map.
// This constructor is used by the stage registry for dynamic stage creation.
func NewProviderAggregatorFromConfig(id string, config map[string]any) (ports.Stage, error) {
	data, err := yaml.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	cfg := DefaultProviderAggregatorConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return NewProviderAggregatorStage(id, cfg)
}
