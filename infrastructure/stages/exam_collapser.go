package stages

import (
	"context"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-radqc/internal/domain"
	"github.com/ahrav/go-radqc/internal/ports"
)

// ExamCollapserStage folds duplicate reviews of the same exam into a single
// exam record per (exam, provider) pair. Counts and scores collapse by
// arithmetic mean; rates collapse by a mean weighted on each review's own
// denominator, which keeps every collapsed rate equal to its summed error
// count over its summed case count. Reviews whose denominator is zero carry
// zero weight and drop out of the corresponding rate entirely.
//
// Duplicate reviews are expected to agree on the exam's descriptive
// attributes. When they do not, the first-seen value wins, the conflicting
// value is discarded, and an integrity violation is recorded once per
// (group, field) pair. String conflicts whose folded Levenshtein similarity
// meets the configured threshold are flagged as near matches so the report
// can separate likely transcription errors from genuinely conflicting data.
//
// Output order is deterministic: records appear in first-seen group order.
type ExamCollapserStage struct {
	name   string
	config ExamCollapserConfig
	caser  cases.Caser
}

var _ ports.Stage = (*ExamCollapserStage)(nil)

// ExamCollapserConfig holds the configuration for an ExamCollapserStage.
type ExamCollapserConfig struct {
	// NearMatchThreshold is the minimum normalized Levenshtein similarity
	// (0.0 to 1.0) for a conflicting string attribute to be classified as
	// a near match rather than a hard conflict.
	NearMatchThreshold float64 `yaml:"near_match_threshold" json:"near_match_threshold" validate:"gte=0,lte=1"`

	// CaseFold enables Unicode case folding before near-match comparison,
	// so "CHEST" and "chest" classify as a near match. Detection of the
	// conflict itself always compares exact values.
	CaseFold bool `yaml:"case_fold" json:"case_fold"`
}

// DefaultExamCollapserConfig returns an ExamCollapserConfig with sensible defaults.
func DefaultExamCollapserConfig() ExamCollapserConfig {
	return ExamCollapserConfig{
		NearMatchThreshold: 0.8,
		CaseFold:           true,
	}
}

// NewExamCollapserStage creates a new ExamCollapserStage with the given
// name and configuration.
// Returns an error if the name is empty or the configuration is invalid.
func NewExamCollapserStage(name string, config ExamCollapserConfig) (*ExamCollapserStage, error) {
	if name == "" {
		return nil, ErrEmptyStageName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &ExamCollapserStage{name: name, config: config, caser: cases.Fold()}, nil
}

// Name returns the unique identifier of this stage.
func (s *ExamCollapserStage) Name() string { return s.name }

// groupKey identifies one exam as read by one provider.
type groupKey struct {
	examID     string
	providerID string
}

// Execute collapses the derived reviews in the state into exam records.
// It reads domain.KeyDerivedReviews, writes domain.KeyExamRecords, and
// appends any attribute conflicts to the state's integrity warnings.
func (s *ExamCollapserStage) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	derived, ok := domain.Get(state, domain.KeyDerivedReviews)
	if !ok {
		return state, fmt.Errorf("derived reviews not found in state")
	}
	if len(derived) == 0 {
		return state, ErrNoReviews
	}

	// Bucket reviews by (exam, provider), preserving first-seen order so
	// repeated runs over the same input produce identical output.
	groups := make(map[groupKey][]domain.DerivedReview)
	order := make([]groupKey, 0, len(derived))
	for _, dr := range derived {
		key := groupKey{examID: dr.Review.ExamID, providerID: dr.Review.ProviderID}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], dr)
	}

	records := make([]domain.ExamRecord, 0, len(order))
	var violations []domain.IntegrityViolation
	for _, key := range order {
		record, conflicts := s.collapseGroup(key, groups[key])
		records = append(records, record)
		violations = append(violations, conflicts...)
	}

	return domain.With(state, domain.KeyExamRecords, records).AddWarnings(violations...), nil
}

// collapseGroup folds one (exam, provider) group into a single record and
// reports attribute conflicts against the group's first-seen review.
func (s *ExamCollapserStage) collapseGroup(key groupKey, group []domain.DerivedReview) (domain.ExamRecord, []domain.IntegrityViolation) {
	first := group[0].Review.Attributes
	violations := s.checkAttributes(key, first, group[1:])

	var (
		negatives, positives, totals, errors, weights float64

		radPeer   domain.MeanAccumulator
		technical domain.MeanAccumulator

		fpr, fnr, errRate    domain.WeightedMeanAccumulator
		wFPR, wFNR, wErrRate domain.WeightedMeanAccumulator
	)

	for _, dr := range group {
		m := dr.Metrics
		negatives += float64(m.NegativeCount)
		positives += float64(m.PositiveCount)
		totals += float64(m.TotalCount)
		errors += float64(dr.Review.TotalDiagnosticErrors)
		weights += m.SignificanceWeight

		if dr.Review.RadPeerScore != nil {
			radPeer.AddValue(*dr.Review.RadPeerScore)
		}
		if dr.Review.TechnicalPerformanceScore != nil {
			technical.AddValue(*dr.Review.TechnicalPerformanceScore)
		}

		fpr.Add(m.FalsePositiveRate, float64(m.NegativeCount))
		fnr.Add(m.FalseNegativeRate, float64(m.PositiveCount))
		errRate.Add(m.ErrorRate, float64(m.TotalCount))
		wFPR.Add(m.WeightedFalsePositiveRate, float64(m.NegativeCount))
		wFNR.Add(m.WeightedFalseNegativeRate, float64(m.PositiveCount))
		wErrRate.Add(m.WeightedErrorRate, float64(m.TotalCount))
	}

	n := float64(len(group))
	return domain.ExamRecord{
		ExamID:                    key.examID,
		ProviderID:                key.providerID,
		Attributes:                first,
		ReviewCount:               len(group),
		NegativeCount:             negatives / n,
		PositiveCount:             positives / n,
		TotalCount:                totals / n,
		TotalDiagnosticErrors:     errors / n,
		SignificanceWeight:        weights / n,
		RadPeerScore:              radPeer.Mean(),
		TechnicalPerformanceScore: technical.Mean(),
		FalsePositiveRate:         fpr.Mean(),
		FalseNegativeRate:         fnr.Mean(),
		ErrorRate:                 errRate.Mean(),
		WeightedFalsePositiveRate: wFPR.Mean(),
		WeightedFalseNegativeRate: wFNR.Mean(),
		WeightedErrorRate:         wErrRate.Mean(),
	}, violations
}

// checkAttributes compares later reviews against the group's first-seen
// attributes and records one violation per conflicting field.
func (s *ExamCollapserStage) checkAttributes(key groupKey, first domain.ExamAttributes, rest []domain.DerivedReview) []domain.IntegrityViolation {
	groupName := fmt.Sprintf("exam %s provider %s", key.examID, key.providerID)

	var violations []domain.IntegrityViolation
	flagged := make(map[string]bool, 3)
	for _, dr := range rest {
		attrs := dr.Review.Attributes

		if attrs.PatientSex != first.PatientSex && !flagged["patient_sex"] {
			flagged["patient_sex"] = true
			violations = append(violations, domain.IntegrityViolation{
				Kind:      domain.ViolationAttributeConflict,
				Key:       groupName,
				Field:     "patient_sex",
				FirstSeen: first.PatientSex,
				Conflict:  attrs.PatientSex,
				NearMatch: s.nearMatch(first.PatientSex, attrs.PatientSex),
			})
		}
		if attrs.PatientAge != first.PatientAge && !flagged["patient_age"] {
			flagged["patient_age"] = true
			diff := attrs.PatientAge - first.PatientAge
			if diff < 0 {
				diff = -diff
			}
			violations = append(violations, domain.IntegrityViolation{
				Kind:      domain.ViolationAttributeConflict,
				Key:       groupName,
				Field:     "patient_age",
				FirstSeen: strconv.Itoa(first.PatientAge),
				Conflict:  strconv.Itoa(attrs.PatientAge),
				NearMatch: diff <= 1,
			})
		}
		if attrs.BodyPart != first.BodyPart && !flagged["body_part"] {
			flagged["body_part"] = true
			violations = append(violations, domain.IntegrityViolation{
				Kind:      domain.ViolationAttributeConflict,
				Key:       groupName,
				Field:     "body_part",
				FirstSeen: first.BodyPart,
				Conflict:  attrs.BodyPart,
				NearMatch: s.nearMatch(first.BodyPart, attrs.BodyPart),
			})
		}
	}
	return violations
}

// nearMatch reports whether two conflicting strings are similar enough to
// suggest a transcription error rather than genuinely different data.
func (s *ExamCollapserStage) nearMatch(a, b string) bool {
	if s.config.CaseFold {
		a = s.caser.String(a)
		b = s.caser.String(b)
	}
	if a == b {
		return true
	}

	longer := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longer {
		longer = n
	}
	if longer == 0 {
		return true
	}

	distance := levenshtein.ComputeDistance(a, b)
	similarity := 1.0 - float64(distance)/float64(longer)
	return similarity >= s.config.NearMatchThreshold
}

// Validate checks if the stage is properly configured.
func (s *ExamCollapserStage) Validate() error {
	if s.name == "" {
		return ErrEmptyStageName
	}
	if err := validate.Struct(s.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters updates the stage's configuration from YAML parameters.
func (s *ExamCollapserStage) UnmarshalParameters(params yaml.Node) error {
	var config ExamCollapserConfig
	if err := params.Decode(&config); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("parameter validation failed: %w", err)
	}
	s.config = config
	return nil
}

// NewExamCollapserFromConfig creates an ExamCollapserStage from a configuration map.
// This constructor is used by the stage registry for dynamic stage creation.
func NewExamCollapserFromConfig(id string, config map[string]any) (ports.Stage, error) {
	data, err := yaml.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	cfg := DefaultExamCollapserConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return NewExamCollapserStage(id, cfg)
}
