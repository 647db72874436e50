// Package testutils provides test fixtures and data generators shared by the
// project's test suites and the generate command. The synthetic datasets are
// for development, demos, and tests only; real quality assessment requires
// real review data.
package testutils

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/ahrav/go-radqc/internal/domain"
)

// reviewerPool is the number of distinct reviewer identities drawn from.
const reviewerPool = 40

var (
	bodyParts        = []string{"chest", "abdomen", "head", "spine", "pelvis", "knee"}
	equipmentClasses = []string{"CT", "MRI", "XR", "US"}
	fieldStrengths   = []string{"1.5T", "3T"}
	subspecialties   = []string{"neuroradiology", "musculoskeletal", "body", "chest", "emergency"}
)

// DatasetConfig controls the shape of a generated review set.
type DatasetConfig struct {
	// Providers is the number of distinct providers to generate.
	Providers int

	// MinExams and MaxExams bound the number of exams drawn per provider.
	MinExams int
	MaxExams int

	// LowQualityFraction is the fraction of providers drawn from the
	// low-quality tier, rounded to the nearest provider.
	LowQualityFraction float64

	// DuplicateFraction is the fraction of exams that receive a second
	// review from another reviewer.
	DuplicateFraction float64

	// ConflictFraction is the fraction of duplicate reviews that disagree
	// with the first review on an exam attribute, planting the attribute
	// conflicts the collapser reports.
	ConflictFraction float64

	// MissingScoreFraction is the probability that each optional score is
	// left blank on a review.
	MissingScoreFraction float64

	// Separation scales the quality gap between the two tiers. 1 keeps the
	// tiers clearly separable; values toward zero blur them together.
	Separation float64
}

// DefaultDatasetConfig returns a dataset shape that clusters cleanly: a
// quarter of providers low quality, mild duplication, and full separation.
func DefaultDatasetConfig() DatasetConfig {
	return DatasetConfig{
		Providers:            12,
		MinExams:             20,
		MaxExams:             60,
		LowQualityFraction:   0.25,
		DuplicateFraction:    0.05,
		ConflictFraction:     0.2,
		MissingScoreFraction: 0.05,
		Separation:           1.0,
	}
}

// Validate checks the configuration bounds.
func (c DatasetConfig) Validate() error {
	if c.Providers < 2 {
		return fmt.Errorf("%w: providers must be at least 2", domain.ErrInvalidConfiguration)
	}
	if c.MinExams < 1 {
		return fmt.Errorf("%w: min exams must be at least 1", domain.ErrInvalidConfiguration)
	}
	if c.MaxExams < c.MinExams {
		return fmt.Errorf("%w: max exams must be at least min exams", domain.ErrInvalidConfiguration)
	}
	fractions := []struct {
		name  string
		value float64
	}{
		{"low quality fraction", c.LowQualityFraction},
		{"duplicate fraction", c.DuplicateFraction},
		{"conflict fraction", c.ConflictFraction},
		{"missing score fraction", c.MissingScoreFraction},
	}
	for _, f := range fractions {
		if f.value < 0 || f.value > 1 {
			return fmt.Errorf("%w: %s must be between 0 and 1", domain.ErrInvalidConfiguration, f.name)
		}
	}
	if c.Separation < 0 {
		return fmt.Errorf("%w: separation must be non-negative", domain.ErrInvalidConfiguration)
	}
	return nil
}

// Dataset is a generated review set together with its planted ground truth.
type Dataset struct {
	// Reviews holds every generated exam review, duplicates included.
	Reviews []domain.ExamReview

	// Profiles holds one profile per provider.
	Profiles []domain.ProviderProfile

	// LowQuality records which providers were drawn from the low-quality
	// tier, the ground truth a classifier should recover.
	LowQuality map[string]bool
}

// GenerateDataset produces a synthetic review set. Generation is fully
// deterministic for a fixed configuration and seed.
func GenerateDataset(cfg DatasetConfig, seed int64) (*Dataset, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(seed))

	lowCount := int(math.Round(float64(cfg.Providers) * cfg.LowQualityFraction))
	tiers := make([]bool, cfg.Providers)
	for i := 0; i < lowCount; i++ {
		tiers[i] = true
	}
	rng.Shuffle(len(tiers), func(i, j int) { tiers[i], tiers[j] = tiers[j], tiers[i] })

	dataset := &Dataset{LowQuality: make(map[string]bool, cfg.Providers)}
	examSeq := 0
	for p := 0; p < cfg.Providers; p++ {
		providerID := fmt.Sprintf("P%03d", p+1)
		dataset.LowQuality[providerID] = tiers[p]
		dataset.Profiles = append(dataset.Profiles, generateProfile(rng, providerID))

		params := tierParams(rng, tiers[p], cfg.Separation)
		exams := cfg.MinExams + rng.Intn(cfg.MaxExams-cfg.MinExams+1)
		for e := 0; e < exams; e++ {
			examSeq++
			examID := fmt.Sprintf("E%05d", examSeq)
			attrs := generateAttributes(rng)

			review := generateReview(rng, cfg, examID, providerID, attrs, params)
			dataset.Reviews = append(dataset.Reviews, review)

			if rng.Float64() < cfg.DuplicateFraction {
				dup := generateReview(rng, cfg, examID, providerID, attrs, params)
				if dup.ReviewerID == review.ReviewerID {
					dup.ReviewerID = nextReviewer(review.ReviewerID)
				}
				if rng.Float64() < cfg.ConflictFraction {
					dup.Attributes.BodyPart = conflictingBodyPart(rng, attrs.BodyPart)
				}
				dataset.Reviews = append(dataset.Reviews, dup)
			}
		}
	}
	return dataset, nil
}

// GenerateDatasetDefault generates with a time-based seed and returns the
// seed so the dataset can be regenerated.
func GenerateDatasetDefault(cfg DatasetConfig) (*Dataset, int64, error) {
	seed := time.Now().UnixNano()
	dataset, err := GenerateDataset(cfg, seed)
	return dataset, seed, err
}

// providerParams holds one provider's underlying quality characteristics.
// Every review of the provider is drawn from these rates.
type providerParams struct {
	fpRate       float64
	fnRate       float64
	otherErrRate float64
	radPeer      float64
	technical    float64
	significance float64
}

func tierParams(rng *rand.Rand, low bool, separation float64) providerParams {
	if low {
		return providerParams{
			fpRate:       0.03 + separation*(0.07+0.05*rng.Float64()),
			fnRate:       0.03 + separation*(0.07+0.05*rng.Float64()),
			otherErrRate: 0.01 + separation*0.04*rng.Float64(),
			radPeer:      1.8 + separation*(0.8+0.6*rng.Float64()),
			technical:    4.0 - separation*(0.8+0.5*rng.Float64()),
			significance: 1.5 + separation*0.8 + 0.3*rng.Float64(),
		}
	}
	return providerParams{
		fpRate:       0.005 + 0.02*rng.Float64(),
		fnRate:       0.005 + 0.02*rng.Float64(),
		otherErrRate: 0.005 + 0.01*rng.Float64(),
		radPeer:      1.0 + 0.6*rng.Float64(),
		technical:    4.2 + 0.7*rng.Float64(),
		significance: 1.0 + 0.4*rng.Float64(),
	}
}

func generateReview(rng *rand.Rand, cfg DatasetConfig, examID, providerID string,
	attrs domain.ExamAttributes, params providerParams,
) domain.ExamReview {
	negatives := 5 + rng.Intn(26)
	positives := 2 + rng.Intn(14)
	fp := binomial(rng, negatives, params.fpRate)
	fn := binomial(rng, positives, params.fnRate)
	other := binomial(rng, negatives+positives, params.otherErrRate)

	review := domain.ExamReview{
		ExamID:                examID,
		ProviderID:            providerID,
		ReviewerID:            fmt.Sprintf("R%03d", 1+rng.Intn(reviewerPool)),
		Attributes:            attrs,
		TruePositive:          positives - fn,
		TrueNegative:          negatives - fp,
		FalsePositive:         fp,
		FalseNegative:         fn,
		TotalDiagnosticErrors: fp + fn + other,
	}
	review.RadPeerScore = maybeScore(rng, cfg, jitterScore(rng, params.radPeer, 1, 5))
	review.TechnicalPerformanceScore = maybeScore(rng, cfg, jitterScore(rng, params.technical, 1, 5))
	review.SignificanceOfErrors = maybeScore(rng, cfg, jitterScore(rng, params.significance, 1, 3))
	return review
}

func generateAttributes(rng *rand.Rand) domain.ExamAttributes {
	sex := "F"
	if rng.Intn(2) == 1 {
		sex = "M"
	}
	return domain.ExamAttributes{
		PatientSex: sex,
		PatientAge: 18 + rng.Intn(72),
		BodyPart:   bodyParts[rng.Intn(len(bodyParts))],
	}
}

func generateProfile(rng *rand.Rand, providerID string) domain.ProviderProfile {
	profile := domain.ProviderProfile{
		ProviderID:     providerID,
		EquipmentClass: equipmentClasses[rng.Intn(len(equipmentClasses))],
		Subspecialty:   subspecialties[rng.Intn(len(subspecialties))],
	}
	if profile.EquipmentClass == "MRI" {
		profile.FieldStrength = fieldStrengths[rng.Intn(len(fieldStrengths))]
	}
	return profile
}

func conflictingBodyPart(rng *rand.Rand, current string) string {
	for {
		candidate := bodyParts[rng.Intn(len(bodyParts))]
		if candidate != current {
			return candidate
		}
	}
}

func nextReviewer(id string) string {
	var n int
	fmt.Sscanf(id, "R%03d", &n)
	return fmt.Sprintf("R%03d", n%reviewerPool+1)
}

// binomial draws the number of successes in n independent trials with
// success probability p.
func binomial(rng *rand.Rand, n int, p float64) int {
	successes := 0
	for i := 0; i < n; i++ {
		if rng.Float64() < p {
			successes++
		}
	}
	return successes
}

// jitterScore perturbs a base score, clamps it to the scale, and rounds to
// one decimal the way reviewers record scores.
func jitterScore(rng *rand.Rand, base, lo, hi float64) float64 {
	v := base + rng.NormFloat64()*0.15
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return math.Round(v*10) / 10
}

// maybeScore drops the score with the configured probability. It consumes
// exactly one draw on every call; changing MissingScoreFraction never shifts
// the draws behind it.
func maybeScore(rng *rand.Rand, cfg DatasetConfig, v float64) *float64 {
	if rng.Float64() < cfg.MissingScoreFraction {
		return nil
	}
	return &v
}
