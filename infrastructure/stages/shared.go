// Package stages provides the pipeline stages that implement the ports.Stage
// interface for the provider quality classification pipeline.
package stages

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-radqc/internal/domain"
)

// LabelPolicy represents the rule for deciding which of the two clusters is
// labeled good when centroids are mixed-sign across the rate features.
type LabelPolicy string

// Supported labeling policies for the cluster engine.
const (
	// LabelBySignedSum labels good the cluster whose centroid has the lower
	// signed sum across rate-derived features. In z-scored space negative
	// means below the population mean, so a below-average error signal wins
	// even when individual features disagree in sign.
	LabelBySignedSum LabelPolicy = "signed_sum"

	// LabelByMagnitude labels good the cluster whose centroid has the lower
	// total absolute magnitude across rate-derived features. This treats
	// any deviation from the population mean as an error signal.
	LabelByMagnitude LabelPolicy = "magnitude"
)

// WeightingMode represents how the cluster engine weights providers by
// their exam volume.
type WeightingMode string

// Supported weighting modes for the cluster engine.
const (
	// WeightingNone clusters one unweighted row per provider.
	WeightingNone WeightingMode = "none"

	// WeightingSamples clusters one row per provider with the provider's
	// exam count passed as a native sample weight. This is the preferred
	// mode; it produces the same centroids as row replication without
	// inflating the input.
	WeightingSamples WeightingMode = "samples"

	// WeightingExpanded clusters the volume-expanded rows materialized by
	// the volume expander stage, one row per exam. Retained as a fallback
	// and for verifying the replication path against sample weights.
	WeightingExpanded WeightingMode = "expanded"
)

// ScorePolicy represents how the normalizer treats a provider whose score
// feature is undefined. Rate features are always zero-substituted after
// scaling; scores never are.
type ScorePolicy string

// Supported score policies for the normalizer.
const (
	// ScoreStrict aborts the run when a score feature is undefined.
	ScoreStrict ScorePolicy = "strict"

	// ScoreExclude drops the provider from clustering with an integrity
	// warning and leaves its summary unscaled.
	ScoreExclude ScorePolicy = "exclude"
)

// Common errors returned by pipeline stages.
// These errors provide consistent error handling across all stage implementations.
var (
	// ErrEmptyStageName is returned when attempting to create a stage with an empty name.
	ErrEmptyStageName = errors.New("stage name cannot be empty")

	// ErrNoReviews is returned when the input contains no reviews to process.
	ErrNoReviews = errors.New("no reviews to process")

	// ErrNoRecords is returned when a grouping stage receives no records.
	ErrNoRecords = errors.New("no records to aggregate")

	// ErrNoScaledFeatures is returned when clustering input lacks scaled features.
	ErrNoScaledFeatures = errors.New("no scaled features available for clustering")

	// ErrInsufficientProviders is returned when fewer clusterable providers
	// exist than clusters requested. It wraps the fatal configuration
	// sentinel: a batch too small to split in two is a setup problem, not
	// a data quality warning.
	ErrInsufficientProviders = fmt.Errorf("%w: fewer clusterable providers than clusters", domain.ErrInvalidConfiguration)
)

// Package-level validator instance for configuration validation.
// Uses go-playground/validator v10 for struct tag-based validation.
var validate = validator.New()
