package domain

import "time"

// Run is the complete, persistable outcome of one pipeline execution: the
// labeled provider table together with everything needed to interpret it.
type Run struct {
	// ID uniquely identifies this run (typically a UUID).
	ID string `json:"id"`

	// PipelineID names the pipeline configuration that produced the run.
	PipelineID string `json:"pipeline_id"`

	// CreatedAt records when the run completed.
	CreatedAt time.Time `json:"created_at"`

	// Seed is the top-level clustering seed, kept so the run can be
	// reproduced exactly.
	Seed int64 `json:"seed"`

	// FeatureNames lists the clustering features in vector order.
	FeatureNames []string `json:"feature_names"`

	// Summaries holds the final per-provider rows with scaled features and
	// cluster labels attached.
	Summaries []ProviderSummary `json:"summaries"`

	// Parameters holds the fitted normalization parameters, needed to
	// unscale centroids for reporting.
	Parameters NormalizationParameters `json:"parameters"`

	// Diagnostics describes the clustering quality.
	// It is omitted from JSON when nil.
	Diagnostics *ClusteringDiagnostics `json:"diagnostics,omitempty"`

	// Warnings holds the integrity violations observed during the run.
	// It is omitted from JSON when empty.
	Warnings []IntegrityViolation `json:"warnings,omitempty"`
}
