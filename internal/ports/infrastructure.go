package ports

import (
	"context"
	"time"

	"github.com/ahrav/go-radqc/internal/domain"
)

// ReviewSource defines the interface for loading raw exam reviews.
// Implementations parse external inputs (CSV snapshots, generated fixtures)
// into typed reviews; the pipeline core never touches file formats itself.
type ReviewSource interface {
	// Reviews loads every exam review from the underlying source.
	// Parsing is strict: a malformed row aborts the load with an error
	// naming the offending row rather than silently skipping data.
	Reviews(ctx context.Context) ([]domain.ExamReview, error)
}

// ProfileSource defines the interface for loading provider profiles, the
// read-only equipment and subspecialty attributes joined against the
// labeled provider table after classification.
type ProfileSource interface {
	// Profiles loads every provider profile from the underlying source.
	Profiles(ctx context.Context) ([]domain.ProviderProfile, error)
}

// ResultStore defines the interface for persisting and retrieving completed
// pipeline runs. Implementations could use SQLite, files, or in-memory
// storage.
type ResultStore interface {
	// SaveRun persists a completed run atomically: either the whole run
	// (summaries, parameters, diagnostics, warnings) is stored or nothing is.
	SaveRun(ctx context.Context, run *domain.Run) error

	// GetRun retrieves a run by its identifier.
	// It returns ErrRunNotFound when no such run exists.
	GetRun(ctx context.Context, id string) (*domain.Run, error)

	// LatestRun retrieves the most recently created run.
	// It returns ErrRunNotFound when the store is empty.
	LatestRun(ctx context.Context) (*domain.Run, error)

	// ListRuns returns descriptive metadata for the most recent runs,
	// newest first, up to the given limit. A non-positive limit returns
	// every stored run.
	ListRuns(ctx context.Context, limit int) ([]RunInfo, error)

	// Close releases the store's resources.
	Close() error
}

// RunInfo summarizes a stored run for listings without loading the full
// provider table.
type RunInfo struct {
	// ID uniquely identifies the run.
	ID string

	// PipelineID names the pipeline configuration that produced the run.
	PipelineID string

	// CreatedAt records when the run completed.
	CreatedAt time.Time

	// Seed is the clustering seed used by the run.
	Seed int64

	// Providers is the number of provider rows in the run.
	Providers int

	// Warnings is the number of integrity violations recorded by the run.
	Warnings int
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus, OpenTelemetry, or custom monitoring solutions.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	// This is useful for tracking events like processed reviews,
	// integrity warnings, errors, etc.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	// This is useful for tracking values like provider counts or the
	// variance ratio of the latest clustering.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	// This is useful for tracking distributions like group sizes or
	// per-stage latencies.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

// ConfigLoader defines the interface for loading configuration.
// Implementations could read from files, environment variables,
// or a combination of sources.
type ConfigLoader interface {
	// Load reads configuration from the underlying source.
	// It should populate the provided configuration struct.
	// The config parameter should be a pointer to a struct.
	//
	// Example:
	//
	//	var config AppConfig
	//	err := loader.Load(ctx, &config)
	Load(ctx context.Context, config any) error
}
