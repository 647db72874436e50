package ports

import (
	"errors"
	"fmt"
)

// Common infrastructure errors that can occur during input loading,
// persistence, and configuration.
var (
	// ErrRunNotFound indicates that no run with the requested identifier
	// exists in the result store.
	ErrRunNotFound = errors.New("run not found")

	// ErrStoreClosed indicates that an operation was attempted on a closed
	// result store.
	ErrStoreClosed = errors.New("store closed")

	// ErrMalformedRecord indicates that an input record could not be parsed.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrMissingColumn indicates that an input source lacks a required column.
	ErrMissingColumn = errors.New("missing column")

	// ErrConfigNotFound indicates that required configuration is missing.
	ErrConfigNotFound = errors.New("configuration not found")
)

// SourceError represents an error from an input source.
// It includes the source path and, when known, the offending row.
type SourceError struct {
	// Path identifies the input source that produced the error.
	Path string

	// Row is the 1-based row number of the offending record,
	// or zero when the error is not row-specific.
	Row int

	// Err is the underlying error that occurred.
	Err error
}

// Error implements the error interface for SourceError.
func (e *SourceError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("source error: path=%s, row=%d, err=%v", e.Path, e.Row, e.Err)
	}
	return fmt.Sprintf("source error: path=%s, err=%v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *SourceError) Unwrap() error { return e.Err }

// NewSourceError creates a new SourceError with the given details.
func NewSourceError(path string, row int, err error) *SourceError {
	return &SourceError{
		Path: path,
		Row:  row,
		Err:  err,
	}
}

// StoreError represents an error from result store operations.
type StoreError struct {
	// Operation is the name of the store operation that failed.
	Operation string

	// RunID is the run involved in the failed operation, if any.
	RunID string

	// Err is the underlying error that caused the store operation to fail.
	Err error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.RunID != "" {
		return fmt.Sprintf("store error: operation=%s, run=%s, err=%v", e.Operation, e.RunID, e.Err)
	}
	return fmt.Sprintf("store error: operation=%s, err=%v", e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError creates a new StoreError with the given details.
func NewStoreError(operation, runID string, err error) *StoreError {
	return &StoreError{
		Operation: operation,
		RunID:     runID,
		Err:       err,
	}
}

// MetricsError represents an error from metrics collection operations.
type MetricsError struct {
	// Metric is the name of the metric that was being collected when the
	// error occurred.
	Metric string

	// Operation is the name of the metrics operation that failed.
	Operation string

	// Err is the underlying error that caused the metrics operation to fail.
	Err error
}

// Error implements the error interface for MetricsError.
func (e *MetricsError) Error() string {
	return fmt.Sprintf("metrics error: operation=%s, metric=%s, err=%v", e.Operation, e.Metric, e.Err)
}

// Unwrap returns the underlying error.
func (e *MetricsError) Unwrap() error { return e.Err }

// NewMetricsError creates a new MetricsError with the given details.
func NewMetricsError(metric, operation string, err error) *MetricsError {
	return &MetricsError{
		Metric:    metric,
		Operation: operation,
		Err:       err,
	}
}

// ConfigError represents an error from configuration operations.
type ConfigError struct {
	// ConfigKey is the configuration key that was involved in the failed
	// operation.
	ConfigKey string

	// Err is the underlying error that caused the configuration operation
	// to fail.
	Err error
}

// Error implements the error interface for ConfigError.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: key=%s, err=%v", e.ConfigKey, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError creates a new ConfigError with the given details.
func NewConfigError(key string, err error) *ConfigError {
	return &ConfigError{
		ConfigKey: key,
		Err:       err,
	}
}
