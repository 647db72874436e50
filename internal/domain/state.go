// Package domain contains pure, dependency-free domain models and types
// for the provider quality pipeline.
package domain

import (
	"fmt"
	"maps"
	"reflect"
	"time"
)

// Key represents a type-safe generic key for accessing values in State.
// The type parameter T ensures compile-time type safety when getting and
// setting values, eliminating the need for runtime type assertions.
type Key[T any] struct{ name string }

// NewKey creates a new Key with the specified name and type.
// This function is provided for creating keys outside of the domain package.
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// Predefined state keys used throughout the classification pipeline.
// Each key is strongly typed to ensure type safety at compile time.
var (
	// KeyReviews stores the raw exam reviews loaded from an input source.
	KeyReviews = Key[[]ExamReview]{"reviews"}

	// KeyDerivedReviews stores reviews enriched with per-review metrics.
	KeyDerivedReviews = Key[[]DerivedReview]{"derived_reviews"}

	// KeyExamRecords stores one record per (provider, exam) after duplicate
	// reviews have been collapsed.
	KeyExamRecords = Key[[]ExamRecord]{"exam_records"}

	// KeySummaries stores the per-provider aggregated summaries.
	KeySummaries = Key[[]ProviderSummary]{"provider_summaries"}

	// KeyNormalization stores the feature scaling parameters fitted by the
	// normalizer so that downstream consumers can unscale values.
	KeyNormalization = Key[NormalizationParameters]{"normalization"}

	// KeyExpandedRows stores the volume-expanded feature rows when the
	// pipeline materializes replication instead of using sample weights.
	KeyExpandedRows = Key[[]ExpandedRow]{"expanded_rows"}

	// KeyDiagnostics stores clustering quality diagnostics.
	KeyDiagnostics = Key[*ClusteringDiagnostics]{"clustering_diagnostics"}

	// KeyWarnings accumulates data integrity violations observed while the
	// pipeline runs. Violations never abort execution.
	KeyWarnings = Key[[]IntegrityViolation]{"integrity_warnings"}

	// Run context keys for tracking metadata across pipeline execution.

	// KeyPipelineID stores the identifier of the pipeline being executed,
	// used for tracking and observability.
	KeyPipelineID = Key[string]{"execution.pipeline_id"}

	// KeyRunID stores a unique identifier for this specific run,
	// useful for tracing and correlation.
	KeyRunID = Key[string]{"execution.run_id"}
)

// deepCopyValue creates a deep copy of a value to ensure true immutability.
// It handles slices, maps, and other reference types that would otherwise
// allow external modification of State data.
func deepCopyValue(value any) any {
	if value == nil {
		return nil
	}

	// time.Time is immutable and can be returned directly.
	if val, ok := value.(time.Time); ok {
		return val
	}

	// Rate is an immutable value type; copying it by value preserves its
	// unexported defined/value pair.
	if val, ok := value.(Rate); ok {
		return val
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Slice:
		newSlice := reflect.MakeSlice(v.Type(), v.Len(), v.Cap())
		for i := 0; i < v.Len(); i++ {
			newSlice.Index(i).Set(reflect.ValueOf(deepCopyValue(v.Index(i).Interface())))
		}
		return newSlice.Interface()

	case reflect.Map:
		newMap := reflect.MakeMap(v.Type())
		for _, key := range v.MapKeys() {
			copiedKey := deepCopyValue(key.Interface())
			copiedValue := deepCopyValue(v.MapIndex(key).Interface())
			newMap.SetMapIndex(reflect.ValueOf(copiedKey), reflect.ValueOf(copiedValue))
		}
		return newMap.Interface()

	case reflect.Ptr:
		if v.IsNil() {
			return v.Interface()
		}
		newPtr := reflect.New(v.Elem().Type())
		newPtr.Elem().Set(reflect.ValueOf(deepCopyValue(v.Elem().Interface())))
		return newPtr.Interface()

	case reflect.Struct:
		// This performs a shallow copy for unexported fields but deep copies
		// exported fields.
		newStruct := reflect.New(v.Type()).Elem()
		for i := 0; i < v.NumField(); i++ {
			if newStruct.Field(i).CanSet() {
				newStruct.Field(i).Set(reflect.ValueOf(deepCopyValue(v.Field(i).Interface())))
			}
		}
		return newStruct.Interface()

	default:
		// Primitive types are returned as-is since they are copied by value.
		return value
	}
}

// State represents an immutable collection of pipeline data that flows
// through the stages. It uses copy-on-write semantics to ensure
// thread-safety and prevent unintended mutations. State is the primary
// data structure for passing information between Stages.
type State struct {
	// data holds the key-value pairs that make up the state.
	// It is unexported to maintain immutability guarantees.
	data map[string]any
}

// NewState creates a new empty State.
// The returned State is ready to use and can be safely shared across
// goroutines.
func NewState() State {
	return State{
		data: make(map[string]any),
	}
}

// Get retrieves a value from the State with compile-time type safety.
// It returns the value and a boolean indicating whether the key exists
// and contains a value of the correct type. The returned value is a deep
// copy to maintain immutability.
//
// Example:
//
//	reviews, ok := Get(state, KeyReviews)
//	if !ok {
//	    // handle missing value
//	}
//	// reviews is typed as []ExamReview, no type assertion needed
func Get[T any](s State, key Key[T]) (T, bool) {
	var zero T
	value, exists := s.data[key.name]
	if !exists {
		return zero, false
	}

	copied := deepCopyValue(value)
	val, ok := copied.(T)
	return val, ok
}

// GetRaw is a method version of Get that uses a string key.
// For type safety, use the generic Get function instead.
func (s State) GetRaw(keyName string) (any, bool) {
	value, exists := s.data[keyName]
	if !exists {
		return nil, false
	}
	return deepCopyValue(value), true
}

// With creates a new State with the specified key-value pair added or
// updated. It implements copy-on-write semantics, returning a new State
// instance while leaving the original unchanged. This function is the
// primary way to add or update data in a State.
//
// Example:
//
//	newState := With(state, KeyReviews, reviews)
func With[T any](s State, key Key[T], value T) State {
	newData := maps.Clone(s.data)
	newData[key.name] = deepCopyValue(value)
	return State{data: newData}
}

// WithRaw is a method version of With that uses a string key and allows
// chaining. For type safety, use the generic With function instead.
func (s State) WithRaw(keyName string, value any) State {
	newData := maps.Clone(s.data)
	newData[keyName] = deepCopyValue(value)
	return State{data: newData}
}

// WithMultiple creates a new State with multiple key-value pairs added
// or updated. It is more efficient than chaining multiple With calls as
// it performs a single clone operation. The updates map uses string keys
// for flexibility when updating multiple values at once.
func (s State) WithMultiple(updates map[string]any) State {
	newData := maps.Clone(s.data)
	for k, v := range updates {
		newData[k] = deepCopyValue(v)
	}
	return State{data: newData}
}

// Keys returns all keys present in the State.
// The returned slice can be used to iterate over all stored values and
// is safe to modify without affecting the original State.
func (s State) Keys() []string {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

// String returns a string representation of the State for debugging purposes.
func (s State) String() string {
	return fmt.Sprintf("State%v", s.data)
}

// RunContext contains metadata about the current pipeline run that flows
// through the State during stage execution. It provides consistent access
// to run metadata for middleware and observability.
type RunContext struct {
	// PipelineID is the identifier of the pipeline being executed.
	PipelineID string

	// RunID is a unique identifier for this specific run instance,
	// useful for tracing and correlation.
	RunID string
}

// WithRunContext creates a new State with run context metadata included,
// enabling proper tracking and observability. This method should be
// called at the beginning of pipeline execution.
func (s State) WithRunContext(rc RunContext) State {
	updates := map[string]any{
		KeyPipelineID.name: rc.PipelineID,
		KeyRunID.name:      rc.RunID,
	}
	return s.WithMultiple(updates)
}

// GetRunContext extracts run context metadata from the State.
// It returns the run context and a boolean indicating whether all
// required context fields are present and valid.
func (s State) GetRunContext() (RunContext, bool) {
	pipelineID, ok1 := Get(s, KeyPipelineID)
	runID, ok2 := Get(s, KeyRunID)

	if !ok1 || !ok2 {
		return RunContext{}, false
	}

	return RunContext{
		PipelineID: pipelineID,
		RunID:      runID,
	}, true
}

// AddWarnings creates a new State with the given integrity violations
// appended to the accumulated warning list. Stages use this to report
// data quality findings without interrupting the run. Passing no
// violations returns the receiver unchanged.
func (s State) AddWarnings(violations ...IntegrityViolation) State {
	if len(violations) == 0 {
		return s
	}
	current, _ := Get(s, KeyWarnings)

	updates := map[string]any{
		KeyWarnings.name: append(current, violations...),
	}
	return s.WithMultiple(updates)
}

// Warnings retrieves the accumulated integrity violations from the State.
// It returns an empty slice when no warnings have been recorded, enabling
// reporting components to access findings without existence checks.
func (s State) Warnings() []IntegrityViolation {
	warnings, _ := Get(s, KeyWarnings)
	return warnings
}
