package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewState verifies that a new State instance is initialized correctly.
func TestNewState(t *testing.T) {
	state := NewState()

	assert.NotNil(t, state.data, "NewState() should initialize the data map.")
	assert.Empty(t, state.data, "NewState() should create an empty state.")
}

// TestState_Get tests the retrieval of values from a State instance.
// It covers various data types and ensures that existing keys return the
// correct values and non-existent keys are handled properly.
func TestState_Get(t *testing.T) {
	tests := []struct {
		name   string
		setup  func() State
		assert func(t *testing.T, state State)
	}{
		{
			name: "get existing reviews",
			setup: func() State {
				reviews := []ExamReview{
					{ExamID: "E1", ProviderID: "P1", TruePositive: 3},
					{ExamID: "E2", ProviderID: "P1", FalseNegative: 1},
				}
				return With(NewState(), KeyReviews, reviews)
			},
			assert: func(t *testing.T, state State) {
				got, ok := Get(state, KeyReviews)
				assert.True(t, ok, "Get() should find an existing key.")
				assert.Len(t, got, 2, "Should have 2 reviews.")
				assert.Equal(t, "E1", got[0].ExamID, "First review exam ID mismatch.")
			},
		},
		{
			name: "get non-existent key",
			setup: func() State {
				return NewState()
			},
			assert: func(t *testing.T, state State) {
				_, ok := Get(state, KeyReviews)
				assert.False(t, ok, "Get() should not find a non-existent key.")
			},
		},
		{
			name: "get provider summaries with rates",
			setup: func() State {
				summaries := []ProviderSummary{
					{ProviderID: "P1", ExamCount: 4, ErrorRate: DefinedRate(0.25)},
					{ProviderID: "P2", ExamCount: 1, ErrorRate: UndefinedRate()},
				}
				return With(NewState(), KeySummaries, summaries)
			},
			assert: func(t *testing.T, state State) {
				got, ok := Get(state, KeySummaries)
				assert.True(t, ok, "Get() should find the summaries.")
				require.Len(t, got, 2, "Should have 2 summaries.")

				v, defined := got[0].ErrorRate.Value()
				assert.True(t, defined, "Defined rate should survive retrieval.")
				assert.Equal(t, 0.25, v, "Rate value mismatch.")
				assert.False(t, got[1].ErrorRate.Defined(), "Undefined rate should survive retrieval.")
			},
		},
		{
			name: "get diagnostics pointer",
			setup: func() State {
				diag := &ClusteringDiagnostics{Seed: 7, Restarts: 20, VarianceRatio: 0.81}
				return With(NewState(), KeyDiagnostics, diag)
			},
			assert: func(t *testing.T, state State) {
				got, ok := Get(state, KeyDiagnostics)
				assert.True(t, ok, "Get() should find the diagnostics.")
				assert.NotNil(t, got, "Diagnostics should not be nil.")
				assert.Equal(t, int64(7), got.Seed, "Diagnostics seed mismatch.")
				assert.Equal(t, 0.81, got.VarianceRatio, "Diagnostics ratio mismatch.")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := tt.setup()
			tt.assert(t, state)
		})
	}
}

// TestState_With tests the addition of values to a State instance.
// It verifies that the operation is immutable and that new values are
// correctly added or updated.
func TestState_With(t *testing.T) {
	original := NewState()
	reviews := []ExamReview{{ExamID: "E1", ProviderID: "P1"}}

	updated := With(original, KeyReviews, reviews)

	_, ok := Get(original, KeyReviews)
	assert.False(t, ok, "With() should not modify the original state.")

	got, ok := Get(updated, KeyReviews)
	require.True(t, ok, "With() should add a new value to the state.")
	assert.Equal(t, reviews, got, "With() returned an incorrect value.")

	replacement := []ExamReview{{ExamID: "E2", ProviderID: "P1"}}
	updated2 := With(updated, KeyReviews, replacement)

	v, _ := Get(updated, KeyReviews)
	assert.Equal(t, "E1", v[0].ExamID, "With() should not modify the previous state when updating.")

	v2, _ := Get(updated2, KeyReviews)
	assert.Equal(t, "E2", v2[0].ExamID, "With() returned an incorrect updated value.")
}

// TestState_DeepCopy verifies that values stored in and retrieved from State
// are isolated from the caller's copies, including the unexported fields of
// Rate, which the copy must pass through by value.
func TestState_DeepCopy(t *testing.T) {
	records := []ExamRecord{
		{ExamID: "E1", ProviderID: "P1", ErrorRate: DefinedRate(0.1)},
	}
	state := With(NewState(), KeyExamRecords, records)

	// Mutating the original slice must not leak into the state.
	records[0].ExamID = "mutated"
	got, ok := Get(state, KeyExamRecords)
	require.True(t, ok, "Get() should find the records.")
	assert.Equal(t, "E1", got[0].ExamID, "State should hold its own copy of stored values.")

	// Mutating a retrieved slice must not leak back into the state.
	got[0].ExamID = "mutated again"
	got2, _ := Get(state, KeyExamRecords)
	assert.Equal(t, "E1", got2[0].ExamID, "Get() should return an isolated copy.")

	v, defined := got2[0].ErrorRate.Value()
	require.True(t, defined, "Rate must keep its defined flag through the deep copy.")
	assert.Equal(t, 0.1, v, "Rate must keep its value through the deep copy.")
}

// TestState_RunContext verifies run context round-tripping through the state.
func TestState_RunContext(t *testing.T) {
	state := NewState()

	_, ok := state.GetRunContext()
	assert.False(t, ok, "GetRunContext() should report absence on a fresh state.")

	rc := RunContext{PipelineID: "quality-pipeline", RunID: "run-42"}
	state = state.WithRunContext(rc)

	got, ok := state.GetRunContext()
	require.True(t, ok, "GetRunContext() should find the stored context.")
	assert.Equal(t, rc, got, "Run context mismatch.")
}

// TestState_AddWarnings verifies that integrity violations accumulate across
// stages without mutating earlier states.
func TestState_AddWarnings(t *testing.T) {
	state := NewState()
	assert.Empty(t, state.Warnings(), "A fresh state should have no warnings.")

	first := IntegrityViolation{Kind: ViolationAttributeConflict, Key: "exam E1/provider P1", Field: "body_part", FirstSeen: "chest", Conflict: "Chest"}
	withFirst := state.AddWarnings(first)

	assert.Empty(t, state.Warnings(), "AddWarnings() should not modify the original state.")
	require.Len(t, withFirst.Warnings(), 1, "First warning should be recorded.")

	second := IntegrityViolation{Kind: ViolationAttributeConflict, Key: "exam E2/provider P1", Field: "patient_age", FirstSeen: "61", Conflict: "16"}
	withBoth := withFirst.AddWarnings(second)

	require.Len(t, withBoth.Warnings(), 2, "Warnings should accumulate.")
	assert.Equal(t, "body_part", withBoth.Warnings()[0].Field, "First warning should be preserved in order.")
	assert.Equal(t, "patient_age", withBoth.Warnings()[1].Field, "Second warning should follow the first.")

	assert.Equal(t, withBoth, withBoth.AddWarnings(), "AddWarnings() with no arguments should be a no-op.")
}
