package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRatio verifies that division by zero produces the undefined marker
// instead of an error or a fabricated zero.
func TestRatio(t *testing.T) {
	tests := []struct {
		name        string
		num, den    float64
		wantDefined bool
		wantValue   float64
	}{
		{name: "regular division", num: 1, den: 10, wantDefined: true, wantValue: 0.1},
		{name: "zero numerator", num: 0, den: 4, wantDefined: true, wantValue: 0},
		{name: "zero denominator", num: 3, den: 0, wantDefined: false},
		{name: "both zero", num: 0, den: 0, wantDefined: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Ratio(tt.num, tt.den)
			v, defined := r.Value()
			assert.Equal(t, tt.wantDefined, defined, "Defined flag mismatch.")
			if tt.wantDefined {
				assert.Equal(t, tt.wantValue, v, "Value mismatch.")
			}
		})
	}
}

// TestRate_Propagation verifies that arithmetic and substitution preserve
// the undefined marker correctly.
func TestRate_Propagation(t *testing.T) {
	defined := DefinedRate(0.2)
	undefined := UndefinedRate()

	assert.True(t, defined.Defined(), "DefinedRate should be defined.")
	assert.False(t, undefined.Defined(), "UndefinedRate should be undefined.")
	assert.False(t, Rate{}.Defined(), "The zero value should be undefined.")

	scaled := defined.Mul(3)
	v, ok := scaled.Value()
	require.True(t, ok, "Scaling a defined rate should stay defined.")
	assert.InDelta(t, 0.6, v, 1e-12, "Scaled value mismatch.")

	assert.False(t, undefined.Mul(3).Defined(), "Scaling an undefined rate must stay undefined.")

	assert.Equal(t, 0.2, defined.Or(99), "Or() should return the value when defined.")
	assert.Equal(t, 99.0, undefined.Or(99), "Or() should return the fallback when undefined.")

	assert.Equal(t, "0.2", defined.String(), "String rendering mismatch.")
	assert.Equal(t, "undefined", undefined.String(), "Undefined rendering mismatch.")
}

// TestRate_JSON verifies that undefined rates serialize as null and round-trip.
func TestRate_JSON(t *testing.T) {
	type wrapper struct {
		FPR Rate `json:"fpr"`
		FNR Rate `json:"fnr"`
	}

	in := wrapper{FPR: DefinedRate(0.125), FNR: UndefinedRate()}
	data, err := json.Marshal(in)
	require.NoError(t, err, "Marshal should not fail.")
	assert.JSONEq(t, `{"fpr":0.125,"fnr":null}`, string(data), "JSON encoding mismatch.")

	var out wrapper
	require.NoError(t, json.Unmarshal(data, &out), "Unmarshal should not fail.")

	v, defined := out.FPR.Value()
	assert.True(t, defined, "Defined rate should round-trip as defined.")
	assert.Equal(t, 0.125, v, "Round-tripped value mismatch.")
	assert.False(t, out.FNR.Defined(), "Null should round-trip as undefined.")
}
