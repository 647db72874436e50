package domain

import (
	"encoding/json"
	"strconv"
)

// Rate is a ratio-derived measurement that may be undefined. A rate becomes
// undefined when its denominator is zero: the measurement is unknowable, not
// zero, and the distinction must survive every downstream computation. The
// zero value of Rate is undefined.
//
// Rate is an immutable value type. Arithmetic on an undefined rate yields an
// undefined rate; callers that need a concrete number must branch on Defined
// or substitute explicitly with Or.
type Rate struct {
	value   float64
	defined bool
}

// DefinedRate returns a Rate holding the value v.
func DefinedRate(v float64) Rate {
	return Rate{value: v, defined: true}
}

// UndefinedRate returns the undefined marker.
func UndefinedRate() Rate { return Rate{} }

// Ratio divides num by den. When den is zero the result is undefined;
// division never panics and never fabricates a value.
func Ratio(num, den float64) Rate {
	if den == 0 {
		return Rate{}
	}
	return Rate{value: num / den, defined: true}
}

// Defined reports whether the rate holds a numeric value.
func (r Rate) Defined() bool { return r.defined }

// Value returns the numeric value and whether it is defined.
// The value is meaningless when the second return is false.
func (r Rate) Value() (float64, bool) { return r.value, r.defined }

// Or returns the rate's value, or fallback when the rate is undefined.
func (r Rate) Or(fallback float64) float64 {
	if !r.defined {
		return fallback
	}
	return r.value
}

// Mul returns the rate scaled by factor. Undefined rates stay undefined.
func (r Rate) Mul(factor float64) Rate {
	if !r.defined {
		return Rate{}
	}
	return Rate{value: r.value * factor, defined: true}
}

// String renders the numeric value, or "undefined" for the marker.
func (r Rate) String() string {
	if !r.defined {
		return "undefined"
	}
	return strconv.FormatFloat(r.value, 'g', -1, 64)
}

// MarshalJSON encodes undefined rates as null so that serialized runs
// preserve the defined/undefined distinction.
func (r Rate) MarshalJSON() ([]byte, error) {
	if !r.defined {
		return []byte("null"), nil
	}
	return json.Marshal(r.value)
}

// UnmarshalJSON decodes null as the undefined marker and any number as a
// defined rate.
func (r *Rate) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = Rate{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = Rate{value: v, defined: true}
	return nil
}
