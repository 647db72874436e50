package domain

import "math"

// MeanAccumulator folds observations into an arithmetic mean. Undefined
// observations are skipped entirely; if every observation was undefined the
// resulting mean is undefined as well.
type MeanAccumulator struct {
	sum float64
	n   int
}

// Add folds one rate observation into the accumulator.
// Undefined rates are ignored.
func (a *MeanAccumulator) Add(r Rate) {
	if v, ok := r.Value(); ok {
		a.AddValue(v)
	}
}

// AddValue folds one concrete observation into the accumulator.
func (a *MeanAccumulator) AddValue(v float64) {
	a.sum += v
	a.n++
}

// Count returns the number of observations that contributed to the mean.
func (a *MeanAccumulator) Count() int { return a.n }

// Mean returns the arithmetic mean of the contributed observations,
// or the undefined marker when nothing contributed.
func (a *MeanAccumulator) Mean() Rate {
	if a.n == 0 {
		return UndefinedRate()
	}
	return DefinedRate(a.sum / float64(a.n))
}

// WeightedMeanAccumulator folds observations into a weighted mean. An
// observation that is undefined, or whose weight is not positive, is
// excluded from both the numerator and the denominator so that it cannot
// silently drag the mean toward zero.
//
// Accumulating rates of the form count/denominator with the denominator as
// the weight makes the weighted mean algebraically identical to the ratio
// of summed counts, which is the identity provider-level aggregation relies on.
type WeightedMeanAccumulator struct {
	weightedSum float64
	weightSum   float64
}

// Add folds one observation with its weight into the accumulator.
func (a *WeightedMeanAccumulator) Add(r Rate, weight float64) {
	v, ok := r.Value()
	if !ok || weight <= 0 {
		return
	}
	a.weightedSum += v * weight
	a.weightSum += weight
}

// Weight returns the total weight that contributed to the mean.
func (a *WeightedMeanAccumulator) Weight() float64 { return a.weightSum }

// Mean returns the weighted mean, or the undefined marker when no
// observation contributed.
func (a *WeightedMeanAccumulator) Mean() Rate {
	return Ratio(a.weightedSum, a.weightSum)
}

// MeanStdDev returns the arithmetic mean and the sample standard deviation
// (n-1 denominator) of values. A single observation has zero deviation, and
// an empty input yields zeros.
func MeanStdDev(values []float64) (mean, stdDev float64) {
	n := len(values)
	if n == 0 {
		return 0, 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(n)

	if n == 1 {
		return mean, 0
	}

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(n-1))
}
