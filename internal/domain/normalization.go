package domain

import "fmt"

// FeatureScale holds the fitted scaling parameters for one feature.
type FeatureScale struct {
	// Feature is the canonical feature name.
	Feature string `json:"feature"`

	// Mean is the mean of the feature's defined values across providers.
	Mean float64 `json:"mean"`

	// StdDev is the sample standard deviation of the feature's defined
	// values. Zero when the feature had no spread.
	StdDev float64 `json:"std_dev"`
}

// NormalizationParameters is the fixed set of per-feature scaling parameters
// fitted once per run. The same parameters scale clustering inputs and
// unscale cluster centroids for reporting, so the record must survive the
// whole run unchanged.
type NormalizationParameters struct {
	// Scales holds one entry per feature in canonical feature order.
	Scales []FeatureScale `json:"scales"`
}

// Lookup returns the scaling parameters for the named feature.
func (p NormalizationParameters) Lookup(feature string) (FeatureScale, bool) {
	for _, s := range p.Scales {
		if s.Feature == feature {
			return s, true
		}
	}
	return FeatureScale{}, false
}

// Scale z-scores a raw value for the named feature. A feature with zero
// standard deviation scales to zero, keeping constant features neutral in
// distance computations.
func (p NormalizationParameters) Scale(feature string, value float64) (float64, error) {
	s, ok := p.Lookup(feature)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownFeature, feature)
	}
	if s.StdDev == 0 {
		return 0, nil
	}
	return (value - s.Mean) / s.StdDev, nil
}

// Unscale inverts Scale for the named feature, recovering a raw value from a
// z-scored one. For a feature with zero standard deviation every scaled value
// maps back to the mean.
func (p NormalizationParameters) Unscale(feature string, scaled float64) (float64, error) {
	s, ok := p.Lookup(feature)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownFeature, feature)
	}
	if s.StdDev == 0 {
		return s.Mean, nil
	}
	return scaled*s.StdDev + s.Mean, nil
}
