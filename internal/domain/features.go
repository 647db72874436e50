package domain

// FeatureKind distinguishes quality scores from error-derived rates.
// The distinction drives the normalizer's undefined-value policy and the
// cluster labeling rule, which only inspects rate features.
type FeatureKind string

const (
	// FeatureKindScore marks reviewer-assigned quality scores.
	FeatureKindScore FeatureKind = "score"

	// FeatureKindRate marks rates derived from error counts.
	FeatureKindRate FeatureKind = "rate"
)

// Canonical feature names. These appear in configuration, persisted runs,
// and reports; the order of the constants matches the clustering vector.
const (
	FeatureRadPeerScore              = "radpeer_score"
	FeatureTechnicalPerformanceScore = "technical_performance_score"
	FeatureFalsePositiveRate         = "false_positive_rate"
	FeatureWeightedFalsePositiveRate = "weighted_false_positive_rate"
	FeatureFalseNegativeRate         = "false_negative_rate"
	FeatureWeightedFalseNegativeRate = "weighted_false_negative_rate"
	FeatureErrorRate                 = "error_rate"
	FeatureWeightedErrorRate         = "weighted_error_rate"
)

// FeatureSpec is a declarative descriptor binding a feature name to typed
// accessors over the provider summary. All feature traversal in the pipeline
// goes through these descriptors; no stage looks fields up by string.
type FeatureSpec struct {
	// Name is the canonical feature name.
	Name string

	// Kind classifies the feature as a score or a rate.
	Kind FeatureKind

	// Raw reads the unscaled feature value from a summary.
	Raw func(ProviderSummary) Rate

	// Scaled reads the z-scored feature value.
	Scaled func(ScaledFeatures) float64

	// SetScaled writes the z-scored feature value.
	SetScaled func(*ScaledFeatures, float64)
}

// featureSpecs is the canonical feature set in clustering-vector order.
var featureSpecs = []FeatureSpec{
	{
		Name: FeatureRadPeerScore,
		Kind: FeatureKindScore,
		Raw:  func(s ProviderSummary) Rate { return s.RadPeerScore },
		Scaled: func(f ScaledFeatures) float64 {
			return f.RadPeerScore
		},
		SetScaled: func(f *ScaledFeatures, v float64) { f.RadPeerScore = v },
	},
	{
		Name: FeatureTechnicalPerformanceScore,
		Kind: FeatureKindScore,
		Raw:  func(s ProviderSummary) Rate { return s.TechnicalPerformanceScore },
		Scaled: func(f ScaledFeatures) float64 {
			return f.TechnicalPerformanceScore
		},
		SetScaled: func(f *ScaledFeatures, v float64) { f.TechnicalPerformanceScore = v },
	},
	{
		Name: FeatureFalsePositiveRate,
		Kind: FeatureKindRate,
		Raw:  func(s ProviderSummary) Rate { return s.FalsePositiveRate },
		Scaled: func(f ScaledFeatures) float64 {
			return f.FalsePositiveRate
		},
		SetScaled: func(f *ScaledFeatures, v float64) { f.FalsePositiveRate = v },
	},
	{
		Name: FeatureWeightedFalsePositiveRate,
		Kind: FeatureKindRate,
		Raw:  func(s ProviderSummary) Rate { return s.WeightedFalsePositiveRate },
		Scaled: func(f ScaledFeatures) float64 {
			return f.WeightedFalsePositiveRate
		},
		SetScaled: func(f *ScaledFeatures, v float64) { f.WeightedFalsePositiveRate = v },
	},
	{
		Name: FeatureFalseNegativeRate,
		Kind: FeatureKindRate,
		Raw:  func(s ProviderSummary) Rate { return s.FalseNegativeRate },
		Scaled: func(f ScaledFeatures) float64 {
			return f.FalseNegativeRate
		},
		SetScaled: func(f *ScaledFeatures, v float64) { f.FalseNegativeRate = v },
	},
	{
		Name: FeatureWeightedFalseNegativeRate,
		Kind: FeatureKindRate,
		Raw:  func(s ProviderSummary) Rate { return s.WeightedFalseNegativeRate },
		Scaled: func(f ScaledFeatures) float64 {
			return f.WeightedFalseNegativeRate
		},
		SetScaled: func(f *ScaledFeatures, v float64) { f.WeightedFalseNegativeRate = v },
	},
	{
		Name: FeatureErrorRate,
		Kind: FeatureKindRate,
		Raw:  func(s ProviderSummary) Rate { return s.ErrorRate },
		Scaled: func(f ScaledFeatures) float64 {
			return f.ErrorRate
		},
		SetScaled: func(f *ScaledFeatures, v float64) { f.ErrorRate = v },
	},
	{
		Name: FeatureWeightedErrorRate,
		Kind: FeatureKindRate,
		Raw:  func(s ProviderSummary) Rate { return s.WeightedErrorRate },
		Scaled: func(f ScaledFeatures) float64 {
			return f.WeightedErrorRate
		},
		SetScaled: func(f *ScaledFeatures, v float64) { f.WeightedErrorRate = v },
	},
}

// Features returns the canonical feature descriptors in clustering-vector
// order. The returned slice is a fresh copy and safe to modify.
func Features() []FeatureSpec {
	specs := make([]FeatureSpec, len(featureSpecs))
	copy(specs, featureSpecs)
	return specs
}

// FeatureNames returns the canonical feature names in clustering-vector order.
func FeatureNames() []string {
	names := make([]string, len(featureSpecs))
	for i, spec := range featureSpecs {
		names[i] = spec.Name
	}
	return names
}

// FeatureByName returns the descriptor for the named feature.
func FeatureByName(name string) (FeatureSpec, bool) {
	for _, spec := range featureSpecs {
		if spec.Name == name {
			return spec, true
		}
	}
	return FeatureSpec{}, false
}

// Vector returns the scaled features as a slice in canonical feature order,
// ready for distance computations.
func (f ScaledFeatures) Vector() []float64 {
	vec := make([]float64, len(featureSpecs))
	for i, spec := range featureSpecs {
		vec[i] = spec.Scaled(f)
	}
	return vec
}
