package domain

// ProviderSummary is the per-provider roll-up of every exam record attributed
// to the provider. Rates are exam-volume-weighted means whose weight is the
// rate's own denominator count, which makes each provider rate equal to the
// ratio of the provider's summed counts. Later stages attach scaled features
// and a cluster assignment; each addition is strictly additive, earlier
// fields are never rewritten.
type ProviderSummary struct {
	// ProviderID identifies the provider.
	ProviderID string `json:"provider_id"`

	// ExamCount is the number of distinct exams contributing to the summary.
	ExamCount int `json:"exam_count"`

	// SumNegativeCount is the summed (mean-per-exam) negative count.
	SumNegativeCount float64 `json:"sum_negative_count"`

	// SumPositiveCount is the summed (mean-per-exam) positive count.
	SumPositiveCount float64 `json:"sum_positive_count"`

	// SumTotalCount is the summed (mean-per-exam) total count.
	SumTotalCount float64 `json:"sum_total_count"`

	// SumTotalDiagnosticErrors is the summed diagnostic error count.
	SumTotalDiagnosticErrors float64 `json:"sum_total_diagnostic_errors"`

	// RadPeerScore is the unweighted mean RADPEER score across exams.
	RadPeerScore Rate `json:"radpeer_score"`

	// TechnicalPerformanceScore is the unweighted mean technical score
	// across exams.
	TechnicalPerformanceScore Rate `json:"technical_performance_score"`

	// FalsePositiveRate is the volume-weighted false positive rate,
	// weighted by each exam's negative count.
	FalsePositiveRate Rate `json:"false_positive_rate"`

	// FalseNegativeRate is the volume-weighted false negative rate,
	// weighted by each exam's positive count.
	FalseNegativeRate Rate `json:"false_negative_rate"`

	// ErrorRate is the volume-weighted diagnostic error rate,
	// weighted by each exam's total count.
	ErrorRate Rate `json:"error_rate"`

	// WeightedFalsePositiveRate is the volume-weighted significance-weighted
	// false positive rate.
	WeightedFalsePositiveRate Rate `json:"weighted_false_positive_rate"`

	// WeightedFalseNegativeRate is the volume-weighted significance-weighted
	// false negative rate.
	WeightedFalseNegativeRate Rate `json:"weighted_false_negative_rate"`

	// WeightedErrorRate is the volume-weighted significance-weighted
	// error rate.
	WeightedErrorRate Rate `json:"weighted_error_rate"`

	// Scaled holds the z-scored feature vector once the normalizer has run.
	// It is nil before normalization, and stays nil for providers the
	// normalizer excluded from clustering.
	Scaled *ScaledFeatures `json:"scaled,omitempty"`

	// Cluster holds the cluster assignment once the cluster engine has run.
	// It is nil for providers that were excluded from clustering.
	Cluster *ClusterAssignment `json:"cluster,omitempty"`
}

// ScaledFeatures is the z-scored feature vector used as clustering input.
// Undefined rate features have already been replaced with zero, which places
// the provider exactly at the population mean for that feature.
type ScaledFeatures struct {
	// RadPeerScore is the scaled RADPEER score.
	RadPeerScore float64 `json:"radpeer_score"`

	// TechnicalPerformanceScore is the scaled technical score.
	TechnicalPerformanceScore float64 `json:"technical_performance_score"`

	// FalsePositiveRate is the scaled false positive rate.
	FalsePositiveRate float64 `json:"false_positive_rate"`

	// WeightedFalsePositiveRate is the scaled weighted false positive rate.
	WeightedFalsePositiveRate float64 `json:"weighted_false_positive_rate"`

	// FalseNegativeRate is the scaled false negative rate.
	FalseNegativeRate float64 `json:"false_negative_rate"`

	// WeightedFalseNegativeRate is the scaled weighted false negative rate.
	WeightedFalseNegativeRate float64 `json:"weighted_false_negative_rate"`

	// ErrorRate is the scaled error rate.
	ErrorRate float64 `json:"error_rate"`

	// WeightedErrorRate is the scaled weighted error rate.
	WeightedErrorRate float64 `json:"weighted_error_rate"`
}

// ExpandedRow is one row of the volume-expanded clustering input. A provider
// with examCount exams contributes examCount identical rows, which weights
// an unweighted clustering algorithm by provider throughput. Expanded rows
// must never feed any other statistic.
type ExpandedRow struct {
	// ProviderID identifies the provider the row belongs to, retained so
	// that cluster assignments can be collapsed back per provider.
	ProviderID string `json:"provider_id"`

	// Features is the provider's scaled feature vector in canonical order.
	Features []float64 `json:"features"`
}
