package domain

// ExamRecord is the collapsed view of one exam read by one provider. Every
// duplicate review of the exam has been folded in: counts and scores by
// arithmetic mean, rates by denominator-weighted mean so that each rate still
// equals its mean error count over its mean case count. A record is immutable
// once produced and is consumed only by provider-level aggregation.
type ExamRecord struct {
	// ExamID identifies the exam.
	ExamID string `json:"exam_id"`

	// ProviderID identifies the provider whose read was reviewed.
	ProviderID string `json:"provider_id"`

	// Attributes holds the exam's descriptive attributes, taken from the
	// first review seen for the group.
	Attributes ExamAttributes `json:"attributes"`

	// ReviewCount is the number of reviews collapsed into this record.
	ReviewCount int `json:"review_count"`

	// NegativeCount is the mean reviewer-confirmed negative count.
	NegativeCount float64 `json:"negative_count"`

	// PositiveCount is the mean reviewer-confirmed positive count.
	PositiveCount float64 `json:"positive_count"`

	// TotalCount is the mean total classified-finding count.
	TotalCount float64 `json:"total_count"`

	// TotalDiagnosticErrors is the mean diagnostic error count.
	TotalDiagnosticErrors float64 `json:"total_diagnostic_errors"`

	// SignificanceWeight is the mean significance weight across reviews.
	SignificanceWeight float64 `json:"significance_weight"`

	// RadPeerScore is the mean RADPEER score across reviews.
	RadPeerScore Rate `json:"radpeer_score"`

	// TechnicalPerformanceScore is the mean technical score across reviews.
	TechnicalPerformanceScore Rate `json:"technical_performance_score"`

	// FalsePositiveRate is the collapsed false positive rate.
	FalsePositiveRate Rate `json:"false_positive_rate"`

	// FalseNegativeRate is the collapsed false negative rate.
	FalseNegativeRate Rate `json:"false_negative_rate"`

	// ErrorRate is the collapsed diagnostic error rate.
	ErrorRate Rate `json:"error_rate"`

	// WeightedFalsePositiveRate is the collapsed significance-weighted
	// false positive rate.
	WeightedFalsePositiveRate Rate `json:"weighted_false_positive_rate"`

	// WeightedFalseNegativeRate is the collapsed significance-weighted
	// false negative rate.
	WeightedFalseNegativeRate Rate `json:"weighted_false_negative_rate"`

	// WeightedErrorRate is the collapsed significance-weighted error rate.
	WeightedErrorRate Rate `json:"weighted_error_rate"`
}
