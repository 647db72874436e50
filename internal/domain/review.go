package domain

// ExamAttributes carries the descriptive attributes recorded alongside an
// exam review. Duplicate reviews of the same exam are expected to agree on
// these values; divergence is reported as an integrity violation.
type ExamAttributes struct {
	// PatientSex is the recorded sex of the patient.
	PatientSex string `json:"patient_sex"`

	// PatientAge is the recorded age of the patient in years.
	PatientAge int `json:"patient_age"`

	// BodyPart names the anatomical region covered by the exam.
	BodyPart string `json:"body_part"`
}

// ExamReview is a single peer review of one imaging exam. It is the raw
// input unit of the pipeline: one reviewer's confusion-matrix counts and
// quality scores for one exam read by one provider.
type ExamReview struct {
	// ExamID identifies the reviewed exam.
	ExamID string `json:"exam_id"`

	// ProviderID identifies the provider whose read is being reviewed.
	ProviderID string `json:"provider_id"`

	// ReviewerID identifies the peer reviewer.
	ReviewerID string `json:"reviewer_id"`

	// Attributes holds the exam's descriptive attributes.
	Attributes ExamAttributes `json:"attributes"`

	// TruePositive counts findings correctly identified by the provider.
	TruePositive int `json:"true_positive"`

	// TrueNegative counts absences correctly identified by the provider.
	TrueNegative int `json:"true_negative"`

	// FalsePositive counts findings reported by the provider that the
	// reviewer judged absent.
	FalsePositive int `json:"false_positive"`

	// FalseNegative counts findings missed by the provider.
	FalseNegative int `json:"false_negative"`

	// TotalDiagnosticErrors counts all diagnostic errors the reviewer
	// attributed to the read, regardless of direction.
	TotalDiagnosticErrors int `json:"total_diagnostic_errors"`

	// RadPeerScore is the reviewer's RADPEER quality score for the read.
	// It is nil when the reviewer recorded no score.
	RadPeerScore *float64 `json:"radpeer_score,omitempty"`

	// TechnicalPerformanceScore rates the technical quality of the exam.
	// It is nil when the reviewer recorded no score.
	TechnicalPerformanceScore *float64 `json:"technical_performance_score,omitempty"`

	// SignificanceOfErrors weights the clinical significance of the errors
	// found. It is nil when the reviewer recorded no significance rating.
	SignificanceOfErrors *float64 `json:"significance_of_errors,omitempty"`
}

// ReviewMetrics holds the quantities derived from one review's raw counts.
// Rates keep their undefined marker when the corresponding denominator was
// zero; derivation itself never fails.
type ReviewMetrics struct {
	// NegativeCount is the number of reviewer-confirmed negatives,
	// the denominator of the false positive rate.
	NegativeCount int `json:"negative_count"`

	// PositiveCount is the number of reviewer-confirmed positives,
	// the denominator of the false negative rate.
	PositiveCount int `json:"positive_count"`

	// TotalCount is the total number of classified findings,
	// the denominator of the error rate.
	TotalCount int `json:"total_count"`

	// FalsePositiveRate is FP over NegativeCount.
	FalsePositiveRate Rate `json:"false_positive_rate"`

	// FalseNegativeRate is FN over PositiveCount.
	FalseNegativeRate Rate `json:"false_negative_rate"`

	// ErrorRate is TotalDiagnosticErrors over TotalCount.
	ErrorRate Rate `json:"error_rate"`

	// SignificanceWeight is the recorded significance of errors, or zero
	// when the reviewer left it blank.
	SignificanceWeight float64 `json:"significance_weight"`

	// WeightedFalsePositiveRate is FalsePositiveRate scaled by
	// SignificanceWeight. Undefined inputs stay undefined.
	WeightedFalsePositiveRate Rate `json:"weighted_false_positive_rate"`

	// WeightedFalseNegativeRate is FalseNegativeRate scaled by
	// SignificanceWeight. Undefined inputs stay undefined.
	WeightedFalseNegativeRate Rate `json:"weighted_false_negative_rate"`

	// WeightedErrorRate is ErrorRate scaled by SignificanceWeight.
	// Undefined inputs stay undefined.
	WeightedErrorRate Rate `json:"weighted_error_rate"`
}

// DerivedReview pairs a raw review with its derived metrics.
type DerivedReview struct {
	// Review is the original, unmodified review.
	Review ExamReview `json:"review"`

	// Metrics holds the quantities derived from the review's counts.
	Metrics ReviewMetrics `json:"metrics"`
}
