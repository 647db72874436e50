package ingest

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ahrav/go-radqc/internal/domain"
	"github.com/ahrav/go-radqc/internal/ports"
)

// reviewColumns is the header contract of the exam review table.
var reviewColumns = []string{
	"exam_id",
	"provider_id",
	"reviewer_id",
	"true_positive",
	"true_negative",
	"false_positive",
	"false_negative",
	"total_diagnostic_errors",
	"radpeer_score",
	"technical_performance_score",
	"significance_of_errors",
	"patient_sex",
	"patient_age",
	"body_part",
}

// CSVReviewSource loads exam reviews from a CSV snapshot.
// The file must carry exactly the documented columns; the score columns
// may be empty per cell, every count column must hold a non-negative
// integer.
type CSVReviewSource struct {
	path string
}

var _ ports.ReviewSource = (*CSVReviewSource)(nil)

// NewCSVReviewSource creates a review source reading from the given file.
func NewCSVReviewSource(path string) (*CSVReviewSource, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: review file path is empty", domain.ErrInvalidConfiguration)
	}
	return &CSVReviewSource{path: filepath.Clean(path)}, nil
}

// Reviews loads every exam review from the file, in file order.
func (s *CSVReviewSource) Reviews(ctx context.Context) ([]domain.ExamReview, error) {
	var reviews []domain.ExamReview

	err := readTable(ctx, s.path, reviewColumns, func(num int, row tableRow) error {
		review, err := parseReview(row)
		if err != nil {
			return err
		}
		reviews = append(reviews, review)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reviews, nil
}

// parseReview converts one CSV record into an ExamReview.
func parseReview(row tableRow) (domain.ExamReview, error) {
	review := domain.ExamReview{
		ExamID:     row.field("exam_id"),
		ProviderID: row.field("provider_id"),
		ReviewerID: row.field("reviewer_id"),
		Attributes: domain.ExamAttributes{
			PatientSex: row.field("patient_sex"),
			BodyPart:   row.field("body_part"),
		},
	}
	if review.ExamID == "" {
		return review, fmt.Errorf("%w: exam_id is empty", ports.ErrMalformedRecord)
	}
	if review.ProviderID == "" {
		return review, fmt.Errorf("%w: provider_id is empty", ports.ErrMalformedRecord)
	}

	counts := []struct {
		column string
		target *int
	}{
		{"true_positive", &review.TruePositive},
		{"true_negative", &review.TrueNegative},
		{"false_positive", &review.FalsePositive},
		{"false_negative", &review.FalseNegative},
		{"total_diagnostic_errors", &review.TotalDiagnosticErrors},
		{"patient_age", &review.Attributes.PatientAge},
	}
	for _, c := range counts {
		v, err := parseCount(c.column, row.field(c.column))
		if err != nil {
			return review, err
		}
		*c.target = v
	}

	scores := []struct {
		column string
		target **float64
	}{
		{"radpeer_score", &review.RadPeerScore},
		{"technical_performance_score", &review.TechnicalPerformanceScore},
		{"significance_of_errors", &review.SignificanceOfErrors},
	}
	for _, sc := range scores {
		v, err := parseOptionalScore(sc.column, row.field(sc.column))
		if err != nil {
			return review, err
		}
		*sc.target = v
	}

	return review, nil
}
