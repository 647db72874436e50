package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/ahrav/go-radqc/internal/domain"
)

// WriteReviews writes reviews to w in the exact column layout the review
// source expects, so generated datasets round-trip through ingestion.
// Absent scores are written as empty cells.
func WriteReviews(w io.Writer, reviews []domain.ExamReview) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(reviewColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, review := range reviews {
		record := []string{
			review.ExamID,
			review.ProviderID,
			review.ReviewerID,
			strconv.Itoa(review.TruePositive),
			strconv.Itoa(review.TrueNegative),
			strconv.Itoa(review.FalsePositive),
			strconv.Itoa(review.FalseNegative),
			strconv.Itoa(review.TotalDiagnosticErrors),
			formatScore(review.RadPeerScore),
			formatScore(review.TechnicalPerformanceScore),
			formatScore(review.SignificanceOfErrors),
			review.Attributes.PatientSex,
			strconv.Itoa(review.Attributes.PatientAge),
			review.Attributes.BodyPart,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write review %d: %w", i+1, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteEquipmentTable writes the equipment side table for the given
// profiles. Providers without equipment attributes are skipped.
func WriteEquipmentTable(w io.Writer, profiles []domain.ProviderProfile) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(equipmentColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, p := range profiles {
		if p.EquipmentClass == "" && p.FieldStrength == "" {
			continue
		}
		if err := writer.Write([]string{p.ProviderID, p.EquipmentClass, p.FieldStrength}); err != nil {
			return fmt.Errorf("write provider %s: %w", p.ProviderID, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteSubspecialtyTable writes the subspecialty side table for the given
// profiles. Providers without a subspecialty are skipped.
func WriteSubspecialtyTable(w io.Writer, profiles []domain.ProviderProfile) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(subspecialtyColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, p := range profiles {
		if p.Subspecialty == "" {
			continue
		}
		if err := writer.Write([]string{p.ProviderID, p.Subspecialty}); err != nil {
			return fmt.Errorf("write provider %s: %w", p.ProviderID, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// formatScore renders an optional score, leaving the cell empty when the
// score is absent.
func formatScore(score *float64) string {
	if score == nil {
		return ""
	}
	return strconv.FormatFloat(*score, 'g', -1, 64)
}
