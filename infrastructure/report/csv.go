package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/ahrav/go-radqc/internal/domain"
)

// summaryColumns lists the CSV export columns in order. Undefined rates
// export as empty cells, matching the optional-score convention of the
// ingestion format.
var summaryColumns = []string{
	"provider_id",
	"label",
	"cluster",
	"exam_count",
	"radpeer_score",
	"technical_performance_score",
	"false_positive_rate",
	"false_negative_rate",
	"error_rate",
	"weighted_false_positive_rate",
	"weighted_false_negative_rate",
	"weighted_error_rate",
}

// WriteSummaryCSV exports the labeled provider table as CSV for downstream
// tooling, in the same bad-first order the rendered report uses. Excluded
// providers carry the label "excluded" and an empty cluster cell.
func WriteSummaryCSV(w io.Writer, run *domain.Run) error {
	if run == nil {
		return errors.New("run is nil")
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(summaryColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, s := range sortedSummaries(run.Summaries) {
		cluster := ""
		if s.Cluster != nil {
			cluster = strconv.Itoa(s.Cluster.ClusterIndex)
		}
		record := []string{
			s.ProviderID,
			labelCell(s),
			cluster,
			strconv.Itoa(s.ExamCount),
			csvRate(s.RadPeerScore),
			csvRate(s.TechnicalPerformanceScore),
			csvRate(s.FalsePositiveRate),
			csvRate(s.FalseNegativeRate),
			csvRate(s.ErrorRate),
			csvRate(s.WeightedFalsePositiveRate),
			csvRate(s.WeightedFalseNegativeRate),
			csvRate(s.WeightedErrorRate),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write provider %s: %w", s.ProviderID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush summary: %w", err)
	}
	return nil
}

func csvRate(r domain.Rate) string {
	v, ok := r.Value()
	if !ok {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
