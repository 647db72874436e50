// Package report renders completed classification runs for humans and for
// downstream tooling.
//
// The renderer works from a persisted run alone, so a stored run re-renders
// identically to the run that produced it. Provider profiles are optional:
// when supplied, the report closes with cross-tabulations of cluster label
// by equipment class and by subspecialty, and any profile row referencing a
// provider absent from the run is surfaced as an integrity warning.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/ahrav/go-radqc/internal/domain"
)

// unknownBucket collects cross-tab rows for providers whose profile is
// missing or whose attribute is blank.
const unknownBucket = "(unknown)"

// Render writes the full human-readable report for run to w: the run header,
// the labeled provider table (bad cluster first), the centroid table in
// scaled and raw units, the clustering diagnostics, optional cross-tabs, and
// the run's integrity warnings.
func Render(w io.Writer, run *domain.Run, profiles []domain.ProviderProfile) error {
	if run == nil {
		return errors.New("run is nil")
	}

	var buf bytes.Buffer
	rows := sortedSummaries(run.Summaries)

	writeHeader(&buf, run, rows)
	writeProviderTable(&buf, rows)
	writeCentroidTable(&buf, run)
	writeDiagnostics(&buf, run.Diagnostics)

	warnings := append([]domain.IntegrityViolation(nil), run.Warnings...)
	if len(profiles) > 0 {
		index := profileIndex(profiles)
		writeCrossTab(&buf, "Label by equipment class", rows, index,
			func(p domain.ProviderProfile) string { return p.EquipmentClass })
		writeCrossTab(&buf, "Label by subspecialty", rows, index,
			func(p domain.ProviderProfile) string { return p.Subspecialty })
		warnings = append(warnings, unmatchedProfiles(profiles, rows)...)
	}
	writeWarnings(&buf, warnings)

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// sortedSummaries orders providers for display: bad cluster first, then good,
// then excluded, with the worst weighted error rate leading each group.
// Providers without a defined weighted error rate sink to the group's end,
// and provider ID breaks the remaining ties so the order is total.
func sortedSummaries(summaries []domain.ProviderSummary) []domain.ProviderSummary {
	rows := append([]domain.ProviderSummary(nil), summaries...)
	sort.Slice(rows, func(i, j int) bool {
		gi, gj := labelGroup(rows[i]), labelGroup(rows[j])
		if gi != gj {
			return gi < gj
		}
		wi, iDefined := rows[i].WeightedErrorRate.Value()
		wj, jDefined := rows[j].WeightedErrorRate.Value()
		if iDefined != jDefined {
			return iDefined
		}
		if iDefined && wi != wj {
			return wi > wj
		}
		return rows[i].ProviderID < rows[j].ProviderID
	})
	return rows
}

// labelGroup orders bad before good before excluded.
func labelGroup(s domain.ProviderSummary) int {
	switch {
	case s.Cluster == nil:
		return 2
	case s.Cluster.Label == domain.LabelBad:
		return 0
	default:
		return 1
	}
}

func labelCell(s domain.ProviderSummary) string {
	if s.Cluster == nil {
		return "excluded"
	}
	return string(s.Cluster.Label)
}

func writeHeader(buf *bytes.Buffer, run *domain.Run, rows []domain.ProviderSummary) {
	clustered := 0
	for _, s := range rows {
		if s.Cluster != nil {
			clustered++
		}
	}

	fmt.Fprintf(buf, "Run %s\n", run.ID)
	fmt.Fprintf(buf, "Pipeline %s, created %s, seed %d\n",
		run.PipelineID, run.CreatedAt.UTC().Format(time.RFC3339), run.Seed)
	fmt.Fprintf(buf, "Providers: %d (%d clustered, %d excluded)\n",
		len(rows), clustered, len(rows)-clustered)
}

func writeProviderTable(buf *bytes.Buffer, rows []domain.ProviderSummary) {
	if len(rows) == 0 {
		fmt.Fprintf(buf, "\nNo providers classified\n")
		return
	}

	cells := make([][]string, 0, len(rows))
	for _, s := range rows {
		cells = append(cells, []string{
			s.ProviderID,
			labelCell(s),
			strconv.Itoa(s.ExamCount),
			formatRate(s.ErrorRate, 4),
			formatRate(s.FalsePositiveRate, 4),
			formatRate(s.FalseNegativeRate, 4),
			formatRate(s.WeightedErrorRate, 4),
			formatRate(s.RadPeerScore, 2),
			formatRate(s.TechnicalPerformanceScore, 2),
		})
	}

	fmt.Fprintf(buf, "\nProviders\n")
	fmt.Fprintln(buf, renderTable(
		[]string{"Provider", "Label", "Exams", "Error Rate", "FP Rate", "FN Rate", "Wtd Error", "RADPEER", "Technical"},
		cells,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
	))
}

// writeCentroidTable renders each feature's centroid coordinates in scaled
// units and, where the fitted parameters can invert them, in raw units.
func writeCentroidTable(buf *bytes.Buffer, run *domain.Run) {
	d := run.Diagnostics
	if d == nil || len(d.Centroids) != 2 {
		return
	}

	goodIdx := d.GoodCluster
	if goodIdx < 0 || goodIdx > 1 {
		goodIdx = 0
	}
	badIdx := 1 - goodIdx

	cells := make([][]string, 0, len(d.FeatureNames))
	for i, feature := range d.FeatureNames {
		if i >= len(d.Centroids[badIdx]) || i >= len(d.Centroids[goodIdx]) {
			break
		}
		badScaled := d.Centroids[badIdx][i]
		goodScaled := d.Centroids[goodIdx][i]
		cells = append(cells, []string{
			feature,
			strconv.FormatFloat(badScaled, 'f', 3, 64),
			strconv.FormatFloat(goodScaled, 'f', 3, 64),
			formatUnscaled(run.Parameters, feature, badScaled),
			formatUnscaled(run.Parameters, feature, goodScaled),
		})
	}

	fmt.Fprintf(buf, "\nCluster centroids\n")
	fmt.Fprintln(buf, renderTable(
		[]string{"Feature", "Bad (scaled)", "Good (scaled)", "Bad (raw)", "Good (raw)"},
		cells,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
	))
}

func writeDiagnostics(buf *bytes.Buffer, d *domain.ClusteringDiagnostics) {
	if d == nil {
		return
	}

	fmt.Fprintf(buf, "\nDiagnostics\n")
	fmt.Fprintf(buf, "  variance explained  %.1f%%\n", d.VarianceRatio*100)
	fmt.Fprintf(buf, "  wcss                %.4f\n", d.WCSS)
	fmt.Fprintf(buf, "  restarts            %d (best %d)\n", d.Restarts, d.BestRestart)
	fmt.Fprintf(buf, "  seed                %d\n", d.Seed)
	if len(d.ClusterSizes) == 2 {
		goodIdx := d.GoodCluster
		if goodIdx < 0 || goodIdx > 1 {
			goodIdx = 0
		}
		fmt.Fprintf(buf, "  cluster sizes       good %d, bad %d\n",
			d.ClusterSizes[goodIdx], d.ClusterSizes[1-goodIdx])
	}
	fmt.Fprintf(buf, "  label policy        %s\n", d.LabelPolicy)
}

func writeCrossTab(buf *bytes.Buffer, title string, rows []domain.ProviderSummary,
	index map[string]domain.ProviderProfile, attr func(domain.ProviderProfile) string,
) {
	type tally struct {
		bad, good, excluded int
	}
	counts := make(map[string]*tally)
	for _, s := range rows {
		bucket := unknownBucket
		if p, ok := index[s.ProviderID]; ok && attr(p) != "" {
			bucket = attr(p)
		}
		t := counts[bucket]
		if t == nil {
			t = &tally{}
			counts[bucket] = t
		}
		switch labelGroup(s) {
		case 0:
			t.bad++
		case 1:
			t.good++
		default:
			t.excluded++
		}
	}

	buckets := make([]string, 0, len(counts))
	for bucket := range counts {
		buckets = append(buckets, bucket)
	}
	sort.Strings(buckets)

	cells := make([][]string, 0, len(buckets))
	for _, bucket := range buckets {
		t := counts[bucket]
		cells = append(cells, []string{
			bucket,
			strconv.Itoa(t.bad),
			strconv.Itoa(t.good),
			strconv.Itoa(t.excluded),
			strconv.Itoa(t.bad + t.good + t.excluded),
		})
	}

	fmt.Fprintf(buf, "\n%s\n", title)
	fmt.Fprintln(buf, renderTable(
		[]string{"Value", "Bad", "Good", "Excluded", "Total"},
		cells,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
	))
}

func writeWarnings(buf *bytes.Buffer, warnings []domain.IntegrityViolation) {
	if len(warnings) == 0 {
		return
	}

	fmt.Fprintf(buf, "\nWarnings (%d)\n", len(warnings))
	for _, v := range warnings {
		fmt.Fprintf(buf, "  - %s\n", v.String())
	}
}

func profileIndex(profiles []domain.ProviderProfile) map[string]domain.ProviderProfile {
	index := make(map[string]domain.ProviderProfile, len(profiles))
	for _, p := range profiles {
		if _, ok := index[p.ProviderID]; !ok {
			index[p.ProviderID] = p
		}
	}
	return index
}

// unmatchedProfiles reports every profile row whose provider has no summary
// in the run. Summaries without a profile are not violations; the left join
// simply leaves their cross-tab buckets unknown.
func unmatchedProfiles(profiles []domain.ProviderProfile, rows []domain.ProviderSummary) []domain.IntegrityViolation {
	known := make(map[string]bool, len(rows))
	for _, s := range rows {
		known[s.ProviderID] = true
	}

	var violations []domain.IntegrityViolation
	warned := make(map[string]bool, len(profiles))
	for _, p := range profiles {
		if known[p.ProviderID] || warned[p.ProviderID] {
			continue
		}
		warned[p.ProviderID] = true
		violations = append(violations, domain.IntegrityViolation{
			Kind: domain.ViolationUnmatchedProfile,
			Key:  fmt.Sprintf("provider %s", p.ProviderID),
		})
	}
	return violations
}

// formatRate renders a rate with fixed precision, or "n/a" when undefined.
func formatRate(r domain.Rate, precision int) string {
	v, ok := r.Value()
	if !ok {
		return "n/a"
	}
	return strconv.FormatFloat(v, 'f', precision, 64)
}

func formatUnscaled(params domain.NormalizationParameters, feature string, scaled float64) string {
	raw, err := params.Unscale(feature, scaled)
	if err != nil {
		return "n/a"
	}
	return strconv.FormatFloat(raw, 'f', 4, 64)
}
