package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/ahrav/go-radqc/internal/ports"
)

// WriteRunList renders stored run descriptors as a table, in the order
// given. Timestamps are shown in UTC.
func WriteRunList(w io.Writer, infos []ports.RunInfo) error {
	if len(infos) == 0 {
		if _, err := fmt.Fprintln(w, "No runs recorded"); err != nil {
			return fmt.Errorf("write run list: %w", err)
		}
		return nil
	}

	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, []string{
			info.ID,
			info.PipelineID,
			info.CreatedAt.UTC().Format(time.RFC3339),
			strconv.FormatInt(info.Seed, 10),
			strconv.Itoa(info.Providers),
			strconv.Itoa(info.Warnings),
		})
	}

	listing := renderTable(
		[]string{"Run", "Pipeline", "Created", "Seed", "Providers", "Warnings"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
	)
	if _, err := fmt.Fprintln(w, listing); err != nil {
		return fmt.Errorf("write run list: %w", err)
	}
	return nil
}
