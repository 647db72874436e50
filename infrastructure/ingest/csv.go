// Package ingest loads exam reviews and provider profiles from CSV
// snapshots. Parsing is strict: the header must match the documented
// contract exactly, and a malformed cell aborts the load with an error
// naming the offending row rather than silently skipping data.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ahrav/go-radqc/internal/domain"
	"github.com/ahrav/go-radqc/internal/ports"
)

// tableRow is one parsed CSV record with named column access.
type tableRow struct {
	record []string
	index  map[string]int
}

// field returns the trimmed cell value of the given column.
func (r tableRow) field(column string) string {
	return strings.TrimSpace(r.record[r.index[column]])
}

// readTable streams the CSV file at path through the row callback after
// validating the header against the expected column set. Row numbers are
// 1-based and include the header row.
func readTable(ctx context.Context, path string, expected []string, row func(num int, r tableRow) error) error {
	f, err := os.Open(path)
	if err != nil {
		return ports.NewSourceError(path, 0, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return ports.NewSourceError(path, 0, fmt.Errorf("%w: file has no header row", domain.ErrInvalidConfiguration))
	}
	if err != nil {
		return ports.NewSourceError(path, 1, err)
	}
	index, err := headerIndex(path, header, expected)
	if err != nil {
		return err
	}

	num := 1
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		num++
		if err != nil {
			return ports.NewSourceError(path, num, fmt.Errorf("%w: %v", ports.ErrMalformedRecord, err))
		}
		if err := row(num, tableRow{record: record, index: index}); err != nil {
			return ports.NewSourceError(path, num, err)
		}
	}
}

// headerIndex maps expected column names to their positions. Unknown,
// duplicated, or missing columns are configuration errors: the contract is
// exact so a silently renamed column can never shift data into the wrong
// field.
func headerIndex(path string, header, expected []string) (map[string]int, error) {
	want := make(map[string]bool, len(expected))
	for _, name := range expected {
		want[name] = true
	}

	index := make(map[string]int, len(expected))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if !want[name] {
			return nil, ports.NewSourceError(path, 1,
				fmt.Errorf("%w: unknown column %q", domain.ErrInvalidConfiguration, name))
		}
		if _, dup := index[name]; dup {
			return nil, ports.NewSourceError(path, 1,
				fmt.Errorf("%w: duplicate column %q", domain.ErrInvalidConfiguration, name))
		}
		index[name] = i
	}
	for _, name := range expected {
		if _, ok := index[name]; !ok {
			return nil, ports.NewSourceError(path, 1, fmt.Errorf("%w: %q", ports.ErrMissingColumn, name))
		}
	}
	return index, nil
}

// parseCount parses a required non-negative integer cell.
func parseCount(column, cell string) (int, error) {
	v, err := strconv.Atoi(cell)
	if err != nil {
		return 0, fmt.Errorf("%w: column %s: %q is not an integer", ports.ErrMalformedRecord, column, cell)
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: column %s: %d must be non-negative", ports.ErrMalformedRecord, column, v)
	}
	return v, nil
}

// parseOptionalScore parses a float cell that may be empty. An empty cell
// means the reviewer recorded no value and yields nil.
func parseOptionalScore(column, cell string) (*float64, error) {
	if cell == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: column %s: %q is not a number", ports.ErrMalformedRecord, column, cell)
	}
	return &v, nil
}
