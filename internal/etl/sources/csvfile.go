package sources

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"restaurants/internal/etl"
)

// ── CSV File Reader ─────────────────────────────────────────
// Reads a partition from a local CSV file with a header row.

type csvFileReader struct{}

func init() { etl.RegisterReader(&csvFileReader{}) }

func (r *csvFileReader) Format() string { return "csv" }

func (r *csvFileReader) Extensions() []string { return []string{".csv"} }

func (r *csvFileReader) Read(ctx context.Context, path string) (*etl.Partition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty csv file: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("parse csv header: %w", err)
	}
	headers = normalizeHeaders(headers)

	part := &etl.Partition{Path: path, Columns: headers}
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv line %d: %w", line, err)
		}

		data := make(map[string]*string, len(headers))
		for j, h := range headers {
			if j < len(row) {
				data[h] = cellValue(row[j])
			} else {
				data[h] = nil
			}
		}
		part.Records = append(part.Records, etl.Record{Data: data})
	}
	return part, nil
}

// normalizeHeaders trims names and renames blank or duplicate headers so
// every column stays addressable.
func normalizeHeaders(headers []string) []string {
	out := make([]string, len(headers))
	seen := make(map[string]int, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
		if h == "" {
			h = fmt.Sprintf("col_%d", i+1)
		}
		if n := seen[h]; n > 0 {
			seen[h] = n + 1
			h = fmt.Sprintf("%s.%d", h, n)
		} else {
			seen[h] = 1
		}
		out[i] = h
	}
	return out
}

// Tokens read as missing values, in addition to the empty cell.
var naTokens = map[string]bool{
	"NA": true, "N/A": true, "NaN": true, "nan": true,
	"null": true, "NULL": true, "None": true,
}

// cellValue returns nil for missing cells. Other cells are kept verbatim,
// surrounding whitespace included.
func cellValue(s string) *string {
	if s == "" || naTokens[s] {
		return nil
	}
	return &s
}
