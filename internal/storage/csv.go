package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"restaurants/internal/domain"
)

// WriteCSV persists ds as a comma-separated file with a header row, in the
// dataset's column order. Absent values are written as empty cells.
func WriteCSV(path string, ds *domain.Dataset, cols domain.ColumnNames) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(ds.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	line := make([]string, len(ds.Columns))
	for i := range ds.Records {
		rec := &ds.Records[i]
		for j, name := range ds.Columns {
			line[j] = cell(rec, name, cols)
		}
		if err := w.Write(line); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return f.Close()
}

func cell(rec *domain.Restaurant, name string, cols domain.ColumnNames) string {
	switch name {
	case cols.Latitude:
		return formatFloat(rec.Latitude)
	case cols.Longitude:
		return formatFloat(rec.Longitude)
	case cols.Geohash:
		if rec.Geohash != nil {
			return *rec.Geohash
		}
		return ""
	default:
		return rec.Attr(name)
	}
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
