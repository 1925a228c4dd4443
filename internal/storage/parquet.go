package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"restaurants/internal/domain"
)

// ── Parquet artifacts ──────────────────────────────────────
// Every staged artifact and the final columnar output is a Parquet file with
// one optional column per dataset column: DOUBLE for the coordinates, UTF8
// strings for everything else. Parquet groups sort their fields, so the
// dataset's column order is kept in the file's key/value metadata.

const columnOrderKey = "restaurants.columns"

// WriteParquet persists ds at path, overwriting any existing file.
func WriteParquet(path string, ds *domain.Dataset, cols domain.ColumnNames) error {
	if len(ds.Columns) == 0 {
		return fmt.Errorf("write %s: dataset has no columns", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}

	group := parquet.Group{}
	for _, name := range ds.Columns {
		if isCoordinate(name, cols) {
			group[name] = parquet.Optional(parquet.Leaf(parquet.DoubleType))
		} else {
			group[name] = parquet.Optional(parquet.String())
		}
	}
	schema := parquet.NewSchema("restaurant", group)
	leaves := leafNames(schema)

	order, err := json.Marshal(ds.Columns)
	if err != nil {
		return fmt.Errorf("encode column order: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := parquet.NewWriter(f, schema, parquet.KeyValueMetadata(columnOrderKey, string(order)))

	rows := make([]parquet.Row, 0, len(ds.Records))
	for i := range ds.Records {
		rows = append(rows, encodeRow(&ds.Records[i], leaves, cols))
	}
	if _, err := w.WriteRows(rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return f.Close()
}

// ReadParquet loads a dataset previously written by WriteParquet.
func ReadParquet(path string, cols domain.ColumnNames) (*domain.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("parse parquet %s: %w", path, err)
	}

	leaves := leafNames(pf.Schema())
	ds := &domain.Dataset{}
	if order, ok := pf.Lookup(columnOrderKey); ok {
		if err := json.Unmarshal([]byte(order), &ds.Columns); err != nil {
			return nil, fmt.Errorf("decode column order: %w", err)
		}
	} else {
		ds.Columns = append(ds.Columns, leaves...)
	}

	buf := make([]parquet.Row, 128)
	for _, rg := range pf.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, row := range buf[:n] {
				ds.Records = append(ds.Records, decodeRow(row, leaves, cols))
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("read rows: %w", err)
			}
		}
		rows.Close()
	}
	return ds, nil
}

func isCoordinate(name string, cols domain.ColumnNames) bool {
	return name == cols.Latitude || name == cols.Longitude
}

// leafNames maps parquet column indexes to dataset column names.
func leafNames(schema *parquet.Schema) []string {
	paths := schema.Columns()
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = p[0]
	}
	return names
}

func encodeRow(rec *domain.Restaurant, leaves []string, cols domain.ColumnNames) parquet.Row {
	row := make(parquet.Row, len(leaves))
	for i, name := range leaves {
		var v any
		switch name {
		case cols.Latitude:
			if rec.Latitude != nil {
				v = *rec.Latitude
			}
		case cols.Longitude:
			if rec.Longitude != nil {
				v = *rec.Longitude
			}
		case cols.Geohash:
			if rec.Geohash != nil {
				v = *rec.Geohash
			}
		default:
			if s := rec.Attributes[name]; s != nil {
				v = *s
			}
		}
		if v == nil {
			row[i] = parquet.NullValue().Level(0, 0, i)
		} else {
			row[i] = parquet.ValueOf(v).Level(0, 1, i)
		}
	}
	return row
}

func decodeRow(row parquet.Row, leaves []string, cols domain.ColumnNames) domain.Restaurant {
	rec := domain.Restaurant{Attributes: make(map[string]*string, len(leaves))}
	for _, v := range row {
		name := leaves[v.Column()]
		switch name {
		case cols.Latitude:
			if !v.IsNull() {
				rec.Latitude = domain.FloatPtr(v.Double())
			}
		case cols.Longitude:
			if !v.IsNull() {
				rec.Longitude = domain.FloatPtr(v.Double())
			}
		case cols.Geohash:
			if !v.IsNull() {
				rec.Geohash = domain.StringPtr(string(v.ByteArray()))
			}
		default:
			if v.IsNull() {
				rec.Attributes[name] = nil
			} else {
				rec.Attributes[name] = domain.StringPtr(string(v.ByteArray()))
			}
		}
	}
	return rec
}
