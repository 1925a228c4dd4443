package etl

import (
	"math"
	"strconv"
	"strings"

	"restaurants/internal/domain"
)

// ── Record ─────────────────────────────────────────────────
// Partition readers emit raw Records; the merger decodes them into typed
// restaurants. A nil value in Data is the absent-value marker.

// Record is a single raw row read from a partition.
type Record struct {
	Data map[string]*string
}

// Partition is one parsed input file.
type Partition struct {
	Path    string
	Columns []string // header order
	Records []Record
}

// Decode converts a raw record into a Restaurant. Coordinates that are not
// finite numbers are treated as absent.
func (r Record) Decode(cols domain.ColumnNames) domain.Restaurant {
	rec := domain.Restaurant{Attributes: make(map[string]*string, len(r.Data))}
	for name, v := range r.Data {
		switch name {
		case cols.Latitude:
			rec.Latitude = parseCoordinate(v)
		case cols.Longitude:
			rec.Longitude = parseCoordinate(v)
		case cols.Geohash:
			if v != nil && *v != "" {
				rec.Geohash = domain.StringPtr(*v)
			}
		default:
			rec.Attributes[name] = v
		}
	}
	return rec
}

func parseCoordinate(v *string) *float64 {
	if v == nil {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(*v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
