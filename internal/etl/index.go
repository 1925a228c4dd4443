package etl

import (
	"context"
	"fmt"
	"math"

	"github.com/mmcloughlin/geohash"

	"restaurants/internal/storage"
)

// GeohashPrecision is the token length, roughly a 39km x 20km cell.
const GeohashPrecision = 4

// IndexReport summarises one indexing pass.
type IndexReport struct {
	Indexed  int             `json:"indexed"`
	Failures []RecordFailure `json:"failures,omitempty"`
}

// Index derives a geohash for every record with both coordinates. Records
// missing a coordinate get no geohash. Coordinates that cannot be encoded
// leave the geohash absent and are recorded in the report; they never fail
// the stage.
func (p *Pipeline) Index(ctx context.Context, in Artifact) (Artifact, IndexReport, error) {
	var report IndexReport

	ds, err := storage.ReadParquet(in.Path, p.cols)
	if err != nil {
		return Artifact{}, report, ioFailure(StageIndex, err)
	}
	ds.AddColumn(p.cols.Geohash)

	for i := range ds.Records {
		if err := ctx.Err(); err != nil {
			return Artifact{}, report, stageError(StageIndex, err)
		}
		rec := &ds.Records[i]
		rec.Geohash = nil
		if !rec.HasCoordinates() {
			continue
		}

		out := Encode(*rec.Latitude, *rec.Longitude)
		if !out.OK() {
			report.Failures = append(report.Failures, RecordFailure{Stage: StageIndex, Row: i, Err: out.Err})
			p.log.Warn("geohash encoding failed", "stage", StageIndex, "row", i, "error", out.Err)
			continue
		}
		rec.Geohash = &out.Value
		report.Indexed++
	}

	if err := storage.WriteParquet(p.paths.Transformed, ds, p.cols); err != nil {
		return Artifact{}, report, ioFailure(StageIndex, err)
	}
	p.log.Info("records indexed", "stage", StageIndex,
		"rows", ds.Len(), "indexed", report.Indexed, "failed", len(report.Failures))
	return Artifact{Stage: StageIndex, Path: p.paths.Transformed, Rows: ds.Len()}, report, nil
}

// Encode returns the geohash of a coordinate pair at GeohashPrecision.
func Encode(lat, lng float64) (out Outcome[string]) {
	switch {
	case math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0):
		return Absent[string](fmt.Errorf("%w: non-finite coordinate (%v, %v)", ErrEncodingFailed, lat, lng))
	case lat < -90 || lat > 90:
		return Absent[string](fmt.Errorf("%w: latitude %v out of range", ErrEncodingFailed, lat))
	case lng < -180 || lng > 180:
		return Absent[string](fmt.Errorf("%w: longitude %v out of range", ErrEncodingFailed, lng))
	}

	defer func() {
		if r := recover(); r != nil {
			out = Absent[string](fmt.Errorf("%w: %v", ErrEncodingFailed, r))
		}
	}()
	return Resolved(geohash.EncodeWithPrecision(lat, lng, GeohashPrecision))
}
