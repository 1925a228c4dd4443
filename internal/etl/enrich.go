package etl

import (
	"context"
	"fmt"

	"restaurants/internal/config"
	"restaurants/internal/geocode"
	"restaurants/internal/secret"
	"restaurants/internal/storage"
)

// EnrichReport summarises the lookups of one enrichment pass.
type EnrichReport struct {
	Lookups  int             `json:"lookups"`
	Resolved int             `json:"resolved"`
	Failures []RecordFailure `json:"failures,omitempty"`
}

// Enrich fills missing coordinates by geocoding "<city>, <country>".
//
// The credential is resolved before the artifact is read; without it the
// stage fails with ErrConfigurationMissing and writes nothing. Records that
// already carry both coordinates are never looked up. A failed lookup
// leaves both coordinates absent and is recorded in the report.
func (p *Pipeline) Enrich(ctx context.Context, in Artifact) (Artifact, EnrichReport, error) {
	var report EnrichReport

	cred, err := secret.Resolve(p.secrets, config.CredentialKey)
	if err != nil {
		return Artifact{}, report, stageError(StageEnrich, fmt.Errorf("%w: %w", ErrConfigurationMissing, err))
	}
	if !cred.Found {
		return Artifact{}, report, stageError(StageEnrich,
			fmt.Errorf("%w: %s is not set", ErrConfigurationMissing, config.CredentialKey))
	}

	ds, err := storage.ReadParquet(in.Path, p.cols)
	if err != nil {
		return Artifact{}, report, ioFailure(StageEnrich, err)
	}
	ds.AddColumn(p.cols.Latitude)
	ds.AddColumn(p.cols.Longitude)

	lookup, err := geocode.NewCached(p.geocoder, p.cacheSize)
	if err != nil {
		return Artifact{}, report, stageError(StageEnrich, fmt.Errorf("geocode cache: %w", err))
	}

	for i := range ds.Records {
		if err := ctx.Err(); err != nil {
			return Artifact{}, report, stageError(StageEnrich, err)
		}
		rec := &ds.Records[i]
		if rec.HasCoordinates() {
			continue
		}

		query := fmt.Sprintf("%s, %s", rec.Attr(p.cols.City), rec.Attr(p.cols.Country))
		report.Lookups++
		out := locate(ctx, lookup, cred.Value, query)
		if !out.OK() {
			rec.ClearCoordinates()
			report.Failures = append(report.Failures, RecordFailure{
				Stage: StageEnrich, Row: i, Query: query, Err: out.Err,
			})
			p.log.Warn("geocoding failed", "stage", StageEnrich, "row", i, "query", query, "error", out.Err)
			continue
		}
		rec.SetCoordinates(out.Value.Lat, out.Value.Lng)
		report.Resolved++
	}

	if err := storage.WriteParquet(p.paths.Enriched, ds, p.cols); err != nil {
		return Artifact{}, report, ioFailure(StageEnrich, err)
	}
	p.log.Info("records enriched", "stage", StageEnrich,
		"rows", ds.Len(), "lookups", report.Lookups, "resolved", report.Resolved, "failed", len(report.Failures))
	return Artifact{Stage: StageEnrich, Path: p.paths.Enriched, Rows: ds.Len()}, report, nil
}

func locate(ctx context.Context, g geocode.Geocoder, apiKey, query string) Outcome[geocode.Point] {
	pt, err := g.Geocode(ctx, apiKey, query)
	if err != nil {
		return Absent[geocode.Point](fmt.Errorf("%w: %w", ErrLookupFailed, err))
	}
	return Resolved(pt)
}
