package etl

import (
	"context"

	"restaurants/internal/storage"
)

// Load writes the indexed dataset to the two final outputs: Parquet first,
// then CSV. Rows and columns are written as-is. If the CSV write fails the
// Parquet file stays in place.
func (p *Pipeline) Load(ctx context.Context, in Artifact) (Outputs, error) {
	if err := ctx.Err(); err != nil {
		return Outputs{}, stageError(StageLoad, err)
	}

	ds, err := storage.ReadParquet(in.Path, p.cols)
	if err != nil {
		return Outputs{}, ioFailure(StageLoad, err)
	}

	if err := storage.WriteParquet(p.paths.OutputParquet, ds, p.cols); err != nil {
		return Outputs{}, ioFailure(StageLoad, err)
	}
	out := Outputs{Parquet: Artifact{Stage: StageLoad, Path: p.paths.OutputParquet, Rows: ds.Len()}}

	if err := storage.WriteCSV(p.paths.OutputCSV, ds, p.cols); err != nil {
		return out, ioFailure(StageLoad, err)
	}
	out.CSV = Artifact{Stage: StageLoad, Path: p.paths.OutputCSV, Rows: ds.Len()}

	p.log.Info("outputs written", "stage", StageLoad,
		"rows", ds.Len(), "parquet", out.Parquet.Path, "csv", out.CSV.Path)
	return out, nil
}
