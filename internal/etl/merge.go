package etl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"restaurants/internal/domain"
	"restaurants/internal/storage"
)

// Merge concatenates every partition matching the input pattern into one
// dataset and persists it as the merged artifact. Partitions are read in
// lexical filename order; the schema is the union of their columns, and a
// field missing from a partition is absent in that partition's rows.
func (p *Pipeline) Merge(ctx context.Context) (Artifact, error) {
	files, err := p.discover()
	if err != nil {
		return Artifact{}, stageError(StageMerge, err)
	}
	if len(files) == 0 {
		return Artifact{}, stageError(StageMerge,
			fmt.Errorf("%w: no file matches %s in %s", ErrNotFound, p.paths.Pattern, p.paths.InputDir))
	}

	ds := &domain.Dataset{}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return Artifact{}, stageError(StageMerge, err)
		}
		reader, err := ReaderFor(path)
		if err != nil {
			return Artifact{}, ioFailure(StageMerge, err)
		}
		part, err := reader.Read(ctx, path)
		if err != nil {
			return Artifact{}, ioFailure(StageMerge, fmt.Errorf("read %s: %w", path, err))
		}

		for _, c := range part.Columns {
			ds.AddColumn(c)
		}
		for _, rec := range part.Records {
			ds.Records = append(ds.Records, rec.Decode(p.cols))
		}
		p.log.Debug("partition read", "stage", StageMerge, "path", path, "rows", len(part.Records))
	}
	p.fillMissing(ds)

	if err := storage.WriteParquet(p.paths.Merged, ds, p.cols); err != nil {
		return Artifact{}, ioFailure(StageMerge, err)
	}
	p.log.Info("partitions merged", "stage", StageMerge, "partitions", len(files), "rows", ds.Len(), "path", p.paths.Merged)
	return Artifact{Stage: StageMerge, Path: p.paths.Merged, Rows: ds.Len()}, nil
}

// discover returns the regular files matching the pattern, sorted.
func (p *Pipeline) discover() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(p.paths.InputDir, p.paths.Pattern))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", p.paths.Pattern, err)
	}
	files := matches[:0]
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, m)
	}
	sort.Strings(files)
	return files, nil
}

// fillMissing gives every record an explicit absent marker for attribute
// columns its partition did not have.
func (p *Pipeline) fillMissing(ds *domain.Dataset) {
	for i := range ds.Records {
		rec := &ds.Records[i]
		for _, c := range ds.Columns {
			if c == p.cols.Latitude || c == p.cols.Longitude || c == p.cols.Geohash {
				continue
			}
			if _, ok := rec.Attributes[c]; !ok {
				rec.Attributes[c] = nil
			}
		}
	}
}
