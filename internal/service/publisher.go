package service

import (
	"context"
	"fmt"

	"restaurants/internal/config"
	"restaurants/internal/domain"
	"restaurants/internal/publish"
	"restaurants/internal/storage"
)

// Publisher copies a finished dataset somewhere else.
type Publisher interface {
	Publish(ctx context.Context, parquetPath string) (int, error)
}

// SinkPublisher reads the final Parquet output and hands it to a
// publish.Sink opened per call.
type SinkPublisher struct {
	Config  config.Publish
	Columns domain.ColumnNames
	// Open defaults to publish.NewSink.
	Open func(config.Publish) (publish.Sink, error)
}

func (p *SinkPublisher) Publish(ctx context.Context, parquetPath string) (int, error) {
	ds, err := storage.ReadParquet(parquetPath, p.Columns)
	if err != nil {
		return 0, fmt.Errorf("read output: %w", err)
	}
	open := p.Open
	if open == nil {
		open = publish.NewSink
	}
	sink, err := open(p.Config)
	if err != nil {
		return 0, err
	}
	defer sink.Close()

	n, err := sink.Publish(ctx, ds, p.Columns)
	if err != nil {
		return 0, fmt.Errorf("publish to %s: %w", p.Config.Driver, err)
	}
	return n, nil
}
