// Package publish copies the final dataset into an external database.
package publish

import (
	"context"
	"fmt"

	"restaurants/internal/config"
	"restaurants/internal/domain"
)

// Sink replaces the contents of one table or collection with a dataset.
type Sink interface {
	// Publish writes every record of ds, replacing what the target held.
	// It returns the number of rows written.
	Publish(ctx context.Context, ds *domain.Dataset, cols domain.ColumnNames) (int, error)

	// Close releases the connection.
	Close() error
}

// NewSink creates a Sink for the configured driver.
func NewSink(cfg config.Publish) (Sink, error) {
	table := cfg.Table
	if table == "" {
		table = "restaurants"
	}
	switch cfg.Driver {
	case "sqlite":
		if cfg.Database == "" {
			return nil, fmt.Errorf("publish: sqlite needs a database file")
		}
		return newSQLSink(sqliteDialect, buildSQLiteDSN(cfg), table)
	case "mysql":
		return newSQLSink(mysqlDialect, buildMySQLDSN(cfg), table)
	case "postgres":
		return newSQLSink(postgresDialect, buildPostgresDSN(cfg), table)
	case "mongodb":
		return newMongoSink(cfg, table)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}
}

// value returns the cell of column name: coordinates as float64, everything
// else as string, nil when absent.
func value(rec *domain.Restaurant, name string, cols domain.ColumnNames) any {
	switch name {
	case cols.Latitude:
		if rec.Latitude != nil {
			return *rec.Latitude
		}
	case cols.Longitude:
		if rec.Longitude != nil {
			return *rec.Longitude
		}
	case cols.Geohash:
		if rec.Geohash != nil {
			return *rec.Geohash
		}
	default:
		if v := rec.Attributes[name]; v != nil {
			return *v
		}
	}
	return nil
}
