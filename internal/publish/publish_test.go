package publish

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurants/internal/config"
	"restaurants/internal/domain"
)

func sampleDataset() *domain.Dataset {
	return &domain.Dataset{
		Columns: []string{"name", "city", "lat", "lng", "geohash"},
		Records: []domain.Restaurant{
			{
				Latitude:   domain.FloatPtr(48.8566),
				Longitude:  domain.FloatPtr(2.3522),
				Geohash:    domain.StringPtr("u09t"),
				Attributes: map[string]*string{"name": domain.StringPtr("Chez Paul"), "city": domain.StringPtr("Paris")},
			},
			{
				Attributes: map[string]*string{"name": domain.StringPtr("Nowhere Diner"), "city": nil},
			},
		},
	}
}

func TestSQLiteSink_ReplacesTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "published.db")
	sink, err := NewSink(config.Publish{Driver: "sqlite", Database: path, Table: "restaurants"})
	require.NoError(t, err)
	defer sink.Close()

	ctx := context.Background()
	n, err := sink.Publish(ctx, sampleDataset(), domain.DefaultColumns())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// A second publish replaces rather than appends.
	n, err = sink.Publish(ctx, sampleDataset(), domain.DefaultColumns())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "restaurants"`).Scan(&count))
	assert.Equal(t, 2, count)

	var name string
	var lat sql.NullFloat64
	var hash sql.NullString
	require.NoError(t, db.QueryRow(`SELECT name, lat, geohash FROM "restaurants" WHERE name = ?`, "Nowhere Diner").Scan(&name, &lat, &hash))
	assert.False(t, lat.Valid)
	assert.False(t, hash.Valid)

	require.NoError(t, db.QueryRow(`SELECT lat, geohash FROM "restaurants" WHERE name = ?`, "Chez Paul").Scan(&lat, &hash))
	assert.InDelta(t, 48.8566, lat.Float64, 1e-9)
	assert.Equal(t, "u09t", hash.String)
}

func TestNewSink_UnknownDriver(t *testing.T) {
	_, err := NewSink(config.Publish{Driver: "oracle"})
	assert.Error(t, err)
}

func TestStatements(t *testing.T) {
	s := &sqlSink{dialect: postgresDialect, table: "out"}
	assert.Equal(t, `INSERT INTO "out" ("name", "lat") VALUES ($1, $2)`, s.insert([]string{"name", "lat"}))
	assert.Equal(t, `CREATE TABLE "out" ("name" TEXT, "lat" DOUBLE PRECISION)`,
		s.createTable([]string{"name", "lat"}, domain.DefaultColumns()))

	m := &sqlSink{dialect: mysqlDialect, table: "out"}
	assert.Equal(t, "INSERT INTO `out` (`name`) VALUES (?)", m.insert([]string{"name"}))
}

func TestDSNBuilders(t *testing.T) {
	cfg := config.Publish{Host: "db", Username: "etl", Password: "pw", Database: "geo"}
	assert.Equal(t, "etl:pw@tcp(db:3306)/geo?parseTime=true&charset=utf8mb4", buildMySQLDSN(cfg))
	assert.Equal(t, "host=db port=5432 user=etl password=pw dbname=geo sslmode=disable", buildPostgresDSN(cfg))
	assert.Equal(t, "mongodb://etl:pw@db:27017", buildMongoURI(cfg))
	assert.Equal(t, "mongodb+srv://etl:pw@cluster", buildMongoURI(config.Publish{Host: "mongodb+srv://etl:<password>@cluster", Password: "pw"}))
}
