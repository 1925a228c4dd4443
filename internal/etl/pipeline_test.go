package etl_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurants/internal/config"
	"restaurants/internal/domain"
	"restaurants/internal/etl"
	_ "restaurants/internal/etl/sources"
	"restaurants/internal/geocode"
	"restaurants/internal/secret"
	"restaurants/internal/storage"
)

const header = "name,city,country,lat,lng\n"

type fixture struct {
	cfg     *config.Config
	paths   config.Paths
	calls   []string
	secrets secret.SecretStore
	// answers maps a query to its result; unknown queries have no match.
	answers map[string]geocode.Point
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = filepath.Join(root, "data")
	cfg.DestDir = filepath.Join(root, "destination")
	require.NoError(t, os.MkdirAll(cfg.DataDir, 0755))
	return &fixture{
		cfg:     cfg,
		paths:   cfg.Paths(),
		secrets: secret.MapStore{config.CredentialKey: "test-key"},
		answers: map[string]geocode.Point{},
	}
}

func (f *fixture) partition(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.paths.InputDir, name), []byte(content), 0644))
}

func (f *fixture) pipeline(opts ...func(*etl.Options)) *etl.Pipeline {
	o := etl.Options{
		Paths:   f.paths,
		Columns: f.cfg.Columns,
		Secrets: f.secrets,
		Geocoder: geocode.Func(func(_ context.Context, apiKey, query string) (geocode.Point, error) {
			f.calls = append(f.calls, query)
			if apiKey != "test-key" {
				return geocode.Point{}, errors.New("http 401: invalid key")
			}
			if p, ok := f.answers[query]; ok {
				return p, nil
			}
			return geocode.Point{}, geocode.ErrNoMatch
		}),
	}
	for _, fn := range opts {
		fn(&o)
	}
	return etl.New(o)
}

func readArtifact(t *testing.T, path string) *domain.Dataset {
	t.Helper()
	ds, err := storage.ReadParquet(path, domain.DefaultColumns())
	require.NoError(t, err)
	return ds
}

// ── Merge ──────────────────────────────────────────────────

func TestMerge_PreservesRowCountAndUnionsColumns(t *testing.T) {
	f := newFixture(t)
	f.partition(t, "part-0002.csv", "name,city,country,category\n"+
		"Sushi Zen,Tokyo,Japan,japanese\n"+
		"Sushi Zen,Tokyo,Japan,japanese\n")
	f.partition(t, "part-0001.csv", header+
		"Chez Paul,Paris,France,48.8566,2.3522\n"+
		"Da Mario,Rome,Italy,41.9028,12.4964\n"+
		"Taco Loco,Mexico City,Mexico,19.4326,-99.1332\n")
	f.partition(t, "notes.csv", header+"Ignored,Nowhere,None,1,1\n")

	art, err := f.pipeline().Merge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, etl.StageMerge, art.Stage)
	assert.Equal(t, f.paths.Merged, art.Path)
	assert.Equal(t, 5, art.Rows)

	ds := readArtifact(t, art.Path)
	require.Equal(t, 5, ds.Len())
	assert.Equal(t, []string{"name", "city", "country", "lat", "lng", "category"}, ds.Columns)

	// part-0001 first, duplicates kept.
	assert.Equal(t, "Chez Paul", ds.Records[0].Attr("name"))
	assert.Nil(t, ds.Records[0].Attributes["category"])
	assert.Equal(t, "Sushi Zen", ds.Records[3].Attr("name"))
	assert.Equal(t, "Sushi Zen", ds.Records[4].Attr("name"))
	assert.False(t, ds.Records[4].HasCoordinates())
}

func TestMerge_NoPartitions(t *testing.T) {
	f := newFixture(t)
	f.partition(t, "other.csv", header)

	_, err := f.pipeline().Merge(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, etl.ErrNotFound)
	assert.Equal(t, etl.StageMerge, etl.FailedStage(err))
	assert.NoFileExists(t, f.paths.Merged)
}

func TestMerge_UnreadablePartition(t *testing.T) {
	f := newFixture(t)
	f.partition(t, "part-0001.csv", "")

	_, err := f.pipeline().Merge(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, etl.ErrIOFailure)
	assert.NoFileExists(t, f.paths.Merged)
}

// ── Enrich ─────────────────────────────────────────────────

func TestEnrich_MissingCredential(t *testing.T) {
	f := newFixture(t)
	f.partition(t, "part-0001.csv", header+"Ghost,Paris,France,,\n")
	f.secrets = secret.MapStore{}
	p := f.pipeline()

	merged, err := p.Merge(context.Background())
	require.NoError(t, err)

	_, _, err = p.Enrich(context.Background(), merged)
	require.Error(t, err)
	assert.ErrorIs(t, err, etl.ErrConfigurationMissing)
	assert.Equal(t, etl.StageEnrich, etl.FailedStage(err))
	assert.Empty(t, f.calls)
	assert.NoFileExists(t, f.paths.Enriched)
}

func TestEnrich_CredentialCheckedBeforeArtifact(t *testing.T) {
	f := newFixture(t)
	f.secrets = nil
	p := f.pipeline()

	_, _, err := p.Enrich(context.Background(), p.ArtifactOf(etl.StageMerge))
	assert.ErrorIs(t, err, etl.ErrConfigurationMissing)
	assert.NotErrorIs(t, err, etl.ErrIOFailure)
}

func TestEnrich_FillsMissingAndSkipsPresent(t *testing.T) {
	f := newFixture(t)
	f.partition(t, "part-0001.csv", header+
		"Chez Paul,Paris,France,48.8566,2.3522\n"+
		"Da Mario,Rome,Italy,,\n"+
		"Half,Berlin,Germany,52.52,\n"+
		"Nowhere Diner,,Atlantis,,\n")
	f.answers["Rome, Italy"] = geocode.Point{Lat: 41.9028, Lng: 12.4964}
	p := f.pipeline()

	merged, err := p.Merge(context.Background())
	require.NoError(t, err)
	art, report, err := p.Enrich(context.Background(), merged)
	require.NoError(t, err)
	assert.Equal(t, 4, art.Rows)

	assert.Equal(t, []string{"Rome, Italy", "Berlin, Germany", ", Atlantis"}, f.calls)
	assert.Equal(t, 3, report.Lookups)
	assert.Equal(t, 1, report.Resolved)
	require.Len(t, report.Failures, 2)
	assert.Equal(t, 2, report.Failures[0].Row)
	assert.Equal(t, ", Atlantis", report.Failures[1].Query)
	for _, fail := range report.Failures {
		assert.ErrorIs(t, fail.Err, etl.ErrLookupFailed)
		assert.ErrorIs(t, fail.Err, geocode.ErrNoMatch)
	}

	ds := readArtifact(t, art.Path)
	require.Equal(t, 4, ds.Len())
	assert.InDelta(t, 48.8566, *ds.Records[0].Latitude, 1e-9)
	assert.InDelta(t, 41.9028, *ds.Records[1].Latitude, 1e-9)
	assert.InDelta(t, 12.4964, *ds.Records[1].Longitude, 1e-9)

	// Coordinates are both present or both absent.
	for i, rec := range ds.Records {
		assert.Equal(t, rec.Latitude == nil, rec.Longitude == nil, "row %d", i)
	}
	assert.Nil(t, ds.Records[2].Latitude)
	assert.Nil(t, ds.Records[3].Latitude)
}

func TestEnrich_ColumnsAddedWhenMissing(t *testing.T) {
	f := newFixture(t)
	f.partition(t, "part-0001.csv", "name,city,country\nDa Mario,Rome,Italy\n")
	f.answers["Rome, Italy"] = geocode.Point{Lat: 41.9, Lng: 12.5}
	p := f.pipeline()

	merged, err := p.Merge(context.Background())
	require.NoError(t, err)
	art, _, err := p.Enrich(context.Background(), merged)
	require.NoError(t, err)

	ds := readArtifact(t, art.Path)
	assert.Equal(t, []string{"name", "city", "country", "lat", "lng"}, ds.Columns)
	assert.True(t, ds.Records[0].HasCoordinates())
}

func TestEnrich_TransportFailureDegrades(t *testing.T) {
	f := newFixture(t)
	f.partition(t, "part-0001.csv", header+"Da Mario,Rome,Italy,,\n")
	f.secrets = secret.MapStore{config.CredentialKey: "wrong"}
	p := f.pipeline()

	merged, err := p.Merge(context.Background())
	require.NoError(t, err)
	_, report, err := p.Enrich(context.Background(), merged)
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.Contains(t, report.Failures[0].Reason(), "http 401")
}

func TestEnrich_CacheSharesIdenticalQueries(t *testing.T) {
	f := newFixture(t)
	f.partition(t, "part-0001.csv", header+
		"A,Rome,Italy,,\nB,Rome,Italy,,\nC,Rome,Italy,,\n")
	f.answers["Rome, Italy"] = geocode.Point{Lat: 41.9, Lng: 12.5}
	p := f.pipeline(func(o *etl.Options) { o.CacheSize = 16 })

	merged, err := p.Merge(context.Background())
	require.NoError(t, err)
	_, report, err := p.Enrich(context.Background(), merged)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Lookups)
	assert.Equal(t, 3, report.Resolved)
	assert.Len(t, f.calls, 1)
}

// ── Index ──────────────────────────────────────────────────

func TestEncode_Deterministic(t *testing.T) {
	for i := 0; i < 3; i++ {
		out := etl.Encode(48.8566, 2.3522)
		require.True(t, out.OK())
		assert.Equal(t, "u09t", out.Value)
	}
}

func TestEncode_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		lat, lng float64
	}{
		{"lat too large", 91, 0},
		{"lng too small", 0, -181},
		{"nan", mathNaN(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := etl.Encode(tt.lat, tt.lng)
			assert.False(t, out.OK())
			assert.ErrorIs(t, out.Err, etl.ErrEncodingFailed)
		})
	}
}

func TestIndex_GeohashIffBothCoordinates(t *testing.T) {
	f := newFixture(t)
	ds := &domain.Dataset{
		Columns: []string{"name", "lat", "lng"},
		Records: []domain.Restaurant{
			{Latitude: domain.FloatPtr(48.8566), Longitude: domain.FloatPtr(2.3522), Attributes: map[string]*string{"name": domain.StringPtr("Chez Paul")}},
			{Attributes: map[string]*string{"name": domain.StringPtr("Ghost")}},
			{Latitude: domain.FloatPtr(95), Longitude: domain.FloatPtr(10), Attributes: map[string]*string{"name": domain.StringPtr("Broken")}},
		},
	}
	require.NoError(t, storage.WriteParquet(f.paths.Enriched, ds, f.cfg.Columns))
	p := f.pipeline()

	art, report, err := p.Index(context.Background(), p.ArtifactOf(etl.StageEnrich))
	require.NoError(t, err)
	assert.Equal(t, 3, art.Rows)
	assert.Equal(t, 1, report.Indexed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, 2, report.Failures[0].Row)

	out := readArtifact(t, art.Path)
	assert.Equal(t, []string{"name", "lat", "lng", "geohash"}, out.Columns)
	require.NotNil(t, out.Records[0].Geohash)
	assert.Equal(t, "u09t", *out.Records[0].Geohash)
	assert.Nil(t, out.Records[1].Geohash)
	assert.Nil(t, out.Records[2].Geohash)
	// Unencodable coordinates are kept as they were.
	assert.InDelta(t, 95.0, *out.Records[2].Latitude, 1e-9)
}

// ── Load ───────────────────────────────────────────────────

func TestLoad_CSVFailureKeepsParquet(t *testing.T) {
	f := newFixture(t)
	ds := &domain.Dataset{
		Columns: []string{"name"},
		Records: []domain.Restaurant{{Attributes: map[string]*string{"name": domain.StringPtr("A")}}},
	}
	require.NoError(t, storage.WriteParquet(f.paths.Transformed, ds, f.cfg.Columns))
	require.NoError(t, os.MkdirAll(f.paths.OutputCSV, 0755))
	p := f.pipeline()

	out, err := p.Load(context.Background(), p.ArtifactOf(etl.StageIndex))
	require.Error(t, err)
	assert.ErrorIs(t, err, etl.ErrIOFailure)
	assert.Equal(t, etl.StageLoad, etl.FailedStage(err))
	assert.FileExists(t, f.paths.OutputParquet)
	assert.Equal(t, 1, out.Parquet.Rows)
}

func TestLoad_MissingInput(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline()
	_, err := p.Load(context.Background(), p.ArtifactOf(etl.StageIndex))
	assert.ErrorIs(t, err, etl.ErrIOFailure)
	assert.NoFileExists(t, f.paths.OutputParquet)
}

// ── Run ────────────────────────────────────────────────────

func TestRun_AllCoordinatesPresent(t *testing.T) {
	f := newFixture(t)
	f.partition(t, "part-0001.csv", header+
		"Chez Paul,Paris,France,48.8566,2.3522\n"+
		"Da Mario,Rome,Italy,41.9028,12.4964\n"+
		"Taco Loco,Mexico City,Mexico,19.4326,-99.1332\n")
	f.partition(t, "part-0002.csv", header+
		"Sushi Zen,Tokyo,Japan,35.6762,139.6503\n"+
		"Bondi Bites,Sydney,Australia,-33.8688,151.2093\n")

	res, err := f.pipeline().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, etl.StateLoaded, res.State)
	assert.Empty(t, res.FailedStage)
	assert.Zero(t, res.Enrich.Lookups)
	assert.Empty(t, f.calls)
	assert.Equal(t, 5, res.Merged.Rows)
	assert.Equal(t, 5, res.Outputs.Parquet.Rows)
	assert.Equal(t, 5, res.Outputs.CSV.Rows)
	assert.Len(t, res.Durations, 4)

	ds := readArtifact(t, f.paths.OutputParquet)
	require.Equal(t, 5, ds.Len())
	for i, rec := range ds.Records {
		require.NotNil(t, rec.Geohash, "row %d", i)
		assert.Len(t, *rec.Geohash, etl.GeohashPrecision)
	}
	assert.Equal(t, "u09t", *ds.Records[0].Geohash)

	csvData, err := os.ReadFile(f.paths.OutputCSV)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csvData)), "\n")
	assert.Len(t, lines, 6)
	assert.Equal(t, "name,city,country,lat,lng,geohash", lines[0])
}

func TestRun_NoMatchLeavesRecordAbsent(t *testing.T) {
	f := newFixture(t)
	f.partition(t, "part-0001.csv", header+"Nowhere Diner,,Atlantis,,\n")

	res, err := f.pipeline().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, etl.StateLoaded, res.State)
	require.Len(t, res.Failures(), 1)
	assert.Equal(t, ", Atlantis", res.Failures()[0].Query)

	ds := readArtifact(t, f.paths.OutputParquet)
	require.Equal(t, 1, ds.Len())
	assert.Nil(t, ds.Records[0].Latitude)
	assert.Nil(t, ds.Records[0].Longitude)
	assert.Nil(t, ds.Records[0].Geohash)
}

func TestRun_FatalErrorStopsLaterStages(t *testing.T) {
	f := newFixture(t)
	f.partition(t, "part-0001.csv", header+"Da Mario,Rome,Italy,,\n")
	f.secrets = secret.MapStore{}

	res, err := f.pipeline().Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, etl.ErrConfigurationMissing)
	assert.Equal(t, etl.StateFailed, res.State)
	assert.Equal(t, etl.StageEnrich, res.FailedStage)
	assert.Equal(t, 1, res.Merged.Rows)
	assert.FileExists(t, f.paths.Merged)
	assert.NoFileExists(t, f.paths.Enriched)
	assert.NoFileExists(t, f.paths.OutputParquet)
	assert.NoFileExists(t, f.paths.OutputCSV)
}

func TestRun_Cancelled(t *testing.T) {
	f := newFixture(t)
	f.partition(t, "part-0001.csv", header+"A,Rome,Italy,,\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.pipeline().Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, etl.StateFailed, res.State)
}

func TestRunStage_Sequence(t *testing.T) {
	f := newFixture(t)
	f.partition(t, "part-0001.csv", header+"Da Mario,Rome,Italy,,\n")
	f.answers["Rome, Italy"] = geocode.Point{Lat: 41.9028, Lng: 12.4964}
	p := f.pipeline()
	ctx := context.Background()

	for _, stage := range etl.Stages {
		res, err := p.RunStage(ctx, stage)
		require.NoError(t, err, "stage %s", stage)
		assert.Contains(t, res.Durations, stage)
	}
	ds := readArtifact(t, f.paths.OutputParquet)
	require.NotNil(t, ds.Records[0].Geohash)
	assert.Equal(t, "sr2y", *ds.Records[0].Geohash)

	_, err := p.RunStage(ctx, etl.Stage("publish"))
	assert.Error(t, err)
}
