package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestExtentRoundTrip(t *testing.T) {
	b := orb.Bound{Min: orb.Point{-381105, -607105}, Max: orb.Point{540895, 456105}}
	data, err := encodeExtent(b, "EPSG:3310")
	require.NoError(t, err)
	require.NotEmpty(t, data)

	got, err := decodeExtent(data)
	require.NoError(t, err)
	assert.Equal(t, b, got)

	empty, err := decodeExtent(nil)
	require.NoError(t, err)
	assert.Equal(t, orb.Bound{}, empty)
}

func TestSridOf(t *testing.T) {
	assert.Equal(t, 3310, sridOf("EPSG:3310"))
	assert.Equal(t, 4326, sridOf("epsg:4326"))
	assert.Equal(t, 0, sridOf("CRS84"))
}

func TestSQLiteGridRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	rec := GridRecord{
		Name:      "utility",
		Path:      "out/utility_pixels.json",
		CRS:       "EPSG:3310",
		CellSize:  100,
		Cells:     42,
		Extent:    orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1000, 1000}},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.PutGrid(ctx, rec))

	got, err := s.GetGrid(ctx, "utility")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.Path, got.Path)
	assert.Equal(t, rec.CellSize, got.CellSize)
	assert.Equal(t, rec.Cells, got.Cells)
	assert.Equal(t, rec.Extent, got.Extent)

	// Upsert replaces.
	rec.Cells = 99
	require.NoError(t, s.PutGrid(ctx, rec))
	got, err = s.GetGrid(ctx, "utility")
	require.NoError(t, err)
	assert.Equal(t, 99, got.Cells)

	grids, err := s.ListGrids(ctx)
	require.NoError(t, err)
	assert.Len(t, grids, 1)

	missing, err := s.GetGrid(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLiteRunLifecycle(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "east-bay", "alameda")
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, run.Status)
	require.NotEmpty(t, run.ID)

	require.NoError(t, s.FinishRun(ctx, run.ID, RunStatusComplete, 1234, ""))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, RunStatusComplete, runs[0].Status)
	assert.Equal(t, 1234, runs[0].Cells)
	assert.Empty(t, runs[0].Error)
	require.NotNil(t, runs[0].FinishedAt)

	err = s.FinishRun(ctx, "no-such-run", RunStatusFailed, 0, "boom")
	assert.Error(t, err)
}

func TestSQLiteRunFailure(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "east-bay", "contra-costa")
	require.NoError(t, err)
	require.NoError(t, s.FinishRun(ctx, run.ID, RunStatusFailed, 0, "boundary missing"))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, RunStatusFailed, runs[0].Status)
	assert.Equal(t, "boundary missing", runs[0].Error)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "dsn")
	assert.Error(t, err)
}

func TestPostgresPutGrid(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewPostgresWithPool(mock)
	rec := GridRecord{
		Name:     "utility",
		Path:     "out/utility_pixels.json",
		CRS:      "EPSG:3310",
		CellSize: 100,
		Cells:    42,
		Extent:   orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{100, 100}},
	}

	mock.ExpectExec("INSERT INTO grids").
		WithArgs(rec.Name, rec.Path, rec.CRS, rec.CellSize, rec.Cells,
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.PutGrid(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFinishRunNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewPostgresWithPool(mock)
	mock.ExpectExec("UPDATE runs SET").
		WithArgs(RunStatusComplete, 5, pgxmock.AnyArg(), pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = s.FinishRun(context.Background(), "missing", RunStatusComplete, 5, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateRun(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewPostgresWithPool(mock)
	mock.ExpectExec("INSERT INTO runs").
		WithArgs(pgxmock.AnyArg(), "east-bay", "alameda", RunStatusRunning, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), "east-bay", "alameda")
	require.NoError(t, err)
	assert.Equal(t, "alameda", run.Jurisdiction)
	assert.NoError(t, mock.ExpectationsWereMet())
}
