package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store on a Postgres connection pool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres connects to Postgres with the given DSN.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool, mock pools included.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS grids (
	name       TEXT PRIMARY KEY,
	path       TEXT NOT NULL,
	crs        TEXT NOT NULL,
	cell_size  DOUBLE PRECISION NOT NULL,
	cells      INTEGER NOT NULL,
	extent     BYTEA,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS runs (
	id           UUID PRIMARY KEY,
	config       TEXT NOT NULL,
	jurisdiction TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	cells        INTEGER NOT NULL DEFAULT 0,
	error        TEXT,
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at  TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_config ON runs(config);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) PutGrid(ctx context.Context, g GridRecord) error {
	extent, err := encodeExtent(g.Extent, g.CRS)
	if err != nil {
		return err
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO grids (name, path, crs, cell_size, cells, extent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (name) DO UPDATE SET
			path = EXCLUDED.path,
			crs = EXCLUDED.crs,
			cell_size = EXCLUDED.cell_size,
			cells = EXCLUDED.cells,
			extent = EXCLUDED.extent,
			created_at = EXCLUDED.created_at`,
		g.Name, g.Path, g.CRS, g.CellSize, g.Cells, extent, g.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: put grid %s", g.Name)
}

func (s *PostgresStore) GetGrid(ctx context.Context, name string) (*GridRecord, error) {
	var g GridRecord
	var extent []byte
	err := s.pool.QueryRow(ctx,
		`SELECT name, path, crs, cell_size, cells, extent, created_at FROM grids WHERE name = $1`,
		name,
	).Scan(&g.Name, &g.Path, &g.CRS, &g.CellSize, &g.Cells, &extent, &g.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get grid %s", name)
	}
	b, err := decodeExtent(extent)
	if err != nil {
		return nil, err
	}
	g.Extent = b
	return &g, nil
}

func (s *PostgresStore) ListGrids(ctx context.Context) ([]GridRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, path, crs, cell_size, cells, extent, created_at FROM grids ORDER BY name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list grids")
	}
	defer rows.Close()

	var grids []GridRecord
	for rows.Next() {
		var g GridRecord
		var extent []byte
		if err := rows.Scan(&g.Name, &g.Path, &g.CRS, &g.CellSize, &g.Cells, &extent, &g.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan grid")
		}
		b, err := decodeExtent(extent)
		if err != nil {
			return nil, err
		}
		g.Extent = b
		grids = append(grids, g)
	}
	return grids, eris.Wrap(rows.Err(), "postgres: list grids iterate")
}

func (s *PostgresStore) CreateRun(ctx context.Context, config, jurisdiction string) (*RunRecord, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, config, jurisdiction, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
		id, config, jurisdiction, RunStatusRunning, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert run for %s", jurisdiction)
	}
	return &RunRecord{
		ID:           id,
		Config:       config,
		Jurisdiction: jurisdiction,
		Status:       RunStatusRunning,
		StartedAt:    now,
	}, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, id, status string, cells int, runErr string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, cells = $2, error = $3, finished_at = $4 WHERE id = $5`,
		status, cells, nullString(runErr), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, config, jurisdiction, status, cells, error, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var errMsg *string
		if err := rows.Scan(&r.ID, &r.Config, &r.Jurisdiction, &r.Status, &r.Cells,
			&errMsg, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if errMsg != nil {
			r.Error = *errMsg
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
