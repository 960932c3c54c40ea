package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS grids (
	name       TEXT PRIMARY KEY,
	path       TEXT NOT NULL,
	crs        TEXT NOT NULL,
	cell_size  REAL NOT NULL,
	cells      INTEGER NOT NULL,
	extent     BLOB,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	config       TEXT NOT NULL,
	jurisdiction TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	cells        INTEGER NOT NULL DEFAULT 0,
	error        TEXT,
	started_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at  DATETIME
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_config ON runs(config);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) PutGrid(ctx context.Context, g GridRecord) error {
	extent, err := encodeExtent(g.Extent, g.CRS)
	if err != nil {
		return err
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO grids (name, path, crs, cell_size, cells, extent, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET
			path = excluded.path,
			crs = excluded.crs,
			cell_size = excluded.cell_size,
			cells = excluded.cells,
			extent = excluded.extent,
			created_at = excluded.created_at`,
		g.Name, g.Path, g.CRS, g.CellSize, g.Cells, extent, g.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: put grid %s", g.Name)
}

func (s *SQLiteStore) GetGrid(ctx context.Context, name string) (*GridRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, path, crs, cell_size, cells, extent, created_at FROM grids WHERE name = ?`,
		name,
	)
	g, err := scanGrid(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return g, err
}

func (s *SQLiteStore) ListGrids(ctx context.Context) ([]GridRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, path, crs, cell_size, cells, extent, created_at FROM grids ORDER BY name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list grids")
	}
	defer rows.Close()

	var grids []GridRecord
	for rows.Next() {
		g, err := scanGrid(rows)
		if err != nil {
			return nil, err
		}
		grids = append(grids, *g)
	}
	return grids, eris.Wrap(rows.Err(), "sqlite: list grids iterate")
}

func (s *SQLiteStore) CreateRun(ctx context.Context, config, jurisdiction string) (*RunRecord, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, config, jurisdiction, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, config, jurisdiction, RunStatusRunning, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert run for %s", jurisdiction)
	}
	return &RunRecord{
		ID:           id,
		Config:       config,
		Jurisdiction: jurisdiction,
		Status:       RunStatusRunning,
		StartedAt:    now,
	}, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, id, status string, cells int, runErr string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, cells = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, cells, nullString(runErr), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("run not found: %s", id)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, config, jurisdiction, status, cells, error, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var errMsg sql.NullString
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Config, &r.Jurisdiction, &r.Status, &r.Cells,
			&errMsg, &r.StartedAt, &finished); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r.Error = errMsg.String
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanGrid(row scannable) (*GridRecord, error) {
	var g GridRecord
	var extent []byte
	if err := row.Scan(&g.Name, &g.Path, &g.CRS, &g.CellSize, &g.Cells, &extent, &g.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, eris.Wrap(err, "sqlite: scan grid")
	}
	b, err := decodeExtent(extent)
	if err != nil {
		return nil, err
	}
	g.Extent = b
	return &g, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
