// Package store persists the registry of synthesized grid artifacts and
// jurisdiction processing runs. Two backends are provided: SQLite for
// single-machine use and Postgres for shared deployments.
package store

import (
	"context"
	"time"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
)

// Run lifecycle states.
const (
	RunStatusRunning  = "running"
	RunStatusComplete = "complete"
	RunStatusFailed   = "failed"
)

// GridRecord describes one synthesized pixel artifact.
type GridRecord struct {
	Name      string
	Path      string
	CRS       string
	CellSize  float64
	Cells     int
	Extent    orb.Bound
	CreatedAt time.Time
}

// RunRecord is one jurisdiction processing run.
type RunRecord struct {
	ID           string
	Config       string
	Jurisdiction string
	Status       string
	Cells        int
	Error        string
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// Store is the registry interface shared by both backends.
type Store interface {
	Migrate(ctx context.Context) error
	PutGrid(ctx context.Context, g GridRecord) error
	GetGrid(ctx context.Context, name string) (*GridRecord, error)
	ListGrids(ctx context.Context) ([]GridRecord, error)
	CreateRun(ctx context.Context, config, jurisdiction string) (*RunRecord, error)
	FinishRun(ctx context.Context, id, status string, cells int, runErr string) error
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
	Close() error
}

// Open constructs a store for the configured driver.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn)
	}
	return nil, eris.Errorf("store: unknown driver %q", driver)
}
