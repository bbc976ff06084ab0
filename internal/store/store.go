// Package store persists the history of analysis runs.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/comps-intel/internal/model"
)

// ErrNotFound is returned when a run id does not exist.
var ErrNotFound = eris.New("run not found")

const defaultListLimit = 100

// Store records analysis runs. A run is created when an analysis starts
// and finished exactly once with a result or an error.
type Store interface {
	CreateRun(ctx context.Context, subject, cacheKey string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, result *model.AnalysisResult) error
	FailRun(ctx context.Context, runID string, cause string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the store for driver ("sqlite" or "postgres").
func Open(ctx context.Context, driver, dsn string, pool *PoolConfig) (Store, error) {
	switch driver {
	case "", "sqlite":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn, pool)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}

func listLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return n
}
