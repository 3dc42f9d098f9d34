// Package store persists run output: the run log, canonical records,
// facility clusters, and smoothed coverage rows. Two drivers exist, SQLite
// for local runs and Postgres for shared deployments; both bootstrap their
// own schema at open.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/pyxis-energy/pyxis-cli/internal/config"
	"github.com/pyxis-energy/pyxis-cli/internal/db"
	"github.com/pyxis-energy/pyxis-cli/internal/model"
	"github.com/pyxis-energy/pyxis-cli/internal/spatial"
)

// ErrNotFound marks a lookup for a run id the store has never seen.
var ErrNotFound = eris.New("store: run not found")

// Store is the persistence interface for pipeline runs.
type Store interface {
	// StartRun writes the run-log row when a run begins.
	StartRun(ctx context.Context, report *model.RunReport) error
	// CompleteRun records the final report of a successful run.
	CompleteRun(ctx context.Context, report *model.RunReport) error
	// FailRun records the final report of a failed run.
	FailRun(ctx context.Context, report *model.RunReport) error

	// SaveRecords bulk-writes a run's canonical records.
	SaveRecords(ctx context.Context, runID string, recs []*model.CanonicalRecord) error
	// SaveClusters writes a run's facility clusters.
	SaveClusters(ctx context.Context, runID string, clusters []model.FacilityCluster) error
	// SaveCoverage writes k-ring smoothing rows for a run.
	SaveCoverage(ctx context.Context, runID string, rows []spatial.Coverage) error

	// GetRun returns a stored run report.
	GetRun(ctx context.Context, runID string) (*model.RunReport, error)
	// ListRuns returns recent run reports, newest first.
	ListRuns(ctx context.Context, limit int) ([]model.RunReport, error)
	// ExportClusters returns a run's clusters with merged records attached.
	ExportClusters(ctx context.Context, runID string) ([]model.FacilityCluster, error)

	Close() error
}

// Open selects and opens the configured driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return NewSQLite(ctx, cfg.DatabaseURL)
	case "postgres":
		pool, err := db.NewPool(ctx, db.PoolConfig{
			DatabaseURL: cfg.DatabaseURL,
			MaxConns:    cfg.MaxConns,
			MinConns:    cfg.MinConns,
		})
		if err != nil {
			return nil, err
		}
		return NewPostgres(ctx, pool)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
