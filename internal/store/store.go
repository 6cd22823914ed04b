// Package store persists RUC resolutions. Two drivers implement the same
// interface: Postgres (pgxpool) for production and SQLite for local runs.
package store

import (
	"context"
	"time"

	"github.com/sunat-tools/ruc-resolver/internal/model"
)

// Stats is a point-in-time view of the resolution table, consumed by the
// status command and the status server.
type Stats struct {
	TotalRows    int64 `json:"total_rows"`
	UniquePending int64 `json:"unique_pending"`
	Resolved     int64 `json:"resolved"`
	Absent       int64 `json:"absent"` // rows carrying a terminal sentinel
	Pending      int64 `json:"pending"`
}

// RunTotals summarizes one resolve pass for the run log.
type RunTotals struct {
	Attempted int64 `json:"attempted"`
	Resolved  int64 `json:"resolved"`
	Absent    int64 `json:"absent"`
	Failed    int64 `json:"failed"`
}

// RunRecord is a row in the resolve_runs log.
type RunRecord struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Totals      RunTotals  `json:"totals"`
	Error       string     `json:"error,omitempty"`
}

// Store is the persistence boundary of the pipeline.
//
// Pending and the two write paths are the core contract: Pending returns
// identifiers whose resolution column is NULL (sentinel rows are non-null
// and therefore excluded), ACTIVO-status rows first, then insertion order.
// ResolveAll and MarkAbsent are conditional updates touching every row that
// shares the identifier; the "still NULL" guard lives in the SQL so that
// two workers racing on a duplicated identifier cannot double-write.
type Store interface {
	Pending(ctx context.Context, limit int) ([]model.RUC, error)
	ResolveAll(ctx context.Context, ruc model.RUC, name, source string) (int64, error)
	MarkAbsent(ctx context.Context, ruc model.RUC, sentinel string) (int64, error)
	Stats(ctx context.Context) (*Stats, error)

	// Run log.
	StartRun(ctx context.Context) (string, error)
	FinishRun(ctx context.Context, runID string, totals RunTotals, runErr string) error
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)

	// Lifecycle.
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
