package resolver

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sunat-tools/ruc-resolver/internal/store"
)

// Engine runs one resolve pass: pull the pending set, fan it out over a
// bounded worker pool, reconcile each outcome, and log the run.
type Engine struct {
	store      store.Store
	chain      *Chain
	reconciler *Reconciler
	workers    int
	every      int

	// progress is set for the duration of a pass so the status server can
	// observe a live run.
	progress atomic.Pointer[Progress]
}

// NewEngine wires an engine. workers bounds concurrent identifiers in
// flight; every is the progress-line interval in records.
func NewEngine(s store.Store, chain *Chain, workers, every int) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{
		store:      s,
		chain:      chain,
		reconciler: NewReconciler(s),
		workers:    workers,
		every:      every,
	}
}

// Progress returns the live pass counters, or nil when no pass is running.
func (e *Engine) Progress() *Progress {
	return e.progress.Load()
}

// Run executes one pass over the pending set. batchSize limits how many
// identifiers are pulled; zero means all. A cancelled context stops the
// pass after in-flight lookups finish; identifiers that were not reached
// simply stay pending. The pass is recorded in the run log either way.
func (e *Engine) Run(ctx context.Context, batchSize int) (store.RunTotals, error) {
	var totals store.RunTotals

	pending, err := e.store.Pending(ctx, batchSize)
	if err != nil {
		return totals, eris.Wrap(err, "engine: load pending set")
	}
	if len(pending) == 0 {
		zap.L().Info("no pending identifiers")
		return totals, nil
	}

	runID, err := e.store.StartRun(ctx)
	if err != nil {
		return totals, eris.Wrap(err, "engine: start run")
	}

	zap.L().Info("starting resolve pass",
		zap.String("run_id", runID),
		zap.Int("pending", len(pending)),
		zap.Int("workers", e.workers),
	)

	progress := NewProgress(len(pending), e.every)
	e.progress.Store(progress)
	defer e.progress.Store(nil)

	var attempted, resolved, absent, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for _, ruc := range pending {
		ruc := ruc
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			outcome, err := e.chain.Resolve(gctx, ruc)
			if err != nil {
				return err
			}
			attempted.Add(1)

			disposition, err := e.reconciler.Apply(gctx, outcome)
			if err != nil {
				// A failed write leaves the identifier pending; the pass
				// keeps going.
				zap.L().Error("reconcile failed",
					zap.String("ruc", ruc.String()),
					zap.Error(err),
				)
			}
			switch disposition {
			case DispositionResolved:
				resolved.Add(1)
			case DispositionAbsent:
				absent.Add(1)
			default:
				failed.Add(1)
			}
			progress.Record(disposition)
			return nil
		})
	}

	runErr := g.Wait()

	totals = store.RunTotals{
		Attempted: attempted.Load(),
		Resolved:  resolved.Load(),
		Absent:    absent.Load(),
		Failed:    failed.Load(),
	}

	errText := ""
	if runErr != nil && !eris.Is(runErr, context.Canceled) {
		errText = runErr.Error()
	}
	if err := e.store.FinishRun(context.WithoutCancel(ctx), runID, totals, errText); err != nil {
		zap.L().Warn("could not record run", zap.String("run_id", runID), zap.Error(err))
	}

	snap := progress.Snapshot()
	zap.L().Info("resolve pass finished",
		zap.String("run_id", runID),
		zap.Int64("attempted", totals.Attempted),
		zap.Int64("resolved", totals.Resolved),
		zap.Int64("absent", totals.Absent),
		zap.Int64("failed", totals.Failed),
		zap.Duration("elapsed", snap.Elapsed),
	)

	if runErr != nil && !eris.Is(runErr, context.Canceled) {
		return totals, eris.Wrap(runErr, "engine: resolve pass")
	}
	return totals, nil
}
