package resolver

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sunat-tools/ruc-resolver/internal/model"
	"github.com/sunat-tools/ruc-resolver/internal/store"
)

// Disposition is what the reconciler did with one outcome.
type Disposition string

const (
	// DispositionResolved means the legal name was written.
	DispositionResolved Disposition = "resolved"
	// DispositionAbsent means a terminal sentinel was written.
	DispositionAbsent Disposition = "absent"
	// DispositionFailed means nothing was written: the chain saw only
	// transient failures, or the store write itself failed. The identifier
	// stays pending for the next pass.
	DispositionFailed Disposition = "failed"
)

// Reconciler writes chain outcomes back to the store.
type Reconciler struct {
	store store.Store
}

func NewReconciler(s store.Store) *Reconciler {
	return &Reconciler{store: s}
}

// Apply persists one outcome. A resolved name updates every unresolved row
// sharing the identifier; an exhausted chain that saw a definitive negative
// writes the sentinel instead, invalid-input winning over not-found. A
// chain that saw only transient failures writes nothing.
func (r *Reconciler) Apply(ctx context.Context, outcome model.Outcome) (Disposition, error) {
	if outcome.Resolved {
		n, err := r.store.ResolveAll(ctx, outcome.RUC, outcome.Value, outcome.SourceBackend)
		if err != nil {
			return DispositionFailed, eris.Wrapf(err, "reconcile: resolve %s", outcome.RUC)
		}
		zap.L().Info("resolved",
			zap.String("ruc", outcome.RUC.String()),
			zap.String("razon_social", outcome.Value),
			zap.String("backend", outcome.SourceBackend),
			zap.Int64("rows", n),
		)
		return DispositionResolved, nil
	}

	sentinel := outcome.Sentinel()
	if sentinel == "" {
		zap.L().Warn("chain exhausted without a definitive answer",
			zap.String("ruc", outcome.RUC.String()),
			zap.Int("attempts", outcome.Attempts),
		)
		return DispositionFailed, nil
	}

	n, err := r.store.MarkAbsent(ctx, outcome.RUC, sentinel)
	if err != nil {
		return DispositionFailed, eris.Wrapf(err, "reconcile: mark absent %s", outcome.RUC)
	}
	zap.L().Info("marked absent",
		zap.String("ruc", outcome.RUC.String()),
		zap.String("sentinel", sentinel),
		zap.Int64("rows", n),
	)
	return DispositionAbsent, nil
}
