package resolver

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/sunat-tools/ruc-resolver/internal/backend"
)

// Gates holds one rate limiter per backend, shared across all workers.
// A backend's MinSpacing is the minimum interval between any two requests
// to it, no matter which worker issues them.
type Gates struct {
	limiters map[string]*rate.Limiter
}

// NewGates builds the per-backend limiters from the configured chain.
func NewGates(cfgs []backend.Config) *Gates {
	limiters := make(map[string]*rate.Limiter, len(cfgs))
	for _, c := range cfgs {
		if c.MinSpacing <= 0 {
			continue
		}
		limiters[c.Name] = rate.NewLimiter(rate.Every(c.MinSpacing), 1)
	}
	return &Gates{limiters: limiters}
}

// Wait blocks until the named backend's spacing allows another request,
// or the context is done. Backends without a spacing pass immediately.
func (g *Gates) Wait(ctx context.Context, name string) error {
	l, ok := g.limiters[name]
	if !ok {
		return ctx.Err()
	}
	return l.Wait(ctx)
}
