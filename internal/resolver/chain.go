// Package resolver drives the lookup pipeline: a priority chain of
// registry backends, a bounded worker pool over the pending set, and the
// reconciliation of each outcome back into the store.
package resolver

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sunat-tools/ruc-resolver/internal/backend"
	"github.com/sunat-tools/ruc-resolver/internal/model"
	"github.com/sunat-tools/ruc-resolver/internal/resilience"
)

// Backend is one registry in the chain. *backend.Adapter implements it.
type Backend interface {
	Name() string
	Usable() bool
	Lookup(ctx context.Context, ruc model.RUC) model.LookupResult
}

// Chain tries backends in priority order, returning on the first resolved
// name. Not-found and invalid-input answers are recorded and the next
// backend is still consulted; the outcome carries what was seen so the
// reconciler can pick the right terminal sentinel after exhaustion.
type Chain struct {
	backends []Backend
	gates    *Gates
	retry    resilience.RetryConfig
}

// NewChain creates a Chain. Backends must already be in priority order;
// NewChainFromConfigs handles that for configured adapters.
func NewChain(backends []Backend, gates *Gates) *Chain {
	return &Chain{
		backends: backends,
		gates:    gates,
		retry: resilience.RetryConfig{
			MaxAttempts:    2,
			InitialBackoff: time.Second,
			MaxBackoff:     5 * time.Second,
			Multiplier:     2.0,
			JitterFraction: 0.25,
			ShouldRetry:    isRetryableLookup,
		},
	}
}

// WithRetry overrides the per-backend retry policy.
func (c *Chain) WithRetry(cfg resilience.RetryConfig) *Chain {
	if cfg.ShouldRetry == nil {
		cfg.ShouldRetry = isRetryableLookup
	}
	c.retry = cfg
	return c
}

// lookupFailed signals a transient or rate-limited attempt to the retry
// helper. Any other status returns nil from the closure and settles the
// backend's answer.
type lookupFailed struct {
	status model.LookupStatus
}

func (e *lookupFailed) Error() string { return "lookup failed: " + string(e.status) }

func isRetryableLookup(err error) bool {
	_, ok := err.(*lookupFailed)
	return ok
}

// Resolve runs the chain for one identifier. The returned error is non-nil
// only when the context was cancelled; every backend-level failure is folded
// into the outcome instead.
func (c *Chain) Resolve(ctx context.Context, ruc model.RUC) (model.Outcome, error) {
	outcome := model.Outcome{RUC: ruc}

	for _, b := range c.backends {
		if !b.Usable() {
			zap.L().Debug("skipping backend without credential",
				zap.String("backend", b.Name()),
			)
			continue
		}
		if err := ctx.Err(); err != nil {
			return outcome, err
		}

		res, err := c.attempt(ctx, b, ruc)
		if err != nil {
			// attempt only errors on context cancellation.
			return outcome, err
		}
		outcome.Attempts++

		switch res.Status {
		case model.StatusResolved:
			outcome.Resolved = true
			outcome.Value = res.Value
			outcome.SourceBackend = b.Name()
			return outcome, nil
		case model.StatusNotFound:
			outcome.SawNotFound = true
		case model.StatusInvalidInput:
			outcome.SawInvalid = true
		default:
			zap.L().Debug("backend attempt failed, trying next",
				zap.String("backend", b.Name()),
				zap.String("ruc", ruc.String()),
				zap.String("status", string(res.Status)),
				zap.String("detail", res.Detail),
			)
		}
	}

	return outcome, nil
}

// attempt runs one backend with the shared spacing gate and a short retry
// on transient or rate-limited answers. Retries re-enter the gate, so a
// retry never violates the backend's spacing either.
func (c *Chain) attempt(ctx context.Context, b Backend, ruc model.RUC) (model.LookupResult, error) {
	var res model.LookupResult
	err := resilience.Do(ctx, c.retry, func(ctx context.Context) error {
		if err := c.gates.Wait(ctx, b.Name()); err != nil {
			return err
		}
		res = b.Lookup(ctx, ruc)
		if res.Status == model.StatusTransient || res.Status == model.StatusRateLimited {
			return &lookupFailed{status: res.Status}
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if res.Status == "" {
			res = model.LookupResult{Status: model.StatusTransient, Detail: err.Error()}
		}
		// Otherwise retries were exhausted and the last result stands.
	}
	return res, nil
}

// NewChainFromConfigs sorts the configs by ascending priority, builds an
// adapter for each, and wires the shared spacing gates.
func NewChainFromConfigs(cfgs []backend.Config, opts ...backend.Option) *Chain {
	sorted := make([]backend.Config, len(cfgs))
	copy(sorted, cfgs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	backends := make([]Backend, 0, len(sorted))
	for _, c := range sorted {
		backends = append(backends, backend.New(c, opts...))
	}
	return NewChain(backends, NewGates(sorted))
}
