package resolver

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunat-tools/ruc-resolver/internal/model"
	"github.com/sunat-tools/ruc-resolver/internal/store"
)

// fakeStore is an in-memory Store for engine and reconciler tests. Each
// identifier maps to the written value; empty string means still pending.
type fakeStore struct {
	mu       sync.Mutex
	pending  []model.RUC
	written  map[model.RUC]string
	sources  map[model.RUC]string
	runs     []store.RunRecord
	failNext error
}

func newFakeStore(pending ...model.RUC) *fakeStore {
	return &fakeStore{
		pending: pending,
		written: make(map[model.RUC]string),
		sources: make(map[model.RUC]string),
	}
}

func (f *fakeStore) Pending(ctx context.Context, limit int) ([]model.RUC, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.RUC, 0, len(f.pending))
	for _, r := range f.pending {
		if f.written[r] == "" {
			out = append(out, r)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) ResolveAll(ctx context.Context, ruc model.RUC, name, source string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return 0, err
	}
	if f.written[ruc] != "" {
		return 0, nil
	}
	f.written[ruc] = name
	f.sources[ruc] = source
	return 1, nil
}

func (f *fakeStore) MarkAbsent(ctx context.Context, ruc model.RUC, sentinel string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return 0, err
	}
	if f.written[ruc] != "" {
		return 0, nil
	}
	f.written[ruc] = sentinel
	return 1, nil
}

func (f *fakeStore) Stats(ctx context.Context) (*store.Stats, error) {
	return &store.Stats{}, nil
}

func (f *fakeStore) StartRun(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := "run-1"
	f.runs = append(f.runs, store.RunRecord{ID: id, Status: "running"})
	return id, nil
}

func (f *fakeStore) FinishRun(ctx context.Context, runID string, totals store.RunTotals, runErr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.runs {
		if f.runs[i].ID == runID {
			f.runs[i].Status = "complete"
			if runErr != "" {
				f.runs[i].Status = "failed"
			}
			f.runs[i].Totals = totals
			f.runs[i].Error = runErr
			return nil
		}
	}
	return errors.New("run not found")
}

func (f *fakeStore) ListRuns(ctx context.Context, limit int) ([]store.RunRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.RunRecord(nil), f.runs...), nil
}

func (f *fakeStore) Migrate(ctx context.Context) error { return nil }
func (f *fakeStore) Ping(ctx context.Context) error    { return nil }
func (f *fakeStore) Close() error                      { return nil }

func (f *fakeStore) value(ruc model.RUC) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written[ruc]
}

func TestEngineRunResolvesPendingSet(t *testing.T) {
	s := newFakeStore("20131312955", "20100070970", "10411592982")
	primary := &stubBackend{name: "primary", results: []model.LookupResult{
		model.Resolved("TELEFONICA DEL PERU SAA"),
	}}
	engine := NewEngine(s, newTestChain(primary), 3, 1)

	totals, err := engine.Run(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, int64(3), totals.Attempted)
	assert.Equal(t, int64(3), totals.Resolved)
	assert.Equal(t, int64(0), totals.Absent)
	assert.Equal(t, int64(0), totals.Failed)
	assert.Equal(t, "TELEFONICA DEL PERU SAA", s.value("20131312955"))

	// The pass is recorded in the run log.
	runs, err := s.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "complete", runs[0].Status)
	assert.Equal(t, int64(3), runs[0].Totals.Resolved)
}

func TestEngineRunMixedDispositions(t *testing.T) {
	s := newFakeStore("20131312955", "20999999991", "00000000000")
	backendFor := func(ruc model.RUC) model.LookupResult {
		switch ruc {
		case "20131312955":
			return model.Resolved("TELEFONICA DEL PERU SAA")
		case "00000000000":
			return model.LookupResult{Status: model.StatusInvalidInput}
		default:
			return model.LookupResult{Status: model.StatusNotFound}
		}
	}
	engine := NewEngine(s, newTestChain(&funcBackend{name: "reg", fn: backendFor}), 2, 1)

	totals, err := engine.Run(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, int64(3), totals.Attempted)
	assert.Equal(t, int64(1), totals.Resolved)
	assert.Equal(t, int64(2), totals.Absent)
	assert.Equal(t, "TELEFONICA DEL PERU SAA", s.value("20131312955"))
	assert.Equal(t, model.SentinelNotFound, s.value("20999999991"))
	assert.Equal(t, model.SentinelInvalid, s.value("00000000000"))
}

func TestEngineRunTransientLeavesPending(t *testing.T) {
	s := newFakeStore("20131312955")
	down := &stubBackend{name: "down", results: []model.LookupResult{
		{Status: model.StatusTransient, Detail: "dial tcp: connection refused"},
	}}
	engine := NewEngine(s, newTestChain(down), 1, 1)

	totals, err := engine.Run(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, int64(1), totals.Failed)
	assert.Empty(t, s.value("20131312955"))

	pending, err := s.Pending(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []model.RUC{"20131312955"}, pending)
}

func TestEngineRunStoreFaultCountsFailed(t *testing.T) {
	s := newFakeStore("20131312955")
	s.failNext = errors.New("connection lost")
	ok := &stubBackend{name: "ok", results: []model.LookupResult{
		model.Resolved("TELEFONICA DEL PERU SAA"),
	}}
	engine := NewEngine(s, newTestChain(ok), 1, 1)

	totals, err := engine.Run(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, int64(1), totals.Failed)
	assert.Equal(t, int64(0), totals.Resolved)
	assert.Empty(t, s.value("20131312955"))
}

func TestEngineRunEmptyPendingSet(t *testing.T) {
	s := newFakeStore()
	engine := NewEngine(s, newTestChain(&stubBackend{name: "x", results: []model.LookupResult{
		model.Resolved("UNUSED"),
	}}), 2, 1)

	totals, err := engine.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, store.RunTotals{}, totals)

	// No run is logged for an empty pass.
	runs, err := s.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestEngineRunBatchSizeLimitsPass(t *testing.T) {
	s := newFakeStore("20131312955", "20100070970", "10411592982")
	ok := &stubBackend{name: "ok", results: []model.LookupResult{
		model.Resolved("SOME SAC"),
	}}
	engine := NewEngine(s, newTestChain(ok), 2, 1)

	totals, err := engine.Run(context.Background(), 2)
	require.NoError(t, err)

	assert.Equal(t, int64(2), totals.Attempted)
	pending, err := s.Pending(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestEngineRunCancelledContext(t *testing.T) {
	s := newFakeStore("20131312955", "20100070970")
	ok := &stubBackend{name: "ok", results: []model.LookupResult{
		model.Resolved("SOME SAC"),
	}}
	engine := NewEngine(s, newTestChain(ok), 1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	totals, err := engine.Run(ctx, 0)
	require.NoError(t, err, "a cancelled pass is not a failure")
	assert.Equal(t, int64(0), totals.Resolved)
}

// funcBackend answers from a function of the identifier.
type funcBackend struct {
	name string
	fn   func(ruc model.RUC) model.LookupResult
}

func (f *funcBackend) Name() string { return f.name }
func (f *funcBackend) Usable() bool { return true }
func (f *funcBackend) Lookup(ctx context.Context, ruc model.RUC) model.LookupResult {
	return f.fn(ruc)
}
