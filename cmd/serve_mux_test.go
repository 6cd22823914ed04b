package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunat-tools/ruc-resolver/internal/model"
	"github.com/sunat-tools/ruc-resolver/internal/store"
)

func newServeStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "ruc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestStatusMuxHealth(t *testing.T) {
	st := newServeStore(t)
	mux := newStatusMux(st, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStatusMuxStats(t *testing.T) {
	st := newServeStore(t)
	ctx := context.Background()

	_, err := st.Seed(ctx, []model.RUC{"20131312955", "20100070970"})
	require.NoError(t, err)
	_, err = st.ResolveAll(ctx, "20131312955", "TELEFONICA DEL PERU SAA", "apis.net.pe")
	require.NoError(t, err)

	mux := newStatusMux(st, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Stats store.Stats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(2), resp.Stats.TotalRows)
	assert.Equal(t, int64(1), resp.Stats.Resolved)
	assert.Equal(t, int64(1), resp.Stats.Pending)
}

func TestStatusMuxRuns(t *testing.T) {
	st := newServeStore(t)
	ctx := context.Background()

	id, err := st.StartRun(ctx)
	require.NoError(t, err)
	require.NoError(t, st.FinishRun(ctx, id, store.RunTotals{Attempted: 2, Resolved: 2}, ""))

	mux := newStatusMux(st, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Runs []store.RunRecord `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Runs, 1)
	assert.Equal(t, "complete", resp.Runs[0].Status)
}

func TestStatusMuxMethodNotAllowed(t *testing.T) {
	st := newServeStore(t)
	mux := newStatusMux(st, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
