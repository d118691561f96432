package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcticline/pricebook-cli/internal/model"
	"github.com/arcticline/pricebook-cli/internal/store"
)

func newMuxWithData(t *testing.T) (http.Handler, *model.ReconciliationRun) {
	t.Helper()
	ctx := context.Background()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "serve.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	t.Cleanup(func() { st.Close() })

	run, err := st.CreateRun(ctx, "prices.csv", "catalog.json")
	require.NoError(t, err)
	require.NoError(t, st.SaveSpecifications(ctx, run.ID, []model.ProductSpecification{
		{
			ProcessingID:    "proc-1",
			EntryCode:       "TNAB",
			Brand:           "SKI-DOO",
			ModelYear:       2026,
			Specs:           map[string]any{"price": "15999"},
			ConfidenceScore: 0.95,
			ConfidenceLevel: model.ConfidenceHigh,
			CreatedAt:       time.Now().UTC(),
		},
	}))

	return newServeMux(st), run
}

func TestServeMuxHealth(t *testing.T) {
	mux, _ := newMuxWithData(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestServeMuxListRuns(t *testing.T) {
	mux, run := newMuxWithData(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var runs []model.ReconciliationRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
}

func TestServeMuxListRunsStatusFilter(t *testing.T) {
	mux, _ := newMuxWithData(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs?status=complete", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var runs []model.ReconciliationRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	assert.Empty(t, runs) // the seeded run is still queued
}

func TestServeMuxGetRun(t *testing.T) {
	mux, run := newMuxWithData(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/"+run.ID, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got model.ReconciliationRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "prices.csv", got.PriceSource)
}

func TestServeMuxGetRunNotFound(t *testing.T) {
	mux, _ := newMuxWithData(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeMuxRunSpecs(t *testing.T) {
	mux, run := newMuxWithData(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/"+run.ID+"/specs", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var specs []model.ProductSpecification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &specs))
	require.Len(t, specs, 1)
	assert.Equal(t, "TNAB", specs[0].EntryCode)
}
