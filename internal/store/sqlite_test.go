package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcticline/pricebook-cli/internal/config"
	"github.com/arcticline/pricebook-cli/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func testSpec(entryCode string, review bool) model.ProductSpecification {
	return model.ProductSpecification{
		ProcessingID:    "proc-" + entryCode,
		EntryCode:       entryCode,
		VehicleID:       "veh-mxz-xrs",
		Brand:           "SKI-DOO",
		ModelYear:       2026,
		DisplayName:     "MXZ X-RS 850 E-TEC",
		Specs:           map[string]any{"drivetrain": "REV Gen5", "price": "15999"},
		ConfidenceScore: 0.95,
		ConfidenceLevel: model.ConfidenceHigh,
		RequiresReview:  review,
		CompletedStages: []string{"base_model_matching", "final_validation"},
		CreatedAt:       time.Now().UTC(),
	}
}

func TestSQLiteRunLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "prices.csv", "catalog.json")
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)

	require.NoError(t, s.UpdateRunStatus(ctx, run.ID, model.RunStatusMatching))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusMatching, got.Status)
	assert.Equal(t, "prices.csv", got.PriceSource)
	assert.Equal(t, "catalog.json", got.CatalogSource)
	assert.Nil(t, got.Summary)

	summary := &model.BatchSummary{EntriesProcessed: 10, Matched: 8, Failed: 2, ReviewRequired: 3}
	require.NoError(t, s.CompleteRun(ctx, run.ID, summary))

	got, err = s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.NotNil(t, got.Summary)
	assert.Equal(t, 8, got.Summary.Matched)
	assert.Equal(t, 3, got.Summary.ReviewRequired)
}

func TestSQLiteGetRunNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetRun(context.Background(), "does-not-exist")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLiteUpdateMissingRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.UpdateRunStatus(ctx, "does-not-exist", model.RunStatusFailed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	err = s.CompleteRun(ctx, "does-not-exist", &model.BatchSummary{})
	require.Error(t, err)
}

func TestSQLiteListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.CreateRun(ctx, "a.csv", "catalog.json")
	require.NoError(t, err)
	_, err = s.CreateRun(ctx, "b.csv", "catalog.json")
	require.NoError(t, err)
	require.NoError(t, s.UpdateRunStatus(ctx, a.ID, model.RunStatusComplete))

	runs, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	complete, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, complete, 1)
	assert.Equal(t, a.ID, complete[0].ID)

	limited, err := s.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLiteSaveAndListSpecifications(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "prices.csv", "catalog.json")
	require.NoError(t, err)

	specs := []model.ProductSpecification{
		testSpec("ZZAB", false),
		testSpec("AAAB", true),
	}
	require.NoError(t, s.SaveSpecifications(ctx, run.ID, specs))

	got, err := s.ListSpecifications(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Ordered by entry code.
	assert.Equal(t, "AAAB", got[0].EntryCode)
	assert.Equal(t, "ZZAB", got[1].EntryCode)
	assert.True(t, got[0].RequiresReview)
	assert.Equal(t, model.ConfidenceHigh, got[1].ConfidenceLevel)
	assert.Equal(t, "REV Gen5", got[1].Specs["drivetrain"])
}

// Re-saving the same run's specifications upserts instead of duplicating.
func TestSQLiteSaveSpecificationsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "prices.csv", "catalog.json")
	require.NoError(t, err)

	spec := testSpec("TNAB", false)
	require.NoError(t, s.SaveSpecifications(ctx, run.ID, []model.ProductSpecification{spec}))

	spec.ConfidenceScore = 0.7
	spec.ConfidenceLevel = model.ConfidenceMedium
	require.NoError(t, s.SaveSpecifications(ctx, run.ID, []model.ProductSpecification{spec}))

	got, err := s.ListSpecifications(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0.7, got[0].ConfidenceScore)
	assert.Equal(t, model.ConfidenceMedium, got[0].ConfidenceLevel)
}

func TestSQLiteSaveSpecificationsEmpty(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveSpecifications(context.Background(), "whatever", nil))
}

func TestOpenSQLiteDriver(t *testing.T) {
	s, err := Open(context.Background(), config.StoreConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "open.db"),
	})
	require.NoError(t, err)
	defer s.Close()

	// Migrations already ran, so the schema is usable immediately.
	run, err := s.CreateRun(context.Background(), "p.csv", "c.json")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}
