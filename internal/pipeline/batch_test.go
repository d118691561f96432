package pipeline

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcticline/pricebook-cli/internal/model"
)

func TestRunBatch(t *testing.T) {
	p := newTestPipeline(testConfig())
	entries := []model.PriceEntry{
		{Code: "ZZAB", Model: "MXZ", Brand: "SKI-DOO", ModelYear: 2026, Price: decimal.NewFromInt(15999)},
		{Code: "AAAB", Model: "MXZ", Brand: "SKI-DOO", ModelYear: 2026, Price: decimal.NewFromInt(12999)},
		{Code: "FAIL", Model: "Zephyr", Brand: "SKI-DOO", ModelYear: 2026, Price: decimal.NewFromInt(9999)},
	}
	candidates := []model.CatalogVehicle{fullSpecVehicle()}

	result, err := p.RunBatch(context.Background(), entries, candidates)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Summary.VehiclesExtracted)
	assert.Equal(t, 3, result.Summary.EntriesProcessed)
	assert.Equal(t, 2, result.Summary.Matched)
	assert.Equal(t, 1, result.Summary.Failed)
	assert.Equal(t, 1, result.Summary.ReviewRequired)
	assert.InDelta(t, 2.0/3.0, result.Summary.MatchSuccessRate(), 1e-9)

	// Specifications come back ordered by entry code, not input order.
	require.Len(t, result.Specs, 3)
	assert.Equal(t, "AAAB", result.Specs[0].EntryCode)
	assert.Equal(t, "FAIL", result.Specs[1].EntryCode)
	assert.Equal(t, "ZZAB", result.Specs[2].EntryCode)

	require.Len(t, result.Summary.Failures, 1)
	failure := result.Summary.Failures[0]
	assert.Equal(t, "FAIL", failure.EntryCode)
	assert.Equal(t, "FAIL", failure.ModelCode)
	assert.Equal(t, model.MatchNone, failure.Result.FinalMethod)
	assert.NotEmpty(t, failure.Reasons)
}

func TestRunBatchEmpty(t *testing.T) {
	p := newTestPipeline(testConfig())

	result, err := p.RunBatch(context.Background(), nil, []model.CatalogVehicle{fullSpecVehicle()})
	require.NoError(t, err)

	assert.Empty(t, result.Specs)
	assert.Equal(t, 0, result.Summary.EntriesProcessed)
	assert.Equal(t, 0.0, result.Summary.MatchSuccessRate())
}

func TestRunBatchCancelled(t *testing.T) {
	p := newTestPipeline(testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	entries := []model.PriceEntry{
		{Code: "TNAB", Model: "MXZ", Brand: "SKI-DOO", ModelYear: 2026, Price: decimal.NewFromInt(15999)},
	}
	_, err := p.RunBatch(ctx, entries, []model.CatalogVehicle{fullSpecVehicle()})
	require.Error(t, err)
}
