package pipeline

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/arcticline/pricebook-cli/internal/model"
)

// BatchResult correlates every emitted specification back to its price entry
// by code; output order is by entry code, not input position.
type BatchResult struct {
	Specs   []model.ProductSpecification
	Summary model.BatchSummary
}

// RunBatch processes price entries concurrently against the shared read-only
// candidate set. Each entry gets its own pipeline context; per-entry
// failures never abort the batch. Aggregate counts are folded under a single
// lock once per entry.
func (p *Pipeline) RunBatch(ctx context.Context, entries []model.PriceEntry, candidates []model.CatalogVehicle) (*BatchResult, error) {
	result := &BatchResult{
		Summary: model.BatchSummary{
			VehiclesExtracted: len(candidates),
			EntriesProcessed:  len(entries),
		},
	}

	zap.L().Info("pipeline: starting batch",
		zap.Int("entries", len(entries)),
		zap.Int("candidates", len(candidates)),
		zap.Int("concurrency", p.cfg.Batch.MaxConcurrentEntries),
	)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Batch.MaxConcurrentEntries)

	for _, entry := range entries {
		g.Go(func() error {
			spec, pc, err := p.run(gctx, entry, candidates)
			if err != nil {
				// Only cancellation reaches here; let the group stop.
				return err
			}

			mu.Lock()
			defer mu.Unlock()

			result.Specs = append(result.Specs, *spec)
			if spec.VehicleID != "" {
				result.Summary.Matched++
			} else {
				result.Summary.Failed++
				failure := model.MatchFailure{
					EntryCode:      entry.Code,
					ModelCode:      entry.ModelCode(),
					BestConfidence: spec.ConfidenceScore,
					Reasons:        spec.ValidationNotes,
				}
				if pc.MatchResult != nil {
					failure.Result = *pc.MatchResult
					failure.BestConfidence = pc.MatchResult.BestAttemptedConfidence()
				}
				result.Summary.Failures = append(result.Summary.Failures, failure)
			}
			if spec.RequiresReview {
				result.Summary.ReviewRequired++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(result.Specs, func(i, j int) bool {
		return result.Specs[i].EntryCode < result.Specs[j].EntryCode
	})
	// Lowest confidence first so operators triage the worst failures first.
	sort.Slice(result.Summary.Failures, func(i, j int) bool {
		if result.Summary.Failures[i].BestConfidence != result.Summary.Failures[j].BestConfidence {
			return result.Summary.Failures[i].BestConfidence < result.Summary.Failures[j].BestConfidence
		}
		return result.Summary.Failures[i].EntryCode < result.Summary.Failures[j].EntryCode
	})

	zap.L().Info("pipeline: batch complete",
		zap.Int("matched", result.Summary.Matched),
		zap.Int("failed", result.Summary.Failed),
		zap.Int("review_required", result.Summary.ReviewRequired),
		zap.Float64("match_success_rate", result.Summary.MatchSuccessRate()),
	)

	return result, nil
}
