// Package pipeline implements the 5-stage specification inheritance
// pipeline: matched (price entry, base model) pairs become fully merged,
// confidence-scored product specifications.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/arcticline/pricebook-cli/internal/config"
	"github.com/arcticline/pricebook-cli/internal/match"
	"github.com/arcticline/pricebook-cli/internal/model"
)

// Pipeline runs the five stages in fixed order over a per-entry Context.
type Pipeline struct {
	cfg     *config.Config
	matcher *match.Matcher
}

// New creates a Pipeline around a configured matcher.
func New(cfg *config.Config, matcher *match.Matcher) *Pipeline {
	return &Pipeline{cfg: cfg, matcher: matcher}
}

// stageFunc is the uniform stage signature; every stage reads and writes the
// run's Context and returns its result.
type stageFunc func(ctx context.Context, pc *Context, candidates []model.CatalogVehicle) StageResult

// Run executes all five stages for one price entry against the shared
// read-only candidate set, always producing a ProductSpecification. A fatal
// first stage skips the middle stages; final validation always runs. The
// only error returned is context cancellation.
func (p *Pipeline) Run(ctx context.Context, entry model.PriceEntry, candidates []model.CatalogVehicle) (*model.ProductSpecification, error) {
	spec, _, err := p.run(ctx, entry, candidates)
	return spec, err
}

// run is Run plus the finished context, for callers that need the match
// trace.
func (p *Pipeline) run(ctx context.Context, entry model.PriceEntry, candidates []model.CatalogVehicle) (*model.ProductSpecification, *Context, error) {
	pc := &Context{
		ProcessingID:   uuid.New().String(),
		Entry:          entry,
		InheritedSpecs: make(map[string]any),
		Customizations: make(map[string]any),
	}

	log := zap.L().With(
		zap.String("processing_id", pc.ProcessingID),
		zap.String("entry", entry.Code),
	)
	log.Info("pipeline: starting run")

	stages := []struct {
		name Stage
		fn   stageFunc
	}{
		{StageBaseMatch, p.stageBaseMatch},
		{StageInherit, p.stageInherit},
		{StageCustomize, p.stageCustomize},
		{StageSpringOptions, p.stageSpringOptions},
	}

	fatal := false
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return nil, nil, eris.Wrap(err, "pipeline: run cancelled")
		}
		if fatal && s.name != StageBaseMatch {
			log.Debug("pipeline: stage skipped", zap.String("stage", string(s.name)))
			continue
		}

		start := time.Now()
		res := s.fn(ctx, pc, candidates)
		res.Stage = s.name

		pc.Confidence = clampConfidence(res.Confidence)
		pc.recordSignal(s.name, res.Signal)
		pc.Notes = append(pc.Notes, res.Notes...)
		if res.Success {
			pc.CompletedStages = append(pc.CompletedStages, string(s.name))
		}
		if res.Fatal {
			fatal = true
		}

		log.Debug("pipeline: stage complete",
			zap.String("stage", string(s.name)),
			zap.Bool("success", res.Success),
			zap.Float64("confidence", pc.Confidence),
			zap.Float64("signal", res.Signal),
			zap.Int("detections", res.Detections),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	}

	spec := p.stageValidate(pc)
	pc.CompletedStages = append(pc.CompletedStages, string(StageValidate))
	spec.CompletedStages = pc.CompletedStages

	log.Info("pipeline: run complete",
		zap.String("level", string(spec.ConfidenceLevel)),
		zap.Float64("confidence", spec.ConfidenceScore),
		zap.Bool("review", spec.RequiresReview),
	)

	return spec, pc, nil
}

// stageBaseMatch wraps the tiered matcher and seeds the run's confidence.
// Fatal when nothing matched and no unmatched fallback is configured.
func (p *Pipeline) stageBaseMatch(ctx context.Context, pc *Context, candidates []model.CatalogVehicle) StageResult {
	best, result := p.matcher.Match(ctx, pc.Entry, candidates)
	pc.MatchResult = &result
	pc.BaseModel = best

	if best == nil {
		res := StageResult{
			Success:    false,
			Fatal:      !p.cfg.Pipeline.AllowUnmatched,
			Confidence: result.OverallConfidence,
			Signal:     result.OverallConfidence,
			Notes:      []string{ErrMissingBaseModel.Error()},
		}
		res.Notes = append(res.Notes, result.Issues...)
		return res
	}

	return StageResult{
		Success:    true,
		Confidence: result.OverallConfidence,
		Signal:     result.OverallConfidence,
		Detections: 1,
	}
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
