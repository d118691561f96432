// Package match implements the tiered price-entry to catalog-vehicle
// matching engine: three escalating comparison strategies with centrally
// configured thresholds and a full per-tier trace.
package match

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/arcticline/pricebook-cli/internal/config"
	"github.com/arcticline/pricebook-cli/internal/model"
	"github.com/arcticline/pricebook-cli/internal/normalize"
	"github.com/arcticline/pricebook-cli/internal/scorer"
)

// ErrNoCandidates marks an empty candidate set. Not fatal: the matcher
// records it as an issue and returns a no-match result.
var ErrNoCandidates = eris.New("match: no candidates")

// tierOutcome is the internal result of evaluating one tier across all
// candidates.
type tierOutcome struct {
	bestIdx    int // -1 when no candidate scored
	confidence float64
	evidence   map[string]string
}

// Matcher runs the escalating comparison strategies for one price entry
// against a read-only candidate set.
type Matcher struct {
	cfg config.MatchingConfig
	sc  scorer.Scorer
}

// New creates a Matcher. The scorer backs tier 3 and may be nil, in which
// case tier 3 is reported unavailable.
func New(cfg config.MatchingConfig, sc scorer.Scorer) *Matcher {
	return &Matcher{cfg: cfg, sc: sc}
}

// Match finds the best catalog vehicle for a price entry, or nil when no
// tier clears its threshold. The returned result always carries all three
// tier confidences for diagnostics, the winning method, and the review flag.
func (m *Matcher) Match(ctx context.Context, entry model.PriceEntry, candidates []model.CatalogVehicle) (*model.CatalogVehicle, model.MatchingResult) {
	result := model.MatchingResult{
		EntryCode:   entry.Code,
		FinalMethod: model.MatchNone,
	}

	if len(candidates) == 0 {
		result.Issues = append(result.Issues, ErrNoCandidates.Error())
		result.RequiresReview = true
		return nil, result
	}

	t1 := m.tier1(entry, candidates)
	result.Tier1 = model.TierEvidence{
		Attempted:  true,
		Matched:    t1.confidence >= m.cfg.ExactMatchThreshold,
		Confidence: t1.confidence,
		Evidence:   t1.evidence,
	}

	t2 := m.tier2(entry, candidates)
	result.Tier2 = model.TierEvidence{
		Attempted:  true,
		Matched:    t2.confidence >= m.cfg.NormalizedMatchThreshold,
		Confidence: t2.confidence,
		Evidence:   t2.evidence,
	}

	t3, t3err := m.tier3(ctx, entry, candidates)
	fuzzyThreshold := m.cfg.EffectiveFuzzyThreshold(m.scorerName())
	result.Tier3 = model.TierEvidence{
		Attempted:  t3err == nil,
		Matched:    t3err == nil && t3.confidence >= fuzzyThreshold,
		Confidence: t3.confidence,
		Evidence:   t3.evidence,
	}
	if t3err != nil {
		result.Issues = append(result.Issues, t3err.Error())
	}

	// Strict escalation: the first tier to clear its threshold owns the match.
	// Later tiers' confidences are diagnostics only.
	var winner *model.CatalogVehicle
	switch {
	case result.Tier1.Matched:
		result.FinalMethod = model.MatchExact
		result.OverallConfidence = t1.confidence
		winner = &candidates[t1.bestIdx]
	case result.Tier2.Matched:
		result.FinalMethod = model.MatchNormalized
		result.OverallConfidence = t2.confidence
		winner = &candidates[t2.bestIdx]
	case result.Tier3.Matched:
		result.FinalMethod = model.MatchFuzzy
		result.OverallConfidence = t3.confidence
		winner = &candidates[t3.bestIdx]
	default:
		result.OverallConfidence = result.BestAttemptedConfidence()
	}

	if winner != nil {
		result.VehicleID = winner.ID
	}
	result.RequiresReview = RequiresReview(result.OverallConfidence, winner != nil, m.cfg)

	zap.L().Debug("match: evaluated entry",
		zap.String("entry", entry.Code),
		zap.String("method", string(result.FinalMethod)),
		zap.Float64("confidence", result.OverallConfidence),
		zap.Bool("review", result.RequiresReview),
	)

	return winner, result
}

// tier1 tests raw (non-normalized, case-insensitive) substring containment of
// the entry's model name inside each candidate's model family AND display
// name. A hit is confidence 1.0.
func (m *Matcher) tier1(entry model.PriceEntry, candidates []model.CatalogVehicle) tierOutcome {
	out := tierOutcome{bestIdx: -1, evidence: map[string]string{"algorithm": "raw_substring"}}

	rawModel := strings.ToUpper(strings.TrimSpace(entry.Model))
	if rawModel == "" {
		out.evidence["skipped"] = "empty model"
		return out
	}

	var hits []int
	for i, c := range candidates {
		inFamily := strings.Contains(strings.ToUpper(c.ModelFamily), rawModel)
		inName := strings.Contains(strings.ToUpper(c.DisplayName), rawModel)
		if inFamily && inName {
			hits = append(hits, i)
		}
	}
	if len(hits) == 0 {
		return out
	}

	out.bestIdx = pickBest(hits, nil, candidates)
	out.confidence = 1.0
	out.evidence["matched_vehicle"] = candidates[out.bestIdx].ID
	out.evidence["hits"] = fmt.Sprintf("%d", len(hits))
	return out
}

// tier2 compares normalized forms. Model containment in the candidate's
// normalized family or name is mandatory and worth the threshold base; each
// additional present field (package, engine) moves confidence ±0.05 on a
// token-overlap test, so confidence scales with how many fields agree.
func (m *Matcher) tier2(entry model.PriceEntry, candidates []model.CatalogVehicle) tierOutcome {
	out := tierOutcome{bestIdx: -1, evidence: map[string]string{"algorithm": "normalized_substring"}}

	normModel := entry.NormalizedModel
	if normModel == "" {
		normModel = normalize.ModelName(entry.Model)
	}
	normPkg := entry.NormalizedPackage
	if normPkg == "" {
		normPkg = normalize.PackageName(entry.Package)
	}
	normEngine := entry.NormalizedEngine
	if normEngine == "" {
		normEngine = normalize.EngineSpec(entry.Engine)
	}
	out.evidence["normalized_model"] = normModel

	if normModel == "" {
		out.evidence["skipped"] = "empty model"
		return out
	}

	var hits []int
	confs := make(map[int]float64)
	for i, c := range candidates {
		family := normalize.ModelName(c.ModelFamily)
		name := normalize.ModelName(c.DisplayName)
		if !strings.Contains(family, normModel) && !strings.Contains(name, normModel) {
			// Partial credit for diagnostics only; cannot clear the threshold.
			partial := normalize.TokenOverlap(normModel, family+" "+name) * 0.5
			if partial > out.confidence {
				out.confidence = partial
			}
			continue
		}

		conf := m.cfg.NormalizedMatchThreshold
		haystack := name + " " + family + " " + normalize.PackageName(c.PackageName)

		if normPkg != "" {
			if normalize.TokenOverlap(normPkg, haystack) >= 0.5 {
				conf += 0.05
			} else {
				conf -= 0.05
			}
		}
		if normEngine != "" {
			engineHaystack := normalize.EngineSpec(strings.Join(specValues(c.Specs.Engine), " "))
			if normalize.TokenOverlap(normEngine, engineHaystack) >= 0.5 {
				conf += 0.05
			} else {
				conf -= 0.05
			}
		}
		if conf > 1 {
			conf = 1
		}

		hits = append(hits, i)
		confs[i] = conf
	}
	if len(hits) == 0 {
		return out
	}

	out.bestIdx = pickBest(hits, confs, candidates)
	out.confidence = confs[out.bestIdx]
	out.evidence["matched_vehicle"] = candidates[out.bestIdx].ID
	return out
}

// tier3 delegates to the pluggable similarity scorer. Scorer failure is
// returned as an error and treated as "tier 3 not available"; it never
// propagates into the batch. Cross-family similarities are down-weighted by
// the configured penalty, with same_family recorded in the evidence.
func (m *Matcher) tier3(ctx context.Context, entry model.PriceEntry, candidates []model.CatalogVehicle) (tierOutcome, error) {
	out := tierOutcome{bestIdx: -1, evidence: map[string]string{"algorithm": "similarity_scorer"}}

	if m.sc == nil {
		return out, eris.Wrap(scorer.ErrUnavailable, "no scorer configured")
	}
	out.evidence["scorer"] = m.sc.Name()

	entryText := strings.TrimSpace(strings.Join([]string{entry.Model, entry.Package, entry.Engine}, " "))
	entryFamily := normalize.ModelName(entry.Model)

	var hits []int
	confs := make(map[int]float64)
	for i, c := range candidates {
		candidateText := strings.TrimSpace(c.ModelFamily + " " + c.DisplayName)

		sim, err := m.sc.Score(ctx, entryText, candidateText)
		if err != nil {
			return tierOutcome{bestIdx: -1, evidence: out.evidence}, eris.Wrapf(scorer.ErrUnavailable, "tier 3 degraded: %v", err)
		}

		if !sameFamily(entryFamily, c) {
			sim *= m.cfg.CrossFamilyPenalty
		}

		hits = append(hits, i)
		confs[i] = sim
	}
	if len(hits) == 0 {
		return out, nil
	}

	out.bestIdx = pickBest(hits, confs, candidates)
	out.confidence = confs[out.bestIdx]
	out.evidence["matched_vehicle"] = candidates[out.bestIdx].ID
	out.evidence["same_family"] = fmt.Sprintf("%t", sameFamily(entryFamily, candidates[out.bestIdx]))
	return out, nil
}

// sameFamily reports whether the entry's normalized model family appears in
// the candidate's normalized family (or the reverse, for abbreviated
// catalog families).
func sameFamily(entryFamily string, c model.CatalogVehicle) bool {
	if entryFamily == "" {
		return false
	}
	candFamily := normalize.ModelName(c.ModelFamily)
	if candFamily == "" {
		return false
	}
	return strings.Contains(candFamily, entryFamily) || strings.Contains(entryFamily, candFamily)
}

// pickBest selects the winning candidate among hits: highest confidence,
// then higher source-catalog extraction quality, then lexical order of the
// vehicle ID. The ordering is deliberate so batch output is deterministic.
func pickBest(hits []int, confs map[int]float64, candidates []model.CatalogVehicle) int {
	best := hits[0]
	for _, i := range hits[1:] {
		ci, cb := 0.0, 0.0
		if confs != nil {
			ci, cb = confs[i], confs[best]
		}
		switch {
		case ci > cb:
			best = i
		case ci < cb:
			// keep best
		case candidates[i].ExtractionQuality > candidates[best].ExtractionQuality:
			best = i
		case candidates[i].ExtractionQuality == candidates[best].ExtractionQuality &&
			candidates[i].ID < candidates[best].ID:
			best = i
		}
	}
	return best
}

func (m *Matcher) scorerName() string {
	if m.sc == nil {
		return ""
	}
	return m.sc.Name()
}

func specValues(group map[string]string) []string {
	vals := make([]string, 0, len(group))
	for _, v := range group {
		vals = append(vals, v)
	}
	return vals
}
