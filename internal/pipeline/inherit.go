package pipeline

import (
	"context"

	"github.com/arcticline/pricebook-cli/internal/model"
)

// stageInherit copies the matched base model's specification groups into the
// context, then layers on brand rules, model-year feature sets, and
// price-tier feature bands. It fails only when stage 1 failed; partial specs
// still succeed with a note and a small penalty.
func (p *Pipeline) stageInherit(_ context.Context, pc *Context, _ []model.CatalogVehicle) StageResult {
	if pc.BaseModel == nil {
		// Reachable only with the unmatched fallback enabled.
		pc.note("inheritance skipped: no base model, brand and year rules applied to empty specs")
		p.applyRules(pc)
		return StageResult{
			Success:    true,
			Confidence: pc.Confidence,
			Signal:     0.5,
			Notes:      nil,
		}
	}

	base := pc.BaseModel
	partial := 0

	if len(base.Specs.Engine) > 0 {
		pc.InheritedSpecs["engine"] = copyGroup(base.Specs.Engine)
	} else {
		partial++
	}
	if len(base.Specs.Dimensions) > 0 {
		pc.InheritedSpecs["dimensions"] = copyGroup(base.Specs.Dimensions)
	} else {
		partial++
	}
	if len(base.Specs.Suspension) > 0 {
		pc.InheritedSpecs["suspension"] = copyGroup(base.Specs.Suspension)
	} else {
		partial++
	}
	if len(base.Specs.Features) > 0 {
		pc.InheritedSpecs["features"] = append([]string(nil), base.Specs.Features...)
	}
	if len(base.Specs.Colors) > 0 {
		pc.InheritedSpecs["colors"] = append([]string(nil), base.Specs.Colors...)
	}
	if len(base.Specs.SpringOptions) > 0 {
		pc.InheritedSpecs["catalog_spring_options"] = append([]string(nil), base.Specs.SpringOptions...)
	}

	p.applyRules(pc)

	conf := pc.Confidence
	res := StageResult{Success: true, Signal: 1.0}
	if partial > 0 {
		// Missing core groups weaken the merged record.
		conf -= 0.05
		res.Signal = 0.7
		res.Notes = append(res.Notes, "base model specification incomplete: missing core spec groups")
	}
	res.Confidence = conf
	res.Detections = len(pc.InheritedSpecs)
	return res
}

// applyRules layers brand, model-year, and price-tier rule tables onto the
// inherited specs.
func (p *Pipeline) applyRules(pc *Context) {
	rules := p.cfg.Rules
	entry := pc.Entry

	var features []string
	if existing, ok := pc.InheritedSpecs["features"].([]string); ok {
		features = existing
	}

	if brand, ok := rules.Brands[entry.Brand]; ok {
		if brand.DrivetrainName != "" {
			pc.InheritedSpecs["drivetrain"] = brand.DrivetrainName
		}
		if brand.EngineSeries != "" {
			pc.InheritedSpecs["engine_series"] = brand.EngineSeries
		}
		features = append(features, brand.StandardFeatures...)
	}

	if yearFeatures, ok := rules.YearFeatures[entry.ModelYear]; ok {
		features = append(features, yearFeatures...)
	}

	for _, tier := range rules.PriceTiers {
		if entry.Price.GreaterThanOrEqual(tier.MinPrice) {
			features = append(features, tier.Features...)
		}
	}

	if len(features) > 0 {
		pc.InheritedSpecs["features"] = dedupeStrings(features)
	}
}

func copyGroup(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
