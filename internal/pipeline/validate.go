package pipeline

import (
	"strings"
	"time"

	"github.com/arcticline/pricebook-cli/internal/model"
)

// stageValidate cross-checks the merged record, classifies the confidence
// level, and freezes the terminal ProductSpecification. It always runs, and
// only ever downgrades: inconsistencies lower confidence, never raise it.
func (p *Pipeline) stageValidate(pc *Context) *model.ProductSpecification {
	conf := pc.Confidence

	for _, missing := range missingRequiredFields(pc) {
		pc.note("missing required field: %s", missing)
		conf -= 0.05
	}

	for _, field := range inconsistentFields(pc) {
		pc.note("%s: field %q overrides inherited value without a customization marker", ErrInconsistentSpecification.Error(), field)
		conf *= 0.9
	}

	conf = clampConfidence(conf)

	review := pc.MatchResult != nil && pc.MatchResult.RequiresReview
	if pc.BaseModel == nil {
		review = true
		// Without a base model the record classifies LOW no matter how
		// close the attempted tiers came.
		if model.ClassifyConfidence(conf) != model.ConfidenceLow {
			conf = 0.69
			pc.note("confidence lowered: no base model matched")
		}
	}

	// A record flagged for review must not surface as HIGH confidence, no
	// matter how well the later stages scored.
	if review && model.ClassifyConfidence(conf) == model.ConfidenceHigh {
		conf = 0.89
		pc.note("confidence capped: human review required")
	}

	spec := &model.ProductSpecification{
		ProcessingID:    pc.ProcessingID,
		EntryCode:       pc.Entry.Code,
		Brand:           pc.Entry.Brand,
		ModelYear:       pc.Entry.ModelYear,
		Specs:           mergeSpecs(pc),
		SpringOptions:   pc.SpringOptions,
		ConfidenceScore: conf,
		ConfidenceLevel: model.ClassifyConfidence(conf),
		RequiresReview:  review,
		ValidationNotes: pc.Notes,
		CreatedAt:       time.Now().UTC(),
	}
	if pc.BaseModel != nil {
		spec.VehicleID = pc.BaseModel.ID
		spec.DisplayName = pc.BaseModel.DisplayName
	} else {
		spec.DisplayName = strings.TrimSpace(pc.Entry.Model + " " + pc.Entry.Package)
	}

	pc.Confidence = conf
	return spec
}

// missingRequiredFields lists the fields the output of record cannot do
// without.
func missingRequiredFields(pc *Context) []string {
	var missing []string
	if pc.Entry.Code == "" {
		missing = append(missing, "entry_code")
	}
	if pc.Entry.Brand == "" {
		missing = append(missing, "brand")
	}
	if pc.Entry.ModelYear == 0 {
		missing = append(missing, "model_year")
	}
	if pc.Entry.Price.IsZero() {
		missing = append(missing, "price")
	}
	if pc.BaseModel != nil && pc.BaseModel.DisplayName == "" {
		missing = append(missing, "display_name")
	}
	return missing
}

// inconsistentFields finds customization values that silently contradict an
// inherited value: stage 3 marks every legitimate override, so an unmarked
// conflict means the merge cannot be trusted.
func inconsistentFields(pc *Context) []string {
	var fields []string
	for field, value := range pc.Customizations {
		if strings.HasSuffix(field, "_customized") || strings.HasSuffix(field, "_original") {
			continue
		}
		s, ok := value.(string)
		if !ok {
			continue
		}
		inherited := inheritedEngineValue(pc, field)
		if inherited == "" {
			inherited = inheritedDimensionValue(pc, field)
		}
		if inherited == "" || inherited == s {
			continue
		}
		if _, marked := pc.Customizations[field+"_customized"]; !marked {
			fields = append(fields, field)
		}
	}
	return fields
}

// mergeSpecs produces the final specification tree: the inherited groups
// with the detected customizations (and their markers) layered on top.
func mergeSpecs(pc *Context) map[string]any {
	specs := make(map[string]any, len(pc.InheritedSpecs)+len(pc.Customizations))
	for k, v := range pc.InheritedSpecs {
		specs[k] = v
	}
	for k, v := range pc.Customizations {
		specs[k] = v
	}
	specs["price"] = pc.Entry.Price.String()
	if pc.Entry.Currency != "" {
		specs["currency"] = pc.Entry.Currency
	}
	return specs
}
