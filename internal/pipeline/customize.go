package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/arcticline/pricebook-cli/internal/model"
)

var codeTokenRe = regexp.MustCompile(`[A-Z0-9]+`)

var displacementRe = regexp.MustCompile(`^\d{3,4}$`)

// trackTypeTokens are model-code tokens that identify the track profile.
var trackTypeTokens = map[string]bool{
	"TRAIL":     true,
	"MOUNTAIN":  true,
	"MTN":       true,
	"CROSSOVER": true,
	"UTILITY":   true,
	"SPORT":     true,
}

// trimTokens map model-code trim markers to performance levels.
var trimTokens = map[string]string{
	"XRS":     "X-RS",
	"XTREME":  "Xtreme",
	"EXPERT":  "Expert",
	"SE":      "SE",
	"LE":      "LE",
	"GT":      "GT",
}

// stageCustomize parses the price entry's model code for embedded
// configuration tokens: displacement, fuel system, track length/type, and
// trim level. Detected values that conflict with inherited ones are recorded
// with `<field>_customized` and `<field>_original` markers. Never fatal;
// zero detections just yields fewer customizations. A code dense enough to
// yield CustomizationBonusAt detections earns a confidence bonus.
func (p *Pipeline) stageCustomize(_ context.Context, pc *Context, _ []model.CatalogVehicle) StageResult {
	code := strings.ToUpper(pc.Entry.ModelCode())
	tokens := codeTokenRe.FindAllString(code, -1)

	detections := 0
	for _, tok := range tokens {
		switch {
		case displacementRe.MatchString(tok):
			if cc, ok := parseDisplacement(tok); ok {
				p.setCustomization(pc, "displacement", cc, inheritedEngineValue(pc, "displacement"))
				detections++
			} else if inches, ok := parseTrackLength(tok); ok {
				p.setCustomization(pc, "track_length", inches, inheritedDimensionValue(pc, "track_length"))
				detections++
			}
		case tok == "EFI":
			p.setCustomization(pc, "fuel_system", "electronic_fuel_injection", inheritedEngineValue(pc, "fuel_system"))
			detections++
		case tok == "ETEC":
			p.setCustomization(pc, "fuel_system", "direct_injection", inheritedEngineValue(pc, "fuel_system"))
			detections++
		case tok == "CARB":
			p.setCustomization(pc, "fuel_system", "carburetor", inheritedEngineValue(pc, "fuel_system"))
			detections++
		case trackTypeTokens[tok]:
			p.setCustomization(pc, "track_type", strings.ToLower(tok), inheritedDimensionValue(pc, "track_type"))
			detections++
		default:
			if trim, ok := trimTokens[tok]; ok {
				p.setCustomization(pc, "performance_level", trim, "")
				detections++
			}
		}
	}

	// Entry-level track text also counts when the code carried nothing.
	if _, ok := pc.Customizations["track_type"]; !ok && pc.Entry.Track != "" {
		for tok := range trackTypeTokens {
			if strings.Contains(strings.ToUpper(pc.Entry.Track), tok) {
				p.setCustomization(pc, "track_type", strings.ToLower(tok), inheritedDimensionValue(pc, "track_type"))
				detections++
				break
			}
		}
	}

	// Confidence moves only with evidence: a dense model code is stronger
	// support than a bare one; zero detections leaves confidence alone.
	conf := pc.Confidence
	signal := 0.5
	switch {
	case detections >= p.cfg.Pipeline.CustomizationBonusAt:
		conf += 0.05
		signal = 0.9
	case detections > 0:
		conf += 0.02
		signal = 0.7
	}

	return StageResult{
		Success:    true,
		Confidence: conf,
		Signal:     signal,
		Detections: detections,
	}
}

// setCustomization records a detected value; when it overrides a different
// inherited value, the original is preserved alongside a customized marker.
func (p *Pipeline) setCustomization(pc *Context, field, value, inherited string) {
	pc.Customizations[field] = value
	if inherited != "" && inherited != value {
		pc.Customizations[field+"_customized"] = true
		pc.Customizations[field+"_original"] = inherited
	}
}

// parseDisplacement accepts 3-4 digit tokens in the plausible engine range.
func parseDisplacement(tok string) (string, bool) {
	n, err := strconv.Atoi(tok)
	if err != nil || n < 250 || n > 1300 {
		return "", false
	}
	return fmt.Sprintf("%dcc", n), true
}

// parseTrackLength accepts 3-digit tokens in the track length range (inches).
func parseTrackLength(tok string) (string, bool) {
	n, err := strconv.Atoi(tok)
	if err != nil || n < 110 || n > 180 {
		return "", false
	}
	return fmt.Sprintf("%din", n), true
}

func inheritedEngineValue(pc *Context, key string) string {
	if group, ok := pc.InheritedSpecs["engine"].(map[string]string); ok {
		return group[key]
	}
	return ""
}

func inheritedDimensionValue(pc *Context, key string) string {
	if group, ok := pc.InheritedSpecs["dimensions"].(map[string]string); ok {
		return group[key]
	}
	return ""
}
