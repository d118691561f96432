package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/arcticline/pricebook-cli/internal/model"
	"github.com/arcticline/pricebook-cli/internal/normalize"
)

// optionKeywords maps detection keywords to the spring option they indicate.
// Scanned against the model code, the detected customizations, and the
// entry's own spring-option and track text.
var optionKeywords = []struct {
	keyword    string
	optionType model.OptionType
	confidence float64
}{
	{"COBRA", model.OptionTrackUpgrade, 0.85},
	{"POWDERMAX", model.OptionTrackUpgrade, 0.85},
	{"RIPSAW", model.OptionTrackUpgrade, 0.85},
	{"ICE RIPPER", model.OptionTrackUpgrade, 0.8},
	{"MOUNTAIN", model.OptionTrackUpgrade, 0.7},
	{"MTN", model.OptionTrackUpgrade, 0.7},
	{"SMART-SHOX", model.OptionSuspensionUpgrade, 0.85},
	{"SMARTSHOX", model.OptionSuspensionUpgrade, 0.85},
	{"AIR RIDE", model.OptionSuspensionUpgrade, 0.8},
	{"QS3", model.OptionSuspensionUpgrade, 0.75},
	{"KYB", model.OptionSuspensionUpgrade, 0.7},
	{"PREMIUM", model.OptionComfortUpgrade, 0.7},
	{"LUXE", model.OptionComfortUpgrade, 0.7},
	{"GT", model.OptionComfortUpgrade, 0.6},
	{"EXTREME", model.OptionPerformanceUpgrade, 0.75},
	{"XRS", model.OptionPerformanceUpgrade, 0.75},
	{"X-RS", model.OptionPerformanceUpgrade, 0.75},
	{"EXPERT", model.OptionPerformanceUpgrade, 0.7},
	{"COMPETITION", model.OptionPerformanceUpgrade, 0.7},
	{"WINDSHIELD", model.OptionWeatherProtection, 0.75},
	{"HANDGUARD", model.OptionWeatherProtection, 0.7},
	{"COVER", model.OptionWeatherProtection, 0.6},
	{"LINQ", model.OptionStorageUpgrade, 0.8},
	{"CARGO", model.OptionStorageUpgrade, 0.75},
	{"RACK", model.OptionStorageUpgrade, 0.7},
	{"TUNNEL BAG", model.OptionStorageUpgrade, 0.75},
}

// stageSpringOptions scans the model code and the accumulated customizations
// for option-indicating keywords, deduplicates overlapping detections of the
// same type, and appends the survivors to the context. Never fatal: zero
// options is valid and contributes a neutral signal without touching the
// overall confidence.
func (p *Pipeline) stageSpringOptions(_ context.Context, pc *Context, _ []model.CatalogVehicle) StageResult {
	haystack, tokens := buildOptionHaystack(pc)

	var detected []optionDetection
	for _, kw := range optionKeywords {
		if !matchKeyword(kw.keyword, haystack, tokens) {
			continue
		}
		detected = append(detected, optionDetection{
			marker: kw.keyword,
			opt: model.SpringOption{
				Type:        kw.optionType,
				Description: fmt.Sprintf("%s detected from %q marker", optionLabel(kw.optionType), strings.ToLower(kw.keyword)),
				Confidence:  kw.confidence,
			},
		})
	}

	if det, ok := detectColorChange(pc); ok {
		detected = append(detected, det)
	}

	pc.SpringOptions = append(pc.SpringOptions, dedupeOptions(detected)...)

	n := len(pc.SpringOptions)
	conf := pc.Confidence
	signal := 0.5
	if n > 0 {
		// Bonus tied to the count of detections, capped.
		bonus := 0.01 * float64(n)
		if bonus > 0.03 {
			bonus = 0.03
		}
		conf += bonus
		signal = 0.5 + 0.1*float64(min(n, 3))
	}

	return StageResult{
		Success:    true,
		Confidence: conf,
		Signal:     signal,
		Detections: n,
	}
}

// buildOptionHaystack concatenates every text the option scan considers:
// the model code, the entry's spring-option and track text, and the detected
// customization values. Returns the joined text plus its token set.
func buildOptionHaystack(pc *Context) (string, map[string]bool) {
	var b strings.Builder
	b.WriteString(strings.ToUpper(pc.Entry.ModelCode()))
	b.WriteString(" ")
	b.WriteString(strings.ToUpper(pc.Entry.SpringOption))
	b.WriteString(" ")
	b.WriteString(strings.ToUpper(pc.Entry.Track))
	for _, v := range pc.Customizations {
		if s, ok := v.(string); ok {
			b.WriteString(" ")
			b.WriteString(strings.ToUpper(s))
		}
	}

	haystack := b.String()
	tokens := make(map[string]bool)
	for _, tok := range codeTokenRe.FindAllString(haystack, -1) {
		tokens[tok] = true
	}
	return haystack, tokens
}

// matchKeyword tests a single-word keyword against whole tokens so that
// "RACK" cannot fire on "TRACK"; multi-word and hyphenated keywords fall
// back to substring containment.
func matchKeyword(kw, haystack string, tokens map[string]bool) bool {
	if strings.ContainsAny(kw, " -") {
		return strings.Contains(haystack, kw)
	}
	return tokens[kw]
}

// optionDetection pairs a detected option with the marker that triggered it,
// so dedup can compare markers instead of the templated descriptions.
type optionDetection struct {
	marker string
	opt    model.SpringOption
}

// detectColorChange reports a COLOR_CHANGE option when the entry names a
// color outside the base model's palette.
func detectColorChange(pc *Context) (optionDetection, bool) {
	if pc.Entry.Color == "" || pc.BaseModel == nil || len(pc.BaseModel.Specs.Colors) == 0 {
		return optionDetection{}, false
	}
	want := normalize.PackageName(pc.Entry.Color)
	for _, c := range pc.BaseModel.Specs.Colors {
		if normalize.PackageName(c) == want {
			return optionDetection{}, false
		}
	}
	return optionDetection{
		marker: pc.Entry.Color,
		opt: model.SpringOption{
			Type:        model.OptionColorChange,
			Description: fmt.Sprintf("color %q not in base palette", pc.Entry.Color),
			Confidence:  0.7,
		},
	}, true
}

// dedupeOptions collapses same-type detections whose markers converge to the
// same normalized form ("XRS"/"X-RS", "MTN"/"MOUNTAIN"), keeping the
// higher-confidence one. Distinct markers of the same type survive: a COBRA
// track and a RIPSAW track are different upgrades. Detection order is
// preserved.
func dedupeOptions(dets []optionDetection) []model.SpringOption {
	var out []model.SpringOption
	var keys []string
	for _, det := range dets {
		key := markerKey(det.marker)
		dup := false
		for i, kept := range out {
			if kept.Type == det.opt.Type && keys[i] == key {
				if det.opt.Confidence > kept.Confidence {
					out[i] = det.opt
				}
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, det.opt)
			keys = append(keys, key)
		}
	}
	return out
}

// markerKey folds a marker to its canonical comparison form: expanded via the
// package normalizer, then stripped of separators.
func markerKey(marker string) string {
	return strings.ReplaceAll(normalize.PackageName(marker), " ", "")
}

func optionLabel(t model.OptionType) string {
	return strings.ReplaceAll(string(t), "_", " ")
}
