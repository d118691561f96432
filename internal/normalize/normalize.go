// Package normalize canonicalizes model, package, and engine strings so that
// linguistically equivalent identifiers from the price list and the catalog
// converge to the same form before comparison. All functions are pure, total,
// and idempotent.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// tokenAliases maps abbreviated or source-language tokens to canonical ones.
// Applied token-wise after uppercasing and hyphen splitting.
var tokenAliases = map[string]string{
	"PKG":      "PACKAGE",
	"PAK":      "PACKAGE",
	"PAKETTI":  "PACKAGE",
	"W":        "WITH", // survives "w/" after punctuation stripping
	"EXPD":     "EXPEDITION",
	"XTR":      "XTREME",
	"MTN":      "MOUNTAIN",
	"STD":      "STANDARD",
	"EL":       "ELECTRIC",
	"SAHKO":    "ELECTRIC",
	"VAKIO":    "STANDARD",
	"LEVEA":    "WIDE",
	"KAPEA":    "NARROW",
	"MUSTA":    "BLACK",
	"VALKOINEN": "WHITE",
}

// engineAliases canonicalizes engine technology markers. Engine specs keep
// their technology token glued (no hyphen) so "E-TEC" and "ETEC" converge.
var engineAliases = map[string]string{
	"E-TEC": "ETEC",
	"E-TEC.": "ETEC",
	"4-TEC": "4TEC",
	"EFI.":  "EFI",
	"TURBO.": "TURBO",
}

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

var diacriticFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// ModelName normalizes a model family string ("malli").
func ModelName(s string) string {
	return canonicalize(s)
}

// PackageName normalizes a package string ("paketti"), expanding
// abbreviations such as "Pkg" and splitting hyphenated trims so that
// "X-RS" and "X RS" converge.
func PackageName(s string) string {
	return canonicalize(s)
}

// EngineSpec normalizes an engine specification, gluing technology markers
// ("E-TEC" → "ETEC") so displacement and technology compare cleanly.
func EngineSpec(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	s = foldDiacritics(s)

	fields := strings.Fields(s)
	for i, f := range fields {
		if alias, ok := engineAliases[f]; ok {
			fields[i] = alias
			continue
		}
		fields[i] = strings.ReplaceAll(f, "-", "")
	}
	return strings.Join(fields, " ")
}

// canonicalize applies the shared model/package rules: uppercase, diacritic
// folding, punctuation stripping, hyphen splitting, abbreviation expansion,
// and whitespace collapsing.
func canonicalize(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	s = foldDiacritics(s)

	s = strings.NewReplacer(
		",", " ",
		".", " ",
		"/", " ",
		"'", "",
		"\"", "",
		"&", " AND ",
		"-", " ",
	).Replace(s)

	fields := strings.Fields(s)
	for i, f := range fields {
		if alias, ok := tokenAliases[f]; ok {
			fields[i] = alias
		}
	}

	s = strings.Join(fields, " ")
	s = multiSpaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// foldDiacritics strips combining marks (ä → a, ö → o). Falls back to the
// input when the transform fails, keeping the function total.
func foldDiacritics(s string) string {
	out, _, err := transform.String(diacriticFold, s)
	if err != nil {
		return s
	}
	return out
}

// Tokens splits an already-normalized string into comparison tokens.
func Tokens(s string) []string {
	return strings.Fields(s)
}

// TokenOverlap returns the fraction of a's tokens present in b, in [0,1].
// Empty a yields 0.
func TokenOverlap(a, b string) float64 {
	at := Tokens(a)
	if len(at) == 0 {
		return 0
	}
	bt := make(map[string]bool, len(at))
	for _, t := range Tokens(b) {
		bt[t] = true
	}
	hits := 0
	for _, t := range at {
		if bt[t] {
			hits++
		}
	}
	return float64(hits) / float64(len(at))
}
