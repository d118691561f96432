package scorer

import (
	"context"

	"github.com/agext/levenshtein"

	"github.com/arcticline/pricebook-cli/internal/normalize"
)

// Lexical scores similarity by edit distance over normalized text, blended
// with token overlap so reordered package names still score well. It never
// fails and makes no external calls.
type Lexical struct {
	params *levenshtein.Params
}

// NewLexical creates the edit-distance fallback scorer.
func NewLexical() *Lexical {
	return &Lexical{params: levenshtein.NewParams()}
}

func (l *Lexical) Name() string { return "lexical" }

// Score returns max(edit similarity, symmetric token overlap) on the
// normalized forms of a and b.
func (l *Lexical) Score(_ context.Context, a, b string) (float64, error) {
	na := normalize.PackageName(a)
	nb := normalize.PackageName(b)
	if na == "" || nb == "" {
		return 0, nil
	}

	edit := levenshtein.Similarity(na, nb, l.params)

	overlap := (normalize.TokenOverlap(na, nb) + normalize.TokenOverlap(nb, na)) / 2

	if overlap > edit {
		return clamp(overlap), nil
	}
	return clamp(edit), nil
}
