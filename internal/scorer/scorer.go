// Package scorer provides the pluggable similarity scorers backing the
// matcher's third tier. A scorer returns a 0-1 similarity for a pair of
// texts; callers must not assume what backs it.
package scorer

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/arcticline/pricebook-cli/internal/config"
)

// ErrUnavailable marks a scorer failure or timeout. The matcher treats it as
// "tier 3 not available" for the current entry instead of failing the batch.
var ErrUnavailable = eris.New("scorer: unavailable")

// Scorer computes a similarity in [0,1] for a pair of texts.
type Scorer interface {
	Name() string
	Score(ctx context.Context, a, b string) (float64, error)
}

// New builds the configured scorer implementation.
func New(cfg config.ScorerConfig) (Scorer, error) {
	switch cfg.Provider {
	case "", "lexical":
		return NewLexical(), nil
	case "embedding":
		return NewEmbedding(cfg)
	case "claude":
		return NewClaude(cfg)
	default:
		return nil, eris.Errorf("scorer: unknown provider %q", cfg.Provider)
	}
}

// clamp bounds a similarity into [0,1].
func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
