package scorer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcticline/pricebook-cli/internal/config"
)

func testScorerConfig(provider string) config.ScorerConfig {
	return config.ScorerConfig{Provider: provider}
}

func TestLexicalScoreIdentical(t *testing.T) {
	l := NewLexical()

	sim, err := l.Score(context.Background(), "MXZ X-RS 850", "MXZ X-RS 850")
	require.NoError(t, err)
	assert.Equal(t, 1.0, sim)
}

// Normalization runs before scoring, so presentation variants of the same
// identifier score as identical.
func TestLexicalScoreNormalizedVariants(t *testing.T) {
	l := NewLexical()

	sim, err := l.Score(context.Background(), "MXZ X-RS", "mxz x rs")
	require.NoError(t, err)
	assert.Equal(t, 1.0, sim)
}

func TestLexicalScoreOrdering(t *testing.T) {
	l := NewLexical()
	ctx := context.Background()

	close, err := l.Score(ctx, "Grand Touring LE", "Grand Touring SE")
	require.NoError(t, err)
	far, err := l.Score(ctx, "Grand Touring LE", "Summit Adrenaline")
	require.NoError(t, err)

	assert.Greater(t, close, far)
}

// Token overlap rescues reordered names that edit distance punishes.
func TestLexicalScoreReorderedTokens(t *testing.T) {
	l := NewLexical()

	sim, err := l.Score(context.Background(), "SWT Skandic", "Skandic SWT")
	require.NoError(t, err)
	assert.Equal(t, 1.0, sim)
}

func TestLexicalScoreEmpty(t *testing.T) {
	l := NewLexical()
	ctx := context.Background()

	sim, err := l.Score(ctx, "", "MXZ")
	require.NoError(t, err)
	assert.Equal(t, 0.0, sim)

	sim, err = l.Score(ctx, "MXZ", "")
	require.NoError(t, err)
	assert.Equal(t, 0.0, sim)
}

func TestLexicalScoreBounds(t *testing.T) {
	l := NewLexical()
	pairs := [][2]string{
		{"MXZ", "Summit"},
		{"Expedition Xtreme", "Expd Xtr"},
		{"a", "completely different text"},
	}
	for _, p := range pairs {
		sim, err := l.Score(context.Background(), p[0], p[1])
		require.NoError(t, err)
		assert.GreaterOrEqual(t, sim, 0.0)
		assert.LessOrEqual(t, sim, 1.0)
	}
}

func TestNewScorerProviders(t *testing.T) {
	sc, err := New(testScorerConfig(""))
	require.NoError(t, err)
	assert.Equal(t, "lexical", sc.Name())

	sc, err = New(testScorerConfig("lexical"))
	require.NoError(t, err)
	assert.Equal(t, "lexical", sc.Name())

	_, err = New(testScorerConfig("unknown"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}
