package scorer

import (
	"context"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/arcticline/pricebook-cli/internal/config"
	"github.com/arcticline/pricebook-cli/internal/resilience"
)

// Embedding scores similarity as the cosine of OpenAI text embeddings.
// Calls are rate limited and bounded by the configured timeout; any API
// failure surfaces as ErrUnavailable.
type Embedding struct {
	client  *openai.Client
	model   openai.EmbeddingModel
	limiter *rate.Limiter
	timeout time.Duration
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// NewEmbedding creates the embedding-backed scorer.
func NewEmbedding(cfg config.ScorerConfig) (*Embedding, error) {
	if cfg.OpenAIKey == "" {
		return nil, eris.New("scorer: embedding provider requires openai_key")
	}

	conf := openai.DefaultConfig(cfg.OpenAIKey)
	if cfg.OpenAIBaseURL != "" {
		conf.BaseURL = cfg.OpenAIBaseURL
	}

	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 5
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 20 * time.Second
	}

	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("openai", "embeddings")

	return &Embedding{
		client:  openai.NewClientWithConfig(conf),
		model:   openai.EmbeddingModel(cfg.EmbeddingModel),
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		timeout: timeout,
		retry:   retry,
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
	}, nil
}

func (e *Embedding) Name() string { return "embedding" }

func (e *Embedding) Score(ctx context.Context, a, b string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := e.limiter.Wait(ctx); err != nil {
		return 0, eris.Wrap(ErrUnavailable, err.Error())
	}

	resp, err := resilience.ExecuteVal(ctx, e.breaker, func(ctx context.Context) (openai.EmbeddingResponse, error) {
		return resilience.DoVal(ctx, e.retry, func(ctx context.Context) (openai.EmbeddingResponse, error) {
			return e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
				Input: []string{a, b},
				Model: e.model,
			})
		})
	})
	if err != nil {
		zap.L().Warn("scorer: embedding request failed", zap.Error(err))
		return 0, eris.Wrap(ErrUnavailable, "embedding request")
	}
	if len(resp.Data) < 2 {
		return 0, eris.Wrap(ErrUnavailable, "embedding response incomplete")
	}

	sim := cosine(resp.Data[0].Embedding, resp.Data[1].Embedding)
	// Embedding cosines for unrelated short strings sit well above zero;
	// map [-1,1] onto [0,1] so thresholds stay comparable across scorers.
	return clamp((sim + 1) / 2), nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
