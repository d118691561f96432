package scorer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/arcticline/pricebook-cli/internal/config"
	"github.com/arcticline/pricebook-cli/internal/resilience"
)

const claudeSystemPrompt = `You compare two descriptions of the same snowmobile product line.
One comes from an abbreviated price list, the other from a marketing catalog, possibly in different languages.
Reply with a single number between 0 and 1: the probability that both describe the same sellable configuration.
Reply with the number only.`

// Claude scores similarity by asking a Claude model for a bare 0-1 judgment.
type Claude struct {
	client  sdk.Client
	model   string
	limiter *rate.Limiter
	timeout time.Duration
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// NewClaude creates the LLM-judge scorer.
func NewClaude(cfg config.ScorerConfig) (*Claude, error) {
	if cfg.AnthropicKey == "" {
		return nil, eris.New("scorer: claude provider requires anthropic_key")
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
	retry.OnRetry = resilience.RetryLogger("anthropic", "messages")

	return &Claude{
		client:  sdk.NewClient(option.WithAPIKey(cfg.AnthropicKey)),
		model:   cfg.AnthropicModel,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		timeout: timeout,
		retry:   retry,
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
	}, nil
}

func (c *Claude) Name() string { return "claude" }

func (c *Claude) Score(ctx context.Context, a, b string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, eris.Wrap(ErrUnavailable, err.Error())
	}

	prompt := fmt.Sprintf("Price list text:\n%s\n\nCatalog text:\n%s", a, b)

	msg, err := resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) (*sdk.Message, error) {
		return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*sdk.Message, error) {
			return c.client.Messages.New(ctx, sdk.MessageNewParams{
				Model:     sdk.Model(c.model),
				MaxTokens: 8,
				System: []sdk.TextBlockParam{
					{Text: claudeSystemPrompt},
				},
				Messages: []sdk.MessageParam{
					sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
				},
			})
		})
	})
	if err != nil {
		zap.L().Warn("scorer: claude request failed", zap.Error(err))
		return 0, eris.Wrap(ErrUnavailable, "claude request")
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	val, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, eris.Wrapf(ErrUnavailable, "claude returned non-numeric score %q", text)
	}
	return clamp(val), nil
}
