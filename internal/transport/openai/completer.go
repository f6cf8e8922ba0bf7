package openai

import (
	"context"
	"fmt"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/bookqa/internal/domain"
	"github.com/kailas-cloud/bookqa/internal/metrics"
)

// Completer is a text-completion provider using the legacy /completions endpoint.
type Completer struct {
	client   *openai.Client
	model    string
	user     string
	provider string
	logger   *zap.Logger
}

// NewCompleter creates an OpenAI-compatible completion provider.
func NewCompleter(cfg *Config) *Completer {
	return &Completer{
		client:   newClient(cfg),
		model:    cfg.Model,
		user:     cfg.User,
		provider: cfg.Provider,
		logger:   cfg.Logger,
	}
}

// Complete implements domain.Completer. The text of the first choice is
// returned untouched.
func (c *Completer) Complete(ctx context.Context, in domain.CompletionRequest) (domain.CompletionResult, error) {
	req := openai.CompletionRequest{
		Model:       c.model,
		Prompt:      in.Prompt,
		MaxTokens:   in.MaxTokens,
		Temperature: wireTemperature(in.Temperature),
		User:        c.user,
	}

	start := time.Now()
	resp, err := c.client.CreateCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		c.countError("api_error")
		return domain.CompletionResult{}, parseAPIError("completion", err)
	}
	if len(resp.Choices) == 0 {
		c.countError("empty_response")
		return domain.CompletionResult{}, fmt.Errorf("empty completion response: %w", domain.ErrProviderError)
	}

	metrics.CompletionRequestsTotal.WithLabelValues(c.provider, c.model, "success").Inc()
	metrics.CompletionRequestDuration.WithLabelValues(c.provider, c.model).Observe(duration.Seconds())
	var usage openai.Usage
	if resp.Usage != nil {
		usage = *resp.Usage
	}
	if usage.TotalTokens > 0 {
		tokens := metrics.CompletionTokensTotal
		tokens.WithLabelValues(c.provider, c.model, "prompt").Add(float64(usage.PromptTokens))
		tokens.WithLabelValues(c.provider, c.model, "completion").Add(float64(usage.CompletionTokens))
		tokens.WithLabelValues(c.provider, c.model, "total").Add(float64(usage.TotalTokens))
	}

	if reason := resp.Choices[0].FinishReason; reason == "length" {
		c.logger.Debug("Completion stopped at max_tokens",
			zap.String("model", c.model),
			zap.Int("max_tokens", in.MaxTokens),
		)
	}

	return domain.CompletionResult{
		Text:             resp.Choices[0].Text,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
	}, nil
}

func (c *Completer) countError(kind string) {
	metrics.CompletionRequestsTotal.WithLabelValues(c.provider, c.model, "error").Inc()
	metrics.CompletionErrorsTotal.WithLabelValues(c.provider, c.model, kind).Inc()
}

// wireTemperature maps zero to the smallest positive float32: the request
// field is omitempty, and an omitted temperature means 1 on the server.
func wireTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}
