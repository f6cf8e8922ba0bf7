// Package answer implements retrieval-augmented answering over the book corpus.
package answer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/bookqa/internal/domain"
	"github.com/kailas-cloud/bookqa/internal/metrics"
)

// Completion defaults: short answers, deterministic sampling.
const (
	DefaultMaxAnswerTokens = 150
	DefaultTemperature     = 0
)

// Service answers questions from the corpus. It holds no mutable state and
// is safe for concurrent use.
type Service struct {
	corpus           Corpus
	embedder         domain.Embedder
	completer        domain.Completer
	template         Template
	maxContextTokens int
	maxAnswerTokens  int
	temperature      float32
	logger           *zap.Logger
}

// New creates a Service with the default budget, template and generation parameters.
func New(corpus Corpus, embedder domain.Embedder, completer domain.Completer, logger *zap.Logger) *Service {
	return &Service{
		corpus:           corpus,
		embedder:         embedder,
		completer:        completer,
		template:         DefaultTemplate(),
		maxContextTokens: MaxSectionLen,
		maxAnswerTokens:  DefaultMaxAnswerTokens,
		temperature:      DefaultTemperature,
		logger:           logger,
	}
}

// WithMaxContextTokens sets the context budget in words.
func (s *Service) WithMaxContextTokens(n int) *Service {
	s.maxContextTokens = n
	return s
}

// WithCompletionParams sets the answer length and sampling temperature.
func (s *Service) WithCompletionParams(maxTokens int, temperature float32) *Service {
	if maxTokens > 0 {
		s.maxAnswerTokens = maxTokens
	}
	s.temperature = temperature
	return s
}

// WithTemplate replaces the default prompt template.
func (s *Service) WithTemplate(t Template) *Service {
	s.template = t
	return s
}

// Answer embeds the question, picks the most relevant pages, and asks the
// completion model. Provider failures are returned as is, without retry.
func (s *Service) Answer(ctx context.Context, question string) (domain.Answer, error) {
	start := time.Now()

	emb, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("embed question: %w", err)
	}

	ranked, err := Rank(emb.Embedding, s.corpus.All())
	if err != nil {
		return domain.Answer{}, fmt.Errorf("rank corpus: %w", err)
	}

	assembled := Assemble(ranked, s.maxContextTokens)
	prompt := s.template.Build(question, assembled)

	res, err := s.completer.Complete(ctx, domain.CompletionRequest{
		Prompt:      prompt.Text,
		MaxTokens:   s.maxAnswerTokens,
		Temperature: s.temperature,
	})
	if err != nil {
		return domain.Answer{}, fmt.Errorf("complete prompt: %w", err)
	}

	metrics.ContextTokens.Observe(float64(assembled.TokensUsed))
	metrics.AnswerDuration.Observe(time.Since(start).Seconds())

	s.logger.Debug("Question answered",
		zap.Int("context_tokens", assembled.TokensUsed),
		zap.Bool("context_truncated", assembled.Truncated),
		zap.Strings("pages", assembled.Pages),
		zap.Int("prompt_chars", len(prompt.Text)),
		zap.Duration("duration", time.Since(start)),
	)

	return domain.Answer{
		Question:      question,
		Text:          res.Text,
		Context:       assembled.Text,
		ContextTokens: assembled.TokensUsed,
		Pages:         assembled.Pages,
	}, nil
}
