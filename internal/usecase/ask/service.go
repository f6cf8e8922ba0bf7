// Package ask serves questions from the answer cache, falling back to the
// retrieval pipeline on a miss.
package ask

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/bookqa/internal/domain"
	"github.com/kailas-cloud/bookqa/internal/metrics"
)

// Result is the outcome of Ask.
type Result struct {
	Question domain.Question
	Cached   bool
	// ContextTokens is the context budget used; zero on a cache hit.
	ContextTokens int
}

// Service implements the ask use case.
type Service struct {
	answerer Answerer
	repo     Repository
	logger   *zap.Logger
}

// New creates a Service.
func New(answerer Answerer, repo Repository, logger *zap.Logger) *Service {
	return &Service{answerer: answerer, repo: repo, logger: logger}
}

// Normalize puts a raw question into the canonical cache form: trimmed,
// lower-cased, ending in "?".
func Normalize(raw string) (string, error) {
	q := strings.ToLower(strings.TrimSpace(raw))
	if q == "" {
		return "", fmt.Errorf("question is empty: %w", domain.ErrInvalidQuestion)
	}
	if !strings.HasSuffix(q, "?") {
		q += "?"
	}
	if n := utf8.RuneCountInString(q); n > domain.MaxQuestionLen {
		return "", fmt.Errorf("question has %d characters, limit is %d: %w",
			n, domain.MaxQuestionLen, domain.ErrInvalidQuestion)
	}
	return q, nil
}

// Ask answers raw, serving repeated questions from the cache.
func (s *Service) Ask(ctx context.Context, raw string) (Result, error) {
	question, err := Normalize(raw)
	if err != nil {
		return Result{}, err
	}

	cached, err := s.repo.Find(ctx, question)
	switch {
	case err == nil:
		metrics.QuestionCacheTotal.WithLabelValues("hit").Inc()
		return s.hit(ctx, cached)
	case !errors.Is(err, domain.ErrNotFound):
		return Result{}, fmt.Errorf("find question: %w", err)
	}
	metrics.QuestionCacheTotal.WithLabelValues("miss").Inc()

	ans, err := s.answerer.Answer(ctx, question)
	if err != nil {
		return Result{}, fmt.Errorf("answer question: %w", err)
	}

	rec := domain.Question{
		Question: question,
		Context:  ans.Context,
		Answer:   truncateRunes(ans.Text, domain.MaxAnswerLen),
		AskCount: 1,
	}
	if err := s.repo.Save(ctx, &rec); err != nil {
		return Result{}, fmt.Errorf("save question: %w", err)
	}

	s.logger.Info("Question answered",
		zap.String("id", rec.ID),
		zap.Int("context_tokens", ans.ContextTokens),
		zap.Strings("pages", ans.Pages),
	)
	return Result{Question: rec, ContextTokens: ans.ContextTokens}, nil
}

func (s *Service) hit(ctx context.Context, q domain.Question) (Result, error) {
	n, err := s.repo.IncrementAskCount(ctx, q.Question)
	if err != nil {
		// Counter is best effort.
		s.logger.Warn("Failed to increment ask count", zap.String("id", q.ID), zap.Error(err))
	} else {
		q.AskCount = n
	}
	return Result{Question: q, Cached: true}, nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
