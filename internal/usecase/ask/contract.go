package ask

import (
	"context"

	"github.com/kailas-cloud/bookqa/internal/domain"
)

// Answerer produces a fresh answer for a normalized question.
type Answerer interface {
	Answer(ctx context.Context, question string) (domain.Answer, error)
}

// Repository caches answered questions.
type Repository interface {
	Find(ctx context.Context, question string) (domain.Question, error)
	Save(ctx context.Context, q *domain.Question) error
	IncrementAskCount(ctx context.Context, question string) (int, error)
}
