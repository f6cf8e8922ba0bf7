package question

import (
	"fmt"
	"strconv"

	"github.com/kailas-cloud/bookqa/internal/domain"
)

const (
	fieldQuestion  = "question"
	fieldContext   = "context"
	fieldAnswer    = "answer"
	fieldAskCount  = "ask_count"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"
)

// buildHashFields converts a Question into a flat map for HSET.
func buildHashFields(q *domain.Question) map[string]string {
	return map[string]string{
		fieldQuestion:  q.Question,
		fieldContext:   q.Context,
		fieldAnswer:    q.Answer,
		fieldAskCount:  strconv.Itoa(q.AskCount),
		fieldCreatedAt: strconv.FormatInt(q.CreatedAt, 10),
		fieldUpdatedAt: strconv.FormatInt(q.UpdatedAt, 10),
	}
}

// parseHashFields converts a stored hash back into a Question.
func parseHashFields(id string, m map[string]string) (domain.Question, error) {
	q := domain.Question{
		ID:       id,
		Question: m[fieldQuestion],
		Context:  m[fieldContext],
		Answer:   m[fieldAnswer],
	}

	var err error
	if q.AskCount, err = atoi(m, fieldAskCount); err != nil {
		return domain.Question{}, err
	}
	createdAt, err := atoi(m, fieldCreatedAt)
	if err != nil {
		return domain.Question{}, err
	}
	updatedAt, err := atoi(m, fieldUpdatedAt)
	if err != nil {
		return domain.Question{}, err
	}
	q.CreatedAt, q.UpdatedAt = int64(createdAt), int64(updatedAt)
	return q, nil
}

func atoi(m map[string]string, field string) (int, error) {
	raw, ok := m[field]
	if !ok || raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("field %s: %w", field, err)
	}
	return n, nil
}
