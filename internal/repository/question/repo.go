// Package question stores answered questions so repeated questions are
// served without calling the language model.
package question

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/bookqa/internal/db"
	"github.com/kailas-cloud/bookqa/internal/domain"
)

var keyPrefix = domain.KeyPrefix + "question:"

// store is the consumer interface for the question cache (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HIncrByExisting(ctx context.Context, key, field string, val int64, fields map[string]string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Repo implements usecase/ask.Repository on a hash per question.
type Repo struct {
	store store
	ttl   time.Duration
	now   func() time.Time
}

// New creates a question repository.
func New(s store) *Repo {
	return &Repo{store: s, now: time.Now}
}

// WithTTL expires records ttl after their last save. Zero keeps them forever.
func (r *Repo) WithTTL(ttl time.Duration) *Repo {
	r.ttl = ttl
	return r
}

// WithClock replaces the time source for created_at/updated_at.
func (r *Repo) WithClock(now func() time.Time) *Repo {
	r.now = now
	return r
}

// ID returns the record id of a normalized question.
func ID(question string) string {
	h := sha256.Sum256([]byte(question))
	return hex.EncodeToString(h[:])
}

func questionKey(id string) string {
	return keyPrefix + id
}

// Find returns the record for a normalized question or domain.ErrNotFound.
func (r *Repo) Find(ctx context.Context, question string) (domain.Question, error) {
	id := ID(question)
	key := questionKey(id)

	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return domain.Question{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(m) == 0 {
		return domain.Question{}, domain.ErrNotFound
	}

	q, err := parseHashFields(id, m)
	if err != nil {
		return domain.Question{}, fmt.Errorf("parse %s: %w", key, err)
	}
	return q, nil
}

// Save writes the record, filling ID and timestamps.
func (r *Repo) Save(ctx context.Context, q *domain.Question) error {
	now := r.now().UnixMilli()
	q.ID = ID(q.Question)
	if q.CreatedAt == 0 {
		q.CreatedAt = now
	}
	q.UpdatedAt = now

	key := questionKey(q.ID)
	if err := r.store.HSet(ctx, key, buildHashFields(q)); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	if r.ttl > 0 {
		if err := r.store.Expire(ctx, key, r.ttl, false); err != nil {
			return fmt.Errorf("expire %s: %w", key, err)
		}
	}
	return nil
}

// IncrementAskCount bumps ask_count and updated_at of an existing record in
// one store call and returns the new count. A missing or expired record
// yields domain.ErrNotFound and is not recreated.
func (r *Repo) IncrementAskCount(ctx context.Context, question string) (int, error) {
	key := questionKey(ID(question))

	updated := map[string]string{fieldUpdatedAt: strconv.FormatInt(r.now().UnixMilli(), 10)}
	n, err := r.store.HIncrByExisting(ctx, key, fieldAskCount, 1, updated)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("increment %s: %w", key, err)
	}
	return int(n), nil
}
