// Package budget persists token budget counters, one hash per period with
// a field per token kind.
package budget

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/bookqa/internal/domain"
)

// store is the consumer interface for budget operations (ISP).
type store interface {
	HIncrBy(ctx context.Context, key, field string, val int64) (int64, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Store implements provider.BudgetStore as HINCRBY on
// bookqa:budget:{account}:daily:YYYY-MM-DD and :monthly:YYYY-MM hashes.
type Store struct {
	store    store
	dailyTTL time.Duration
	monthTTL time.Duration
}

// New creates a budget store.
// dailyTTL is the TTL for daily keys (recommended: 48h).
// monthTTL is the TTL for monthly keys (recommended: 62 days).
func New(s store, dailyTTL, monthTTL time.Duration) *Store {
	return &Store{
		store:    s,
		dailyTTL: dailyTTL,
		monthTTL: monthTTL,
	}
}

// IncrBy adds val tokens of kind to the period counter and sets its TTL.
func (s *Store) IncrBy(ctx context.Context, key string, kind domain.TokenKind, val int64) error {
	if kind == "" {
		return fmt.Errorf("budget HINCRBY %s: empty token kind", key)
	}
	if _, err := s.store.HIncrBy(ctx, key, string(kind), val); err != nil {
		return fmt.Errorf("budget HINCRBY %s %s: %w", key, kind, err)
	}

	// NX: the first write of the period fixes the expiry.
	if err := s.store.Expire(ctx, key, s.ttlForKey(key), true); err != nil {
		return fmt.Errorf("budget EXPIRE %s: %w", key, err)
	}
	return nil
}

// Get returns the counters of a period. A missing key is all zeros;
// fields of unknown kinds are skipped.
func (s *Store) Get(ctx context.Context, key string) (domain.TokenBreakdown, error) {
	fields, err := s.store.HGetAll(ctx, key)
	if err != nil {
		return domain.TokenBreakdown{}, fmt.Errorf("budget HGETALL %s: %w", key, err)
	}

	var b domain.TokenBreakdown
	for _, kind := range []domain.TokenKind{domain.TokensEmbedding, domain.TokensCompletion} {
		raw, ok := fields[string(kind)]
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return domain.TokenBreakdown{}, fmt.Errorf("budget %s field %s: %w", key, kind, err)
		}
		b.Add(kind, n)
	}
	return b, nil
}

func (s *Store) ttlForKey(key string) time.Duration {
	if strings.Contains(key, ":daily:") {
		return s.dailyTTL
	}
	return s.monthTTL
}
