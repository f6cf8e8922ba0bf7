// Package provider enforces the token budget of the language-model account
// and decorates the embedding and completion providers with it.
package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/bookqa/internal/domain"
)

// BudgetAction defines behavior when the token budget is exceeded.
type BudgetAction string

const (
	// BudgetActionWarn logs a warning but allows the request.
	BudgetActionWarn BudgetAction = "warn"
	// BudgetActionReject blocks the request with domain.ErrQuotaExceeded.
	BudgetActionReject BudgetAction = "reject"
)

// BudgetStore persists per-kind budget counters between restarts.
type BudgetStore interface {
	IncrBy(ctx context.Context, key string, kind domain.TokenKind, val int64) error
	Get(ctx context.Context, key string) (domain.TokenBreakdown, error)
}

// BudgetTracker counts tokens per UTC day and month, split into embedding
// and completion spend. Limits apply to the sum. Check is in-memory only;
// Record updates memory first, then writes through to the store.
type BudgetTracker struct {
	mu             sync.Mutex
	daily          domain.TokenBreakdown
	monthly        domain.TokenBreakdown
	dailyLimit     int64
	monthlyLimit   int64
	action         BudgetAction
	account        string
	lastDayReset   time.Time
	lastMonthReset time.Time
	now            func() time.Time
	store          BudgetStore
	logger         *zap.Logger
}

// NewBudgetTracker creates a budget tracker. A zero limit means unlimited.
func NewBudgetTracker(
	account string, dailyLimit, monthlyLimit int64,
	action BudgetAction, logger *zap.Logger,
) *BudgetTracker {
	b := &BudgetTracker{
		dailyLimit:   dailyLimit,
		monthlyLimit: monthlyLimit,
		action:       action,
		account:      account,
		now:          func() time.Time { return time.Now().UTC() },
		logger:       logger,
	}
	b.lastDayReset = truncateToDay(b.now())
	b.lastMonthReset = truncateToMonth(b.now())
	return b
}

// WithClock replaces the time source.
func (b *BudgetTracker) WithClock(now func() time.Time) *BudgetTracker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = func() time.Time { return now().UTC() }
	b.lastDayReset = truncateToDay(b.now())
	b.lastMonthReset = truncateToMonth(b.now())
	return b
}

// WithStore attaches a persistence store and loads the current counters.
func (b *BudgetTracker) WithStore(ctx context.Context, store BudgetStore) *BudgetTracker {
	b.store = store
	b.loadFromStore(ctx)
	return b
}

func (b *BudgetTracker) loadFromStore(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if val, err := b.store.Get(ctx, b.dailyKey(now)); err == nil {
		b.daily = val
	} else {
		b.logger.Warn("Failed to load daily budget from store", zap.Error(err))
	}
	if val, err := b.store.Get(ctx, b.monthlyKey(now)); err == nil {
		b.monthly = val
	} else {
		b.logger.Warn("Failed to load monthly budget from store", zap.Error(err))
	}

	b.logger.Info("Budget loaded from store",
		zap.String("account", b.account),
		zap.Int64("daily_embedding", b.daily.Embedding),
		zap.Int64("daily_completion", b.daily.Completion),
		zap.Int64("monthly_used", b.monthly.Total()),
	)
}

func (b *BudgetTracker) dailyKey(t time.Time) string {
	return fmt.Sprintf("%sbudget:%s:daily:%s", domain.KeyPrefix, b.account, t.Format("2006-01-02"))
}

func (b *BudgetTracker) monthlyKey(t time.Time) string {
	return fmt.Sprintf("%sbudget:%s:monthly:%s", domain.KeyPrefix, b.account, t.Format("2006-01"))
}

// Check verifies the budget allows a new request.
func (b *BudgetTracker) Check(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetIfNeeded()

	dailyUsed, monthlyUsed := b.daily.Total(), b.monthly.Total()
	dailyExceeded := b.dailyLimit > 0 && dailyUsed >= b.dailyLimit
	monthlyExceeded := b.monthlyLimit > 0 && monthlyUsed >= b.monthlyLimit
	if !dailyExceeded && !monthlyExceeded {
		return nil
	}

	if b.action == BudgetActionReject {
		return domain.ErrQuotaExceeded
	}

	b.logger.Warn("Token budget exceeded",
		zap.String("account", b.account),
		zap.Int64("daily_used", dailyUsed),
		zap.Int64("daily_limit", b.dailyLimit),
		zap.Int64("monthly_used", monthlyUsed),
		zap.Int64("monthly_limit", b.monthlyLimit),
	)
	return nil
}

// Record registers tokens of one kind consumed by a request.
func (b *BudgetTracker) Record(kind domain.TokenKind, tokens int64) {
	if tokens <= 0 {
		return
	}

	b.mu.Lock()
	b.resetIfNeeded()
	b.daily.Add(kind, tokens)
	b.monthly.Add(kind, tokens)
	store := b.store
	now := b.now()
	b.mu.Unlock()

	if store == nil {
		return
	}

	// The caller's context may already be cancelled once the response is out.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	dailyKey, monthlyKey := b.dailyKey(now), b.monthlyKey(now)
	if err := store.IncrBy(ctx, dailyKey, kind, tokens); err != nil {
		b.logger.Warn("Failed to persist daily budget", zap.String("key", dailyKey), zap.Error(err))
	}
	if err := store.IncrBy(ctx, monthlyKey, kind, tokens); err != nil {
		b.logger.Warn("Failed to persist monthly budget", zap.String("key", monthlyKey), zap.Error(err))
	}
}

// RemainingDaily returns tokens left today (-1 if unlimited).
func (b *BudgetTracker) RemainingDaily() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return remaining(b.dailyLimit, b.daily.Total())
}

// RemainingMonthly returns tokens left this month (-1 if unlimited).
func (b *BudgetTracker) RemainingMonthly() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return remaining(b.monthlyLimit, b.monthly.Total())
}

// DailyLimit returns the daily token cap.
func (b *BudgetTracker) DailyLimit() int64 { return b.dailyLimit }

// MonthlyLimit returns the monthly token cap.
func (b *BudgetTracker) MonthlyLimit() int64 { return b.monthlyLimit }

// DailyUsed returns tokens consumed today.
func (b *BudgetTracker) DailyUsed() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return b.daily.Total()
}

// DailyBreakdown returns today's tokens by kind.
func (b *BudgetTracker) DailyBreakdown() domain.TokenBreakdown {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return b.daily
}

// MonthlyUsed returns tokens consumed this month.
func (b *BudgetTracker) MonthlyUsed() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return b.monthly.Total()
}

// MonthlyBreakdown returns this month's tokens by kind.
func (b *BudgetTracker) MonthlyBreakdown() domain.TokenBreakdown {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return b.monthly
}

// Now returns the tracker's current time.
func (b *BudgetTracker) Now() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.now()
}

func remaining(limit, used int64) int64 {
	if limit == 0 {
		return -1
	}
	if used >= limit {
		return 0
	}
	return limit - used
}

// resetIfNeeded zeroes counters when the day or month rolls over.
func (b *BudgetTracker) resetIfNeeded() {
	now := b.now()
	today := truncateToDay(now)
	thisMonth := truncateToMonth(now)

	if today.After(b.lastDayReset) {
		b.daily = domain.TokenBreakdown{}
		b.lastDayReset = today
	}
	if thisMonth.After(b.lastMonthReset) {
		b.monthly = domain.TokenBreakdown{}
		b.lastMonthReset = thisMonth
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateToMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
