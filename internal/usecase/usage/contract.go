package usage

import (
	"time"

	"github.com/kailas-cloud/bookqa/internal/domain"
)

// BudgetReader provides read-only access to token budget state.
type BudgetReader interface {
	DailyLimit() int64
	MonthlyLimit() int64
	DailyUsed() int64
	MonthlyUsed() int64
	DailyBreakdown() domain.TokenBreakdown
	MonthlyBreakdown() domain.TokenBreakdown
	RemainingDaily() int64
	RemainingMonthly() int64
	Now() time.Time
}
