package provider

import (
	"context"

	"github.com/kailas-cloud/bookqa/internal/domain"
)

// BudgetChecker is the budget surface the decorators depend on.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(kind domain.TokenKind, tokens int64)
	RemainingDaily() int64
	RemainingMonthly() int64
}
