// Package usage reports token consumption against the configured budget.
package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/bookqa/internal/domain"
)

// Period is a budget window.
type Period string

const (
	// PeriodDay is the current UTC day.
	PeriodDay Period = "day"
	// PeriodMonth is the current UTC month.
	PeriodMonth Period = "month"
)

// ParsePeriod validates a period name. Empty means day.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "", PeriodDay:
		return PeriodDay, nil
	case PeriodMonth:
		return PeriodMonth, nil
	default:
		return "", fmt.Errorf("period %q: %w", s, domain.ErrInvalidPeriod)
	}
}

// Report is the budget state for one period. Limit and Remaining are -1
// when the budget is unlimited.
type Report struct {
	Period      Period
	PeriodStart int64 // unix millis
	PeriodEnd   int64 // unix millis
	Limit       int64
	Used        int64
	Remaining   int64
	Exhausted   bool
	// Used split by token kind.
	EmbeddingTokens  int64
	CompletionTokens int64
}

// Service handles usage reporting.
type Service struct {
	br BudgetReader
}

// New creates a Service. br can be nil (unlimited mode, nothing tracked).
func New(br BudgetReader) *Service {
	return &Service{br: br}
}

// Report builds a usage report for the given period.
func (s *Service) Report(_ context.Context, period Period) Report {
	now := time.Now().UTC()
	if s.br != nil {
		now = s.br.Now().UTC()
	}

	r := Report{Period: period, Limit: -1, Remaining: -1}

	switch period {
	case PeriodMonth:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		r.PeriodStart, r.PeriodEnd = start.UnixMilli(), start.AddDate(0, 1, 0).UnixMilli()
		if s.br != nil {
			r.Used, r.Remaining = s.br.MonthlyUsed(), s.br.RemainingMonthly()
			r.setBreakdown(s.br.MonthlyBreakdown())
			r.Limit = limitOrUnlimited(s.br.MonthlyLimit())
		}
	default:
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		r.PeriodStart, r.PeriodEnd = start.UnixMilli(), start.AddDate(0, 0, 1).UnixMilli()
		if s.br != nil {
			r.Used, r.Remaining = s.br.DailyUsed(), s.br.RemainingDaily()
			r.setBreakdown(s.br.DailyBreakdown())
			r.Limit = limitOrUnlimited(s.br.DailyLimit())
		}
	}

	r.Exhausted = r.Limit > 0 && r.Remaining == 0
	return r
}

func (r *Report) setBreakdown(b domain.TokenBreakdown) {
	r.EmbeddingTokens, r.CompletionTokens = b.Embedding, b.Completion
}

func limitOrUnlimited(limit int64) int64 {
	if limit == 0 {
		return -1
	}
	return limit
}
