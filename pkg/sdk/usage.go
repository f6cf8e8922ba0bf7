package bookqa

import (
	"context"
	"time"

	usageuc "github.com/kailas-cloud/bookqa/internal/usecase/usage"
)

// UsagePeriod is the aggregation granularity for usage reports.
type UsagePeriod string

// UsagePeriod constants.
const (
	PeriodDay   UsagePeriod = "day"
	PeriodMonth UsagePeriod = "month"
)

// UsageReport contains provider token usage for a time period.
// TokensLimit and TokensRemaining are -1 when no budget is set.
type UsageReport struct {
	Period          UsagePeriod
	PeriodStart     time.Time
	PeriodEnd       time.Time
	TokensLimit     int64
	TokensUsed      int64
	TokensRemaining int64
	IsExhausted     bool
	// TokensUsed split by kind.
	EmbeddingTokens  int64
	CompletionTokens int64
}

// Usage returns a token usage report for the given period.
// The underlying use-case is in-memory and never fails.
func (c *Client) Usage(ctx context.Context, period UsagePeriod) UsageReport {
	start := time.Now()
	defer func() { c.obs.observe("usage", outcomeOK, start, nil) }()

	p := usageuc.PeriodDay
	if period == PeriodMonth {
		p = usageuc.PeriodMonth
	}
	report := c.usageSvc.Report(ctx, p)

	return UsageReport{
		Period:           UsagePeriod(report.Period),
		PeriodStart:      time.UnixMilli(report.PeriodStart).UTC(),
		PeriodEnd:        time.UnixMilli(report.PeriodEnd).UTC(),
		TokensLimit:      report.Limit,
		TokensUsed:       report.Used,
		TokensRemaining:  report.Remaining,
		IsExhausted:      report.Exhausted,
		EmbeddingTokens:  report.EmbeddingTokens,
		CompletionTokens: report.CompletionTokens,
	}
}

// usageUseCase is the internal interface for usage reports.
type usageUseCase interface {
	Report(ctx context.Context, period usageuc.Period) usageuc.Report
}
