package chi

import (
	"context"

	askuc "github.com/kailas-cloud/bookqa/internal/usecase/ask"
	healthuc "github.com/kailas-cloud/bookqa/internal/usecase/health"
	usageuc "github.com/kailas-cloud/bookqa/internal/usecase/usage"
)

// Asker answers questions.
type Asker interface {
	Ask(ctx context.Context, raw string) (askuc.Result, error)
}

// UsageReporter reports token budget usage.
type UsageReporter interface {
	Report(ctx context.Context, period usageuc.Period) usageuc.Report
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
