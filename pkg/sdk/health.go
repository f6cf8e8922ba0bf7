package bookqa

import (
	"context"
	"time"

	healthuc "github.com/kailas-cloud/bookqa/internal/usecase/health"
)

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status      string            // "ok", "degraded"
	Checks      map[string]string // component → "ok"/"error"
	CorpusPages int
}

// Health checks the health of all system components.
func (c *Client) Health(ctx context.Context) HealthStatus {
	start := time.Now()
	report := c.healthSvc.Check(ctx)
	c.obs.observe("health", string(report.Status), start, nil)

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status:      string(report.Status),
		Checks:      checks,
		CorpusPages: report.CorpusPages,
	}
}

// healthUseCase is the internal interface for health checks.
type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}
