// Package health aggregates readiness of the store, the provider and the corpus.
package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status      Status
	Checks      map[string]CheckResult
	CorpusPages int
}

// Service coordinates health checks.
type Service struct {
	db       DBPinger
	provider ProviderChecker
	corpus   CorpusInfo
}

// New creates a Service. provider can be nil.
func New(db DBPinger, provider ProviderChecker, corpus CorpusInfo) *Service {
	return &Service{db: db, provider: provider, corpus: corpus}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, 3)

	checks["database"] = result(s.db.Ping(ctx))

	if s.provider != nil {
		checks["provider"] = result(s.provider.HealthCheck(ctx))
	}

	pages := 0
	if s.corpus != nil {
		pages = s.corpus.Len()
	}
	checks["corpus"] = CheckOK
	if pages == 0 {
		checks["corpus"] = CheckError
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks, CorpusPages: pages}
}

func result(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
