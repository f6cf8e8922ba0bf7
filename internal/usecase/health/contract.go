package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// ProviderChecker checks language-model provider availability.
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}

// CorpusInfo reports the loaded corpus.
type CorpusInfo interface {
	Len() int
}
