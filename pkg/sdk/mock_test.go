package bookqa

import (
	"context"

	askuc "github.com/kailas-cloud/bookqa/internal/usecase/ask"
	healthuc "github.com/kailas-cloud/bookqa/internal/usecase/health"
	usageuc "github.com/kailas-cloud/bookqa/internal/usecase/usage"
)

// --- askUseCase mock ---

type mockAskUC struct {
	askFn func(ctx context.Context, raw string) (askuc.Result, error)
}

func (m *mockAskUC) Ask(ctx context.Context, raw string) (askuc.Result, error) {
	return m.askFn(ctx, raw)
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(_ context.Context) healthuc.Report { return m.report }

// --- usageUseCase mock ---

type mockUsageUC struct {
	period usageuc.Period
	report usageuc.Report
}

func (m *mockUsageUC) Report(_ context.Context, p usageuc.Period) usageuc.Report {
	m.period = p
	r := m.report
	r.Period = p
	return r
}

// --- provider mocks ---

type mockEmbedder struct {
	fn func(ctx context.Context, text string) (EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	return m.fn(ctx, text)
}

type mockCompleter struct {
	fn    func(ctx context.Context, req CompletionRequest) (CompletionResult, error)
	calls int
}

func (m *mockCompleter) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	m.calls++
	return m.fn(ctx, req)
}

// --- helpers ---

func testClient(askSvc askUseCase, healthSvc healthUseCase, usageSvc usageUseCase) *Client {
	return &Client{
		askSvc:    askSvc,
		healthSvc: healthSvc,
		usageSvc:  usageSvc,
	}
}
