package bookqa

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/bookqa/internal/domain"
	askuc "github.com/kailas-cloud/bookqa/internal/usecase/ask"
	healthuc "github.com/kailas-cloud/bookqa/internal/usecase/health"
	usageuc "github.com/kailas-cloud/bookqa/internal/usecase/usage"
)

func writeCorpus(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	pages := filepath.Join(dir, "book.pdf.pages.csv")
	embeddings := filepath.Join(dir, "book.pdf.embeddings.csv")

	if err := os.WriteFile(pages, []byte("title,content\n"+
		"Page 1,Build a community before you build a product.\n"+
		"Page 2,Charge something from day one.\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(embeddings, []byte("title,0,1\n"+
		"Page 1,1,0\n"+
		"Page 2,0,1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	return pages, embeddings
}

func TestNew_NoDatabase(t *testing.T) {
	_, err := New(context.Background())
	if err == nil {
		t.Fatal("expected error when no database configured")
	}
}

func TestNew_NoCorpus(t *testing.T) {
	_, err := New(context.Background(), WithMemory(), WithOpenAI("sk-test", ""))
	if err == nil || !strings.Contains(err.Error(), "corpus") {
		t.Fatalf("expected corpus error, got %v", err)
	}
}

func TestNew_NoProviders(t *testing.T) {
	pages, embeddings := writeCorpus(t)
	_, err := New(context.Background(), WithMemory(), WithCorpusFiles(pages, embeddings))
	if err == nil {
		t.Fatal("expected error without providers")
	}
}

func TestNew_BadCorpus(t *testing.T) {
	_, err := New(context.Background(),
		WithMemory(),
		WithOpenAI("sk-test", ""),
		WithCorpusFiles(filepath.Join(t.TempDir(), "none.csv"), filepath.Join(t.TempDir(), "none.csv")),
	)
	if !errors.Is(err, ErrCorpusLoad) {
		t.Fatalf("expected ErrCorpusLoad, got %v", err)
	}
}

func TestNew_UnknownDriver(t *testing.T) {
	cfg := &clientConfig{driver: "unknown", addrs: []string{"localhost:1234"}}
	_, err := createStore(cfg)
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestClient_AskEndToEnd(t *testing.T) {
	pages, embeddings := writeCorpus(t)

	emb := &mockEmbedder{fn: func(_ context.Context, _ string) (EmbeddingResult, error) {
		return EmbeddingResult{Embedding: []float32{0, 1}, TotalTokens: 3}, nil
	}}
	var prompt string
	comp := &mockCompleter{fn: func(_ context.Context, req CompletionRequest) (CompletionResult, error) {
		prompt = req.Prompt
		return CompletionResult{Text: " Charge from day one.", TotalTokens: 40}, nil
	}}

	client, err := New(context.Background(),
		WithMemory(),
		WithEmbedder(emb),
		WithCompleter(comp),
		WithCorpusFiles(pages, embeddings),
		WithBudget(1000, 0, true),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	first, err := client.Ask(context.Background(), "  Should I charge  ")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if first.Cached || first.AskCount != 1 {
		t.Errorf("first ask should be fresh, got %+v", first)
	}
	if first.Question != "should i charge?" {
		t.Errorf("question = %q", first.Question)
	}
	if first.Answer != " Charge from day one." {
		t.Errorf("answer = %q", first.Answer)
	}
	if !strings.HasPrefix(first.Context, "\n* Charge something from day one.") {
		t.Errorf("context should start with the best page, got %q", first.Context)
	}
	if !strings.HasSuffix(prompt, "Q: should i charge?\n\nA: ") {
		t.Errorf("prompt must end with the question, got %q", prompt[len(prompt)-40:])
	}

	second, err := client.Ask(context.Background(), "SHOULD I CHARGE?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !second.Cached || second.AskCount != 2 || second.ID != first.ID {
		t.Errorf("second ask should hit the cache, got %+v", second)
	}
	if comp.calls != 1 {
		t.Errorf("completer called %d times, want 1", comp.calls)
	}

	usage := client.Usage(context.Background(), PeriodDay)
	if usage.TokensLimit != 1000 || usage.TokensUsed != 43 || usage.TokensRemaining != 957 {
		t.Errorf("unexpected usage %+v", usage)
	}
	if usage.EmbeddingTokens != 3 || usage.CompletionTokens != 40 {
		t.Errorf("unexpected usage breakdown %+v", usage)
	}

	health := client.Health(context.Background())
	if health.Status != "ok" || health.CorpusPages != 2 {
		t.Errorf("unexpected health %+v", health)
	}
	if _, ok := health.Checks["provider"]; ok {
		t.Error("custom providers have no health check")
	}

	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestClient_AskInvalid(t *testing.T) {
	c := testClient(&mockAskUC{askFn: func(_ context.Context, _ string) (askuc.Result, error) {
		return askuc.Result{}, domain.ErrInvalidQuestion
	}}, nil, nil)

	_, err := c.Ask(context.Background(), "")
	if !errors.Is(err, ErrInvalidQuestion) {
		t.Fatalf("expected ErrInvalidQuestion, got %v", err)
	}
}

func TestClient_AskMapsTimestamps(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := testClient(&mockAskUC{askFn: func(_ context.Context, _ string) (askuc.Result, error) {
		return askuc.Result{
			Question: domain.Question{ID: "x", CreatedAt: created.UnixMilli(), UpdatedAt: created.UnixMilli()},
			Cached:   true,
		}, nil
	}}, nil, nil)

	ans, err := c.Ask(context.Background(), "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ans.CreatedAt.Equal(created) || !ans.Cached {
		t.Errorf("unexpected answer %+v", ans)
	}
}

func TestClient_UsageMapsPeriod(t *testing.T) {
	usage := &mockUsageUC{report: usageuc.Report{Limit: -1, Remaining: -1}}
	c := testClient(nil, nil, usage)

	report := c.Usage(context.Background(), PeriodMonth)
	if usage.period != usageuc.PeriodMonth || report.Period != PeriodMonth {
		t.Errorf("period = %q / %q, want month", usage.period, report.Period)
	}
	if report.TokensLimit != -1 {
		t.Errorf("expected unlimited, got %d", report.TokensLimit)
	}

	c.Usage(context.Background(), "week")
	if usage.period != usageuc.PeriodDay {
		t.Errorf("unknown period should fall back to day, got %q", usage.period)
	}
}

func TestClient_Health(t *testing.T) {
	c := testClient(nil, &mockHealthUC{report: healthuc.Report{
		Status:      healthuc.Degraded,
		Checks:      map[string]healthuc.CheckResult{"database": healthuc.CheckError},
		CorpusPages: 7,
	}}, nil)

	h := c.Health(context.Background())
	if h.Status != "degraded" || h.Checks["database"] != "error" || h.CorpusPages != 7 {
		t.Errorf("unexpected health %+v", h)
	}
}

func TestEmbedderAdapter(t *testing.T) {
	called := false
	mock := &mockEmbedder{
		fn: func(_ context.Context, text string) (EmbeddingResult, error) {
			called = true
			return EmbeddingResult{
				Embedding:    []float32{1, 2, 3},
				PromptTokens: 5,
				TotalTokens:  10,
			}, nil
		},
	}

	adapter := &embedderAdapter{inner: mock}
	result, err := adapter.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("inner embedder was not called")
	}
	if len(result.Embedding) != 3 {
		t.Errorf("embedding len = %d, want 3", len(result.Embedding))
	}
	if result.TotalTokens != 10 {
		t.Errorf("total tokens = %d, want 10", result.TotalTokens)
	}
}

func TestEmbedderAdapter_Error(t *testing.T) {
	mock := &mockEmbedder{
		fn: func(_ context.Context, _ string) (EmbeddingResult, error) {
			return EmbeddingResult{}, errors.New("provider down")
		},
	}

	adapter := &embedderAdapter{inner: mock}
	_, err := adapter.Embed(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error from adapter")
	}
}

func TestCompleterAdapter(t *testing.T) {
	mock := &mockCompleter{fn: func(_ context.Context, req CompletionRequest) (CompletionResult, error) {
		if req.MaxTokens != 150 || req.Prompt != "p" {
			t.Errorf("unexpected request %+v", req)
		}
		return CompletionResult{Text: "a", CompletionTokens: 1, TotalTokens: 2}, nil
	}}

	adapter := &completerAdapter{inner: mock}
	res, err := adapter.Complete(context.Background(), domain.CompletionRequest{Prompt: "p", MaxTokens: 150})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "a" || res.TotalTokens != 2 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestClientOptions(t *testing.T) {
	cfg := &clientConfig{}

	WithValkey("localhost:6379", "secret").apply(cfg)
	if cfg.driver != "valkey" {
		t.Errorf("driver = %q, want valkey", cfg.driver)
	}
	if cfg.addrs[0] != "localhost:6379" {
		t.Errorf("addr = %q, want localhost:6379", cfg.addrs[0])
	}
	if cfg.password != "secret" {
		t.Errorf("password = %q, want secret", cfg.password)
	}

	cfg2 := &clientConfig{}
	WithRedis("localhost:6380", "pass").apply(cfg2)
	if cfg2.driver != "redis" {
		t.Errorf("driver = %q, want redis", cfg2.driver)
	}
	WithMemory().apply(cfg2)
	if cfg2.driver != "memory" || cfg2.addrs != nil {
		t.Errorf("memory option not applied: %+v", cfg2)
	}

	cfg3 := &clientConfig{}
	WithModels("q-model", "c-model").apply(cfg3)
	WithMaxContextTokens(300).apply(cfg3)
	WithCompletionParams(60, 0.5).apply(cfg3)
	WithBudget(10, 20, true).apply(cfg3)
	WithQuestionTTL(time.Hour).apply(cfg3)
	if cfg3.queryModel != "q-model" || cfg3.answerModel != "c-model" {
		t.Errorf("models = (%q, %q)", cfg3.queryModel, cfg3.answerModel)
	}
	if cfg3.maxContextTokens != 300 || cfg3.maxAnswerTokens != 60 || cfg3.temperature != 0.5 {
		t.Errorf("answer params not applied: %+v", cfg3)
	}
	if cfg3.dailyTokens != 10 || cfg3.monthlyTokens != 20 || !cfg3.rejectOverrun {
		t.Errorf("budget not applied: %+v", cfg3)
	}
	if cfg3.questionTTL != time.Hour {
		t.Errorf("questionTTL = %v", cfg3.questionTTL)
	}

	cfg4 := &clientConfig{}
	logger := slog.Default()
	WithLogger(logger).apply(cfg4)
	if cfg4.logger != logger {
		t.Error("expected logger to be set")
	}

	cfg5 := &clientConfig{}
	reg := prometheus.NewRegistry()
	WithPrometheus(reg).apply(cfg5)
	if cfg5.metricsReg != reg {
		t.Error("expected metricsReg to be set")
	}
}

func TestClient_Close_NilStore(t *testing.T) {
	// Close на клиенте с nil store не паникует.
	c := &Client{store: nil}
	c.Close() // не должен упасть
}

func TestObserver_NilSafe(t *testing.T) {
	// nil observer should not panic.
	var obs *observer
	obs.observe("test", outcomeOK, time.Now(), nil)
	obs.observe("test", outcomeOK, time.Now(), errors.New("err"))
	obs.observeAsk(time.Now(), Answer{}, nil)
}

func TestObserver_WithPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}

	obs.observe("ping", outcomeOK, time.Now().Add(-10*time.Millisecond), nil)
	obs.observe("ping", outcomeOK, time.Now(), errors.New("fail"))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected metrics to be registered")
	}

	// ok и error — разные серии.
	found := false
	for _, f := range families {
		if f.GetName() == "bookqa_sdk_operations_total" {
			found = true
			if len(f.GetMetric()) != 2 {
				t.Errorf("expected 2 metric samples, got %d",
					len(f.GetMetric()))
			}
		}
	}
	if !found {
		t.Error("bookqa_sdk_operations_total not found")
	}
}

func TestObserver_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := newObserver(nil, reg); err != nil {
		t.Fatalf("first newObserver: %v", err)
	}
	if _, err := newObserver(nil, reg); err != nil {
		t.Fatalf("second newObserver must reuse collectors: %v", err)
	}
}

func TestObserver_WithLogger(t *testing.T) {
	// Проверяем что логгер не паникует при вызове.
	logger := slog.Default()
	obs, err := newObserver(logger, nil)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}
	obs.observe("test.op", outcomeOK, time.Now(), nil)
	obs.observe("test.op", outcomeOK, time.Now(), errors.New("test error"))
}

func TestObserver_AskOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}

	obs.observeAsk(time.Now(), Answer{Context: strings.Repeat("x", 100)}, nil)
	obs.observeAsk(time.Now(), Answer{Cached: true, Context: "ignored"}, nil)
	obs.observeAsk(time.Now(), Answer{Cached: true}, nil)
	obs.observeAsk(time.Now(), Answer{}, errors.New("provider down"))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	outcomes := map[string]float64{}
	var contextCount uint64
	var contextSum float64
	for _, f := range families {
		switch f.GetName() {
		case "bookqa_sdk_operations_total":
			for _, m := range f.GetMetric() {
				for _, l := range m.GetLabel() {
					if l.GetName() == "outcome" {
						outcomes[l.GetValue()] = m.GetCounter().GetValue()
					}
				}
			}
		case "bookqa_sdk_answer_context_bytes":
			h := f.GetMetric()[0].GetHistogram()
			contextCount, contextSum = h.GetSampleCount(), h.GetSampleSum()
		}
	}

	want := map[string]float64{outcomeAnswered: 1, outcomeCached: 2, outcomeError: 1}
	for k, v := range want {
		if outcomes[k] != v {
			t.Errorf("outcome %s = %v, want %v (all: %v)", k, outcomes[k], v, outcomes)
		}
	}
	// Только свежий ответ попадает в гистограмму контекста.
	if contextCount != 1 || contextSum != 100 {
		t.Errorf("context histogram count=%d sum=%v, want 1/100", contextCount, contextSum)
	}
}

func TestClient_HealthObserved(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}
	c := testClient(nil, &mockHealthUC{report: healthuc.Report{Status: healthuc.Degraded}}, nil)
	c.obs = obs

	if got := c.Health(context.Background()); got.Status != "degraded" {
		t.Fatalf("status = %q", got.Status)
	}

	families, _ := reg.Gather()
	for _, f := range families {
		if f.GetName() != "bookqa_sdk_operations_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "outcome" && l.GetValue() == "degraded" {
					return
				}
			}
		}
	}
	t.Error("health outcome degraded not recorded")
}
