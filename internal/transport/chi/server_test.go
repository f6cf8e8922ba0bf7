package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/bookqa/internal/domain"
	askuc "github.com/kailas-cloud/bookqa/internal/usecase/ask"
	healthuc "github.com/kailas-cloud/bookqa/internal/usecase/health"
	usageuc "github.com/kailas-cloud/bookqa/internal/usecase/usage"
)

// --- Mocks ---

type mockAsker struct {
	result   askuc.Result
	err      error
	tokens   int
	received []string
}

func (m *mockAsker) Ask(ctx context.Context, raw string) (askuc.Result, error) {
	m.received = append(m.received, raw)
	if m.tokens > 0 {
		domain.UsageFromContext(ctx).AddEmbeddingTokens(m.tokens)
		domain.UsageFromContext(ctx).AddCompletionTokens(m.tokens * 10)
	}
	return m.result, m.err
}

type mockUsage struct {
	report usageuc.Report
	period usageuc.Period
}

func (m *mockUsage) Report(_ context.Context, p usageuc.Period) usageuc.Report {
	m.period = p
	r := m.report
	r.Period = p
	return r
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

func newTestRouter(asker Asker, usage UsageReporter, health HealthChecker, keys ...string) http.Handler {
	if usage == nil {
		usage = &mockUsage{}
	}
	if health == nil {
		health = &mockHealth{report: healthuc.Report{Status: healthuc.Healthy}}
	}
	s := NewServer(asker, usage, health, zap.NewNop())
	return NewRouter(s, keys, zap.NewNop())
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, http.NoBody)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

// --- Tests ---

func TestPostAsk_Miss(t *testing.T) {
	created := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	asker := &mockAsker{
		tokens: 3,
		result: askuc.Result{
			Question: domain.Question{
				ID:        "abc",
				Question:  "how do i start?",
				Context:   "\n* Start small.",
				Answer:    " Start small.",
				AskCount:  1,
				CreatedAt: created.UnixMilli(),
				UpdatedAt: created.UnixMilli(),
			},
			ContextTokens: 2,
		},
	}
	h := newTestRouter(asker, nil, nil)

	rr := do(t, h, http.MethodPost, "/ask", `{"question":"How do I start"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("X-Context-Tokens"); got != "2" {
		t.Errorf("X-Context-Tokens = %q, want 2", got)
	}
	if got := rr.Header().Get("X-Embedding-Tokens"); got != "3" {
		t.Errorf("X-Embedding-Tokens = %q, want 3", got)
	}
	if got := rr.Header().Get("X-Completion-Tokens"); got != "30" {
		t.Errorf("X-Completion-Tokens = %q, want 30", got)
	}
	if got := rr.Header().Get("X-Request-ID"); got == "" {
		t.Error("expected X-Request-ID header")
	}

	var resp QuestionResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != "abc" || resp.Answer != " Start small." || resp.Cached {
		t.Errorf("unexpected response: %+v", resp)
	}
	if !resp.CreatedAt.Equal(created) {
		t.Errorf("created_at = %v, want %v", resp.CreatedAt, created)
	}
	if asker.received[0] != "How do I start" {
		t.Errorf("asker received %q", asker.received[0])
	}
}

func TestGetAsk_CachedHasNoContextHeader(t *testing.T) {
	asker := &mockAsker{result: askuc.Result{
		Question: domain.Question{ID: "abc", Question: "why?", AskCount: 4},
		Cached:   true,
	}}
	h := newTestRouter(asker, nil, nil)

	rr := do(t, h, http.MethodGet, "/ask?question=why%3F", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("X-Context-Tokens") != "" {
		t.Error("cached answers must not report context tokens")
	}
	if rr.Header().Get("X-Embedding-Tokens") != "" {
		t.Error("cached answers must not report provider tokens")
	}

	var resp QuestionResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if !resp.Cached || resp.AskCount != 4 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if asker.received[0] != "why?" {
		t.Errorf("asker received %q", asker.received[0])
	}
}

func TestGetAsk_MissingQuestion(t *testing.T) {
	asker := &mockAsker{}
	h := newTestRouter(asker, nil, nil)

	rr := do(t, h, http.MethodGet, "/ask", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if len(asker.received) != 0 {
		t.Error("asker must not be called")
	}
}

func TestPostAsk_BadBody(t *testing.T) {
	h := newTestRouter(&mockAsker{}, nil, nil)

	rr := do(t, h, http.MethodPost, "/ask", `{"question":`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != ErrorCodeBadRequest {
		t.Errorf("code = %s, want %s", resp.Code, ErrorCodeBadRequest)
	}
}

func TestAsk_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   ErrorCode
	}{
		{domain.ErrInvalidQuestion, http.StatusBadRequest, ErrorCodeInvalidQuestion},
		{domain.ErrNotFound, http.StatusNotFound, ErrorCodeNotFound},
		{domain.ErrQuotaExceeded, http.StatusPaymentRequired, ErrorCodeQuotaExceeded},
		{domain.ErrProviderError, http.StatusBadGateway, ErrorCodeProviderError},
		{&domain.DimensionMismatchError{ID: "Page 1", Want: 3, Got: 2}, http.StatusInternalServerError, ErrorCodeDimensionMismatch},
		{errors.New("disk on fire"), http.StatusInternalServerError, ErrorCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			asker := &mockAsker{err: fmt.Errorf("answer question: %w", tt.err)}
			h := newTestRouter(asker, nil, nil)

			rr := do(t, h, http.MethodPost, "/ask", `{"question":"q"}`)
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			resp := decodeError(t, rr)
			if resp.Code != tt.code {
				t.Errorf("code = %s, want %s", resp.Code, tt.code)
			}
			if strings.Contains(resp.Message, "disk on fire") {
				t.Error("internal error details must not leak")
			}
		})
	}
}

func TestGetUsage(t *testing.T) {
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	usage := &mockUsage{report: usageuc.Report{
		PeriodStart:      start.UnixMilli(),
		PeriodEnd:        start.AddDate(0, 1, 0).UnixMilli(),
		Limit:            1000,
		Used:             1000,
		Remaining:        0,
		Exhausted:        true,
		EmbeddingTokens:  150,
		CompletionTokens: 850,
	}}
	h := newTestRouter(&mockAsker{}, usage, nil)

	rr := do(t, h, http.MethodGet, "/usage?period=month", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if usage.period != usageuc.PeriodMonth {
		t.Errorf("period = %q, want month", usage.period)
	}

	var resp UsageResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Period != "month" || !resp.IsExhausted || resp.TokensUsed != 1000 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.EmbeddingTokens != 150 || resp.CompletionTokens != 850 {
		t.Errorf("unexpected breakdown: embedding=%d completion=%d", resp.EmbeddingTokens, resp.CompletionTokens)
	}
	if !resp.PeriodStartAt.Equal(start) {
		t.Errorf("period_start_at = %v, want %v", resp.PeriodStartAt, start)
	}
}

func TestGetUsage_DefaultAndInvalid(t *testing.T) {
	usage := &mockUsage{}
	h := newTestRouter(&mockAsker{}, usage, nil)

	if rr := do(t, h, http.MethodGet, "/usage", ""); rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if usage.period != usageuc.PeriodDay {
		t.Errorf("default period = %q, want day", usage.period)
	}

	rr := do(t, h, http.MethodGet, "/usage?period=week", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != ErrorCodeInvalidPeriod {
		t.Errorf("code = %s, want %s", resp.Code, ErrorCodeInvalidPeriod)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		status healthuc.Status
		code   int
	}{
		{healthuc.Healthy, http.StatusOK},
		{healthuc.Degraded, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		health := &mockHealth{report: healthuc.Report{
			Status:      tt.status,
			Checks:      map[string]healthuc.CheckResult{"database": healthuc.CheckOK},
			CorpusPages: 42,
		}}
		h := newTestRouter(&mockAsker{}, nil, health, "secret")

		rr := do(t, h, http.MethodGet, "/health", "")
		if rr.Code != tt.code {
			t.Fatalf("%s: status = %d, want %d", tt.status, rr.Code, tt.code)
		}
		var resp HealthResponse
		_ = json.NewDecoder(rr.Body).Decode(&resp)
		if resp.Status != string(tt.status) || resp.CorpusPages != 42 || resp.Checks["database"] != "ok" {
			t.Errorf("unexpected response: %+v", resp)
		}
	}
}

func TestRouter_AuthProtectsAsk(t *testing.T) {
	h := newTestRouter(&mockAsker{}, nil, nil, "secret")

	if rr := do(t, h, http.MethodPost, "/ask", `{"question":"q"}`); rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/metrics", ""); rr.Code != http.StatusOK {
		t.Fatalf("metrics status = %d, want 200", rr.Code)
	}
}

func TestRouter_NotFoundIsJSON(t *testing.T) {
	h := newTestRouter(&mockAsker{}, nil, nil)

	rr := do(t, h, http.MethodGet, "/nope", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != ErrorCodeNotFound {
		t.Errorf("code = %s, want %s", resp.Code, ErrorCodeNotFound)
	}
}

func TestJSONRecoverer(t *testing.T) {
	panicky := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) { panic("boom") })
	h := jsonRecoverer(zap.NewNop())(panicky)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ask", http.NoBody))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != ErrorCodeInternalError {
		t.Errorf("code = %s, want %s", resp.Code, ErrorCodeInternalError)
	}
}
