// Package chi exposes the question-answering API over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/bookqa/internal/domain"
	logpkg "github.com/kailas-cloud/bookqa/internal/logger"
	healthuc "github.com/kailas-cloud/bookqa/internal/usecase/health"
	usageuc "github.com/kailas-cloud/bookqa/internal/usecase/usage"
)

// maxBodyBytes bounds POST /ask bodies; questions are at most 140 characters.
const maxBodyBytes = 8 << 10

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers.
type Server struct {
	ask           Asker
	usage         UsageReporter
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(ask Asker, usage UsageReporter, health HealthChecker, logger *zap.Logger) *Server {
	s := &Server{
		ask:    ask,
		usage:  usage,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidQuestion, http.StatusBadRequest, ErrorCodeInvalidQuestion),
		sentinelHandler(domain.ErrInvalidPeriod, http.StatusBadRequest, ErrorCodeInvalidPeriod),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorCodeNotFound),
		sentinelHandler(domain.ErrQuotaExceeded, http.StatusPaymentRequired, ErrorCodeQuotaExceeded),
		sentinelHandler(domain.ErrProviderError, http.StatusBadGateway, ErrorCodeProviderError),
		sentinelHandler(domain.ErrDimensionMismatch, http.StatusInternalServerError, ErrorCodeDimensionMismatch),
	}
	return s
}

// Routes registers the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Post("/ask", s.PostAsk)
	r.Get("/ask", s.GetAsk)
	r.Get("/usage", s.GetUsage)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// PostAsk handles POST /ask.
func (s *Server) PostAsk(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	s.answer(w, r, req.Question)
}

// GetAsk handles GET /ask?question=.
func (s *Server) GetAsk(w http.ResponseWriter, r *http.Request) {
	var params AskParams
	if err := runtime.BindQueryParameter("form", true, true, "question", r.URL.Query(), &params.Question); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
		return
	}
	s.answer(w, r, params.Question)
}

func (s *Server) answer(w http.ResponseWriter, r *http.Request, question string) {
	ctx, usage := domain.NewContextWithUsage(r.Context())

	res, err := s.ask.Ask(ctx, question)
	setUsageHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	if !res.Cached {
		w.Header().Set("X-Context-Tokens", strconv.Itoa(res.ContextTokens))
	}

	q := res.Question
	writeJSON(w, http.StatusOK, QuestionResponse{
		ID:        q.ID,
		Question:  q.Question,
		Context:   q.Context,
		Answer:    q.Answer,
		AskCount:  q.AskCount,
		CreatedAt: time.UnixMilli(q.CreatedAt).UTC(),
		UpdatedAt: time.UnixMilli(q.UpdatedAt).UTC(),
		Cached:    res.Cached,
	})
}

// GetUsage handles GET /usage?period=day|month.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	var params GetUsageParams
	if err := runtime.BindQueryParameter("form", true, false, "period", r.URL.Query(), &params.Period); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
		return
	}

	raw := ""
	if params.Period != nil {
		raw = *params.Period
	}
	period, err := usageuc.ParsePeriod(raw)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	report := s.usage.Report(r.Context(), period)
	writeJSON(w, http.StatusOK, UsageResponse{
		Period:           string(report.Period),
		PeriodStartAt:    time.UnixMilli(report.PeriodStart).UTC(),
		PeriodEndAt:      time.UnixMilli(report.PeriodEnd).UTC(),
		TokensLimit:      report.Limit,
		TokensUsed:       report.Used,
		TokensRemaining:  report.Remaining,
		IsExhausted:      report.Exhausted,
		EmbeddingTokens:  report.EmbeddingTokens,
		CompletionTokens: report.CompletionTokens,
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:      string(report.Status),
		Checks:      checks,
		CorpusPages: report.CorpusPages,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func setUsageHeaders(w http.ResponseWriter, usage *domain.TokenUsage) {
	if usage == nil || !usage.Used {
		return
	}
	w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.EmbeddingTokens))
	w.Header().Set("X-Completion-Tokens", strconv.Itoa(usage.CompletionTokens))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidQuestion,
		domain.ErrInvalidPeriod,
		domain.ErrNotFound,
		domain.ErrQuotaExceeded,
		domain.ErrProviderError,
		domain.ErrDimensionMismatch,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context(), s.logger)
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
