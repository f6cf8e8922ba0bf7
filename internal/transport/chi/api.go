package chi

import "time"

// ErrorCode is a machine-readable error identifier.
type ErrorCode string

// Error codes returned in ErrorResponse.
const (
	ErrorCodeBadRequest        ErrorCode = "bad_request"
	ErrorCodeUnauthorized      ErrorCode = "unauthorized"
	ErrorCodeInvalidQuestion   ErrorCode = "invalid_question"
	ErrorCodeInvalidPeriod     ErrorCode = "invalid_period"
	ErrorCodeNotFound          ErrorCode = "not_found"
	ErrorCodeQuotaExceeded     ErrorCode = "quota_exceeded"
	ErrorCodeProviderError     ErrorCode = "provider_error"
	ErrorCodeDimensionMismatch ErrorCode = "dimension_mismatch"
	ErrorCodeInternalError     ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// AskRequest is the body of POST /ask.
type AskRequest struct {
	Question string `json:"question"`
}

// AskParams are the query parameters of GET /ask.
type AskParams struct {
	Question string
}

// QuestionResponse is a stored question with its answer.
type QuestionResponse struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Context   string    `json:"context"`
	Answer    string    `json:"answer"`
	AskCount  int       `json:"ask_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Cached    bool      `json:"cached"`
}

// GetUsageParams are the query parameters of GET /usage.
type GetUsageParams struct {
	Period *string
}

// UsageResponse is the body of GET /usage.
type UsageResponse struct {
	Period          string    `json:"period"`
	PeriodStartAt   time.Time `json:"period_start_at"`
	PeriodEndAt     time.Time `json:"period_end_at"`
	TokensLimit     int64     `json:"tokens_limit"`
	TokensUsed      int64     `json:"tokens_used"`
	TokensRemaining int64     `json:"tokens_remaining"`
	IsExhausted     bool      `json:"is_exhausted"`
	EmbeddingTokens int64     `json:"embedding_tokens"`
	// CompletionTokens plus EmbeddingTokens equals TokensUsed.
	CompletionTokens int64 `json:"completion_tokens"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string            `json:"status"`
	Checks      map[string]string `json:"checks"`
	CorpusPages int               `json:"corpus_pages"`
}
