package domain

import "context"

type tokenUsageKey struct{}

// TokenUsage collects provider token usage for a single HTTP request.
// The handler puts a mutable pointer into the context before calling the
// service; provider decorators add to it; the handler reads it for response headers.
type TokenUsage struct {
	EmbeddingTokens  int
	CompletionTokens int
	Used             bool // true if a provider was called, even on a cache hit with 0 tokens
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *TokenUsage) {
	u := &TokenUsage{}
	return context.WithValue(ctx, tokenUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *TokenUsage {
	u, _ := ctx.Value(tokenUsageKey{}).(*TokenUsage)
	return u
}

// AddEmbeddingTokens records tokens consumed by an embedding call.
func (u *TokenUsage) AddEmbeddingTokens(n int) {
	if u != nil {
		u.EmbeddingTokens += n
		u.Used = true
	}
}

// AddCompletionTokens records tokens consumed by a completion call.
func (u *TokenUsage) AddCompletionTokens(n int) {
	if u != nil {
		u.CompletionTokens += n
		u.Used = true
	}
}

// Total returns all tokens recorded for the request.
func (u *TokenUsage) Total() int {
	if u == nil {
		return 0
	}
	return u.EmbeddingTokens + u.CompletionTokens
}

// TokenKind names what provider tokens were spent on.
type TokenKind string

const (
	// TokensEmbedding counts query and page embedding tokens.
	TokensEmbedding TokenKind = "embedding"
	// TokensCompletion counts prompt and answer tokens of completions.
	TokensCompletion TokenKind = "completion"
)

// TokenBreakdown splits a token count by kind.
type TokenBreakdown struct {
	Embedding  int64
	Completion int64
}

// Add counts n tokens of the given kind. Unknown kinds are ignored.
func (b *TokenBreakdown) Add(kind TokenKind, n int64) {
	switch kind {
	case TokensEmbedding:
		b.Embedding += n
	case TokensCompletion:
		b.Completion += n
	}
}

// Total returns the tokens of all kinds.
func (b TokenBreakdown) Total() int64 {
	return b.Embedding + b.Completion
}
