package domain

import "context"

// Completer generates a continuation for a prompt.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
}

// CompletionRequest holds the prompt and generation parameters.
type CompletionRequest struct {
	Prompt      string
	MaxTokens   int
	Temperature float32
}

// CompletionResult carries the generated text and token usage.
type CompletionResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
