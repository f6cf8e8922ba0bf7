package bookqa

import "context"

// Embedder converts text to vector embeddings. It must use the same
// embedding space as the corpus.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EmbeddingResult carries the embedding vector and token counts.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Completer generates the answer text for a prompt.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
}

// CompletionRequest holds the prompt and generation parameters.
type CompletionRequest struct {
	Prompt      string
	MaxTokens   int
	Temperature float32
}

// CompletionResult carries the generated text and token counts.
type CompletionResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
