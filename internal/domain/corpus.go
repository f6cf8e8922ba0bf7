package domain

// CorpusEntry is one page of the book with its precomputed embedding.
type CorpusEntry struct {
	ID        string
	Text      string
	Embedding []float32
}

// RankedEntry is a corpus entry scored against a query embedding.
type RankedEntry struct {
	Entry CorpusEntry
	Score float64
}

// AssembledContext is the bounded context block injected into the prompt.
// TokensUsed counts the word budget spent on fully included pages; a
// truncated trailing fragment is bounded in characters instead.
type AssembledContext struct {
	Text       string
	TokensUsed int
	Truncated  bool
	Pages      []string
}

// Prompt is the final text sent to the completion provider.
type Prompt struct {
	Text string
}

// Answer is the outcome of a single retrieval-augmented answer.
type Answer struct {
	Question      string
	Text          string
	Context       string
	ContextTokens int
	Pages         []string
}
