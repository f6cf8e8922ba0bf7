package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/bookqa/internal/domain"
)

// --- Mocks ---

type stubCorpus struct {
	entries []domain.CorpusEntry
}

func (c *stubCorpus) All() []domain.CorpusEntry { return c.entries }

type stubEmbedder struct {
	vec   []float32
	err   error
	calls int
	got   string
}

func (e *stubEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	e.calls++
	e.got = text
	if e.err != nil {
		return domain.EmbeddingResult{}, e.err
	}
	return domain.EmbeddingResult{Embedding: e.vec, TotalTokens: 2}, nil
}

type stubCompleter struct {
	text  string
	err   error
	calls int
	req   domain.CompletionRequest
}

func (c *stubCompleter) Complete(_ context.Context, req domain.CompletionRequest) (domain.CompletionResult, error) {
	c.calls++
	c.req = req
	if c.err != nil {
		return domain.CompletionResult{}, c.err
	}
	return domain.CompletionResult{Text: c.text}, nil
}

func twoPageCorpus() *stubCorpus {
	return &stubCorpus{entries: []domain.CorpusEntry{
		{ID: "p1", Text: "alpha beta", Embedding: []float32{1, 0}},
		{ID: "p2", Text: "gamma", Embedding: []float32{0, 1}},
	}}
}

// --- Tests ---

func TestAnswer_ReturnsCompletionAndContext(t *testing.T) {
	emb := &stubEmbedder{vec: []float32{1, 0}}
	comp := &stubCompleter{text: "A: mocked answer"}
	svc := New(twoPageCorpus(), emb, comp, zap.NewNop())

	got, err := svc.Answer(context.Background(), "what?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Text != "A: mocked answer" {
		t.Errorf("expected completion text unchanged, got %q", got.Text)
	}
	if got.Context != "\n* alpha beta\n* gamma" {
		t.Errorf("unexpected context: %q", got.Context)
	}
	if emb.got != "what?" {
		t.Errorf("expected question to be embedded, got %q", emb.got)
	}
	if len(got.Pages) != 2 || got.Pages[0] != "p1" {
		t.Errorf("unexpected pages: %v", got.Pages)
	}
}

func TestAnswer_PromptAndParams(t *testing.T) {
	comp := &stubCompleter{text: "ok"}
	svc := New(twoPageCorpus(), &stubEmbedder{vec: []float32{1, 0}}, comp, zap.NewNop())

	if _, err := svc.Answer(context.Background(), "what?"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if comp.req.MaxTokens != 150 {
		t.Errorf("expected MaxTokens=150, got %d", comp.req.MaxTokens)
	}
	if comp.req.Temperature != 0 {
		t.Errorf("expected Temperature=0, got %v", comp.req.Temperature)
	}
	if !strings.HasSuffix(comp.req.Prompt, "Q: what?\n\nA: ") {
		t.Error("prompt must end with the question")
	}
	alpha := strings.Index(comp.req.Prompt, "alpha beta")
	gamma := strings.Index(comp.req.Prompt, "gamma")
	if alpha < 0 || gamma < 0 || alpha > gamma {
		t.Error("prompt must embed both pages, best first")
	}
}

func TestAnswer_Options(t *testing.T) {
	comp := &stubCompleter{text: "ok"}
	svc := New(twoPageCorpus(), &stubEmbedder{vec: []float32{1, 0}}, comp, zap.NewNop()).
		WithMaxContextTokens(1).
		WithCompletionParams(64, 0.5).
		WithTemplate(Template{Persona: "P", ContextLabel: "C"})

	got, err := svc.Answer(context.Background(), "q?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Context != "\n* a" {
		t.Errorf("expected 1-character context, got %q", got.Context)
	}
	if comp.req.MaxTokens != 64 || comp.req.Temperature != 0.5 {
		t.Errorf("unexpected params: %+v", comp.req)
	}
	if comp.req.Prompt != "P\n\nC\n\n* a\n\n\nQ: q?\n\nA: " {
		t.Errorf("unexpected prompt: %q", comp.req.Prompt)
	}
}

func TestAnswer_EmbeddingFailure(t *testing.T) {
	emb := &stubEmbedder{err: domain.ErrProviderError}
	comp := &stubCompleter{text: "unused"}
	svc := New(twoPageCorpus(), emb, comp, zap.NewNop())

	_, err := svc.Answer(context.Background(), "what?")
	if !errors.Is(err, domain.ErrProviderError) {
		t.Fatalf("expected ErrProviderError, got %v", err)
	}
	if comp.calls != 0 {
		t.Errorf("completion must not be called, got %d calls", comp.calls)
	}
}

func TestAnswer_CompletionFailure(t *testing.T) {
	comp := &stubCompleter{err: domain.ErrProviderError}
	svc := New(twoPageCorpus(), &stubEmbedder{vec: []float32{1, 0}}, comp, zap.NewNop())

	_, err := svc.Answer(context.Background(), "what?")
	if !errors.Is(err, domain.ErrProviderError) {
		t.Fatalf("expected ErrProviderError, got %v", err)
	}
	if comp.calls != 1 {
		t.Errorf("expected one completion call, got %d", comp.calls)
	}
}

func TestAnswer_DimensionMismatch(t *testing.T) {
	comp := &stubCompleter{text: "unused"}
	svc := New(twoPageCorpus(), &stubEmbedder{vec: []float32{1, 0, 0}}, comp, zap.NewNop())

	_, err := svc.Answer(context.Background(), "what?")
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if comp.calls != 0 {
		t.Errorf("completion must not be called, got %d calls", comp.calls)
	}
}
