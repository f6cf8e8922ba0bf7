package bookqa

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/bookqa/internal/corpus"
	"github.com/kailas-cloud/bookqa/internal/db"
	"github.com/kailas-cloud/bookqa/internal/db/memory"
	dbRedis "github.com/kailas-cloud/bookqa/internal/db/redis"
	"github.com/kailas-cloud/bookqa/internal/domain"
	budgetrepo "github.com/kailas-cloud/bookqa/internal/repository/budget"
	questionrepo "github.com/kailas-cloud/bookqa/internal/repository/question"
	openaiProvider "github.com/kailas-cloud/bookqa/internal/transport/openai"
	answeruc "github.com/kailas-cloud/bookqa/internal/usecase/answer"
	askuc "github.com/kailas-cloud/bookqa/internal/usecase/ask"
	healthuc "github.com/kailas-cloud/bookqa/internal/usecase/health"
	provideruc "github.com/kailas-cloud/bookqa/internal/usecase/provider"
	usageuc "github.com/kailas-cloud/bookqa/internal/usecase/usage"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultQueryModel       = "text-search-curie-query-001"
	defaultCompletionModel  = "text-davinci-003"
	providerName            = "openai"
)

// Внутренние интерфейсы для подмены в тестах.
type askUseCase interface {
	Ask(ctx context.Context, raw string) (askuc.Result, error)
}

// Client is the bookqa SDK entry point.
type Client struct {
	store     db.Store
	askSvc    askUseCase
	healthSvc healthUseCase
	usageSvc  usageUseCase
	obs       *observer
}

// New creates a Client: connects to the database, loads the corpus and
// wires the answer pipeline. The provided context is used for the initial
// readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		queryModel:  defaultQueryModel,
		answerModel: defaultCompletionModel,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.driver == "" {
		return nil, errors.New("bookqa: database required (use WithValkey, WithRedis or WithMemory)")
	}
	if cfg.pagesPath == "" || cfg.embeddingsPath == "" {
		return nil, errors.New("bookqa: corpus required (use WithCorpusFiles)")
	}
	if (cfg.embedder == nil || cfg.completer == nil) && cfg.openAIKey == "" {
		return nil, errors.New("bookqa: providers required (use WithOpenAI or WithEmbedder and WithCompleter)")
	}

	pages, err := corpus.LoadFiles(cfg.pagesPath, cfg.embeddingsPath)
	if err != nil {
		return nil, fmt.Errorf("bookqa: load corpus: %w", err)
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("bookqa: database not ready: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		store.Close()
		return nil, err
	}
	return wireClient(ctx, store, pages, cfg, obs), nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case "valkey", "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:      cfg.addrs,
			Password:   cfg.password,
			ClientName: "bookqa-sdk",
		})
		if err != nil {
			return nil, fmt.Errorf("bookqa: create %s store: %w", cfg.driver, err)
		}
		return s, nil
	case "memory":
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("bookqa: unknown driver %q", cfg.driver)
	}
}

func wireClient(ctx context.Context, store db.Store, pages *corpus.Store, cfg *clientConfig, obs *observer) *Client {
	logger := zap.NewNop()

	var budget *provideruc.BudgetTracker
	if cfg.dailyTokens > 0 || cfg.monthlyTokens > 0 {
		action := provideruc.BudgetActionWarn
		if cfg.rejectOverrun {
			action = provideruc.BudgetActionReject
		}
		budget = provideruc.NewBudgetTracker(providerName, cfg.dailyTokens, cfg.monthlyTokens, action, logger).
			WithStore(ctx, budgetrepo.New(store, 48*time.Hour, 62*24*time.Hour))
	}
	// nil interface, not a typed nil pointer
	var budgetChecker provideruc.BudgetChecker
	var budgetReader usageuc.BudgetReader
	if budget != nil {
		budgetChecker = budget
		budgetReader = budget
	}

	var provider healthuc.ProviderChecker
	var embedder domain.Embedder
	if cfg.embedder != nil {
		embedder = &embedderAdapter{inner: cfg.embedder}
	} else {
		base := openaiProvider.NewEmbedder(&openaiProvider.Config{
			APIKey:   cfg.openAIKey,
			BaseURL:  cfg.openAIBaseURL,
			Model:    cfg.queryModel,
			Provider: providerName,
			Logger:   logger,
		})
		embedder = base
		provider = base
	}

	var completer domain.Completer
	if cfg.completer != nil {
		completer = &completerAdapter{inner: cfg.completer}
	} else {
		completer = openaiProvider.NewCompleter(&openaiProvider.Config{
			APIKey:   cfg.openAIKey,
			BaseURL:  cfg.openAIBaseURL,
			Model:    cfg.answerModel,
			Provider: providerName,
			Logger:   logger,
		})
	}

	answerSvc := answeruc.New(
		pages,
		provideruc.NewInstrumentedEmbedder(embedder, providerName, cfg.queryModel, budgetChecker, logger),
		provideruc.NewInstrumentedCompleter(completer, providerName, cfg.answerModel, budgetChecker, logger),
		logger,
	).WithCompletionParams(cfg.maxAnswerTokens, cfg.temperature)
	if cfg.maxContextTokens > 0 {
		answerSvc.WithMaxContextTokens(cfg.maxContextTokens)
	}

	questions := questionrepo.New(store).WithTTL(cfg.questionTTL)

	return &Client{
		store:     store,
		askSvc:    askuc.New(answerSvc, questions, logger),
		healthSvc: healthuc.New(store, provider, pages),
		usageSvc:  usageuc.New(budgetReader),
		obs:       obs,
	}
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", outcomeOK, start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Answer is an answered question.
type Answer struct {
	ID        string
	Question  string // normalized form
	Context   string
	Answer    string
	AskCount  int
	CreatedAt time.Time
	UpdatedAt time.Time
	Cached    bool
}

// Ask answers a question, serving repeated questions from the cache.
func (c *Client) Ask(ctx context.Context, question string) (ans Answer, err error) {
	start := time.Now()
	defer func() { c.obs.observeAsk(start, ans, err) }()

	res, err := c.askSvc.Ask(ctx, question)
	if err != nil {
		return Answer{}, fmt.Errorf("ask: %w", err)
	}

	q := res.Question
	return Answer{
		ID:        q.ID,
		Question:  q.Question,
		Context:   q.Context,
		Answer:    q.Answer,
		AskCount:  q.AskCount,
		CreatedAt: time.UnixMilli(q.CreatedAt).UTC(),
		UpdatedAt: time.UnixMilli(q.UpdatedAt).UTC(),
		Cached:    res.Cached,
	}, nil
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// completerAdapter wraps public Completer to satisfy internal domain.Completer.
type completerAdapter struct {
	inner Completer
}

func (a *completerAdapter) Complete(ctx context.Context, req domain.CompletionRequest) (domain.CompletionResult, error) {
	r, err := a.inner.Complete(ctx, CompletionRequest{
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return domain.CompletionResult{}, fmt.Errorf("complete: %w", err)
	}
	return domain.CompletionResult{
		Text:             r.Text,
		PromptTokens:     r.PromptTokens,
		CompletionTokens: r.CompletionTokens,
		TotalTokens:      r.TotalTokens,
	}, nil
}
