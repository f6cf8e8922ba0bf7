package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/bookqa/internal/config"
	"github.com/kailas-cloud/bookqa/internal/corpus"
	"github.com/kailas-cloud/bookqa/internal/db"
	"github.com/kailas-cloud/bookqa/internal/db/memory"
	dbRedis "github.com/kailas-cloud/bookqa/internal/db/redis"
	"github.com/kailas-cloud/bookqa/internal/domain"
	logpkg "github.com/kailas-cloud/bookqa/internal/logger"
	"github.com/kailas-cloud/bookqa/internal/metrics"
	budgetrepo "github.com/kailas-cloud/bookqa/internal/repository/budget"
	"github.com/kailas-cloud/bookqa/internal/repository/embcache"
	questionrepo "github.com/kailas-cloud/bookqa/internal/repository/question"
	chiTransport "github.com/kailas-cloud/bookqa/internal/transport/chi"
	openaiProvider "github.com/kailas-cloud/bookqa/internal/transport/openai"
	answeruc "github.com/kailas-cloud/bookqa/internal/usecase/answer"
	askuc "github.com/kailas-cloud/bookqa/internal/usecase/ask"
	healthuc "github.com/kailas-cloud/bookqa/internal/usecase/health"
	provideruc "github.com/kailas-cloud/bookqa/internal/usecase/provider"
	usageuc "github.com/kailas-cloud/bookqa/internal/usecase/usage"
	"github.com/kailas-cloud/bookqa/internal/version"
)

const providerName = "openai"

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, "bookqa", cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting bookqa API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := newStore(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Corpus is loaded once and shared read-only by all requests.
	pages, err := corpus.LoadFiles(cfg.Corpus.PagesPath, cfg.Corpus.EmbeddingsPath)
	if err != nil {
		logger.Fatal("Failed to load corpus", zap.Error(err))
	}
	logger.Info("Corpus loaded",
		zap.Int("pages", pages.Len()),
		zap.Int("dimensions", pages.Dimension()),
	)

	// Register provider metrics explicitly (no init())
	metrics.RegisterProviderMetrics()

	// Single BudgetTracker shared by embeddings, completions and the usage report.
	var budget *provideruc.BudgetTracker
	budgetCfg := cfg.OpenAI.Budget
	if budgetCfg.DailyTokenLimit > 0 || budgetCfg.MonthlyTokenLimit > 0 {
		action := provideruc.BudgetActionWarn
		if budgetCfg.Action == "reject" {
			action = provideruc.BudgetActionReject
		}
		budget = provideruc.NewBudgetTracker(
			providerName, budgetCfg.DailyTokenLimit, budgetCfg.MonthlyTokenLimit, action, logger,
		)
		// Connect persistence store: loads current counters from DB.
		budget.WithStore(ctx, budgetrepo.New(store, 48*time.Hour, 62*24*time.Hour))
	}

	// Pass nil interface (not typed nil pointer!) if budget is not configured.
	var budgetChecker provideruc.BudgetChecker
	var budgetReader usageuc.BudgetReader
	if budget != nil {
		budgetChecker = budget
		budgetReader = budget
	}

	base := openaiProvider.NewEmbedder(&openaiProvider.Config{
		APIKey:     cfg.OpenAI.APIKey,
		BaseURL:    cfg.OpenAI.BaseURL,
		Model:      cfg.Models.QueryEmbedding,
		Dimensions: cfg.Models.Dimensions,
		User:       cfg.OpenAI.User,
		Provider:   providerName,
		Logger:     logger,
	})
	queryEmbedder := buildEmbedder(base, cfg, store, budgetChecker, logger)
	completer := provideruc.NewInstrumentedCompleter(
		openaiProvider.NewCompleter(&openaiProvider.Config{
			APIKey:   cfg.OpenAI.APIKey,
			BaseURL:  cfg.OpenAI.BaseURL,
			Model:    cfg.Models.Completion,
			User:     cfg.OpenAI.User,
			Provider: providerName,
			Logger:   logger,
		}),
		providerName, cfg.Models.Completion, budgetChecker, logger,
	)
	logger.Info("Provider clients created",
		zap.String("query_model", cfg.Models.QueryEmbedding),
		zap.String("completion_model", cfg.Models.Completion),
		zap.Bool("embedding_cache", cfg.Cache.EmbeddingCache),
	)

	answerSvc := answeruc.New(pages, queryEmbedder, completer, logger).
		WithMaxContextTokens(cfg.Answer.MaxContextTokens).
		WithCompletionParams(cfg.Answer.MaxAnswerTokens, cfg.Answer.Temperature)
	if cfg.Answer.PromptPath != "" {
		tpl, err := answeruc.LoadTemplate(cfg.Answer.PromptPath)
		if err != nil {
			logger.Fatal("Failed to load prompt template", zap.Error(err))
		}
		answerSvc.WithTemplate(tpl)
	}

	questions := questionrepo.New(store).
		WithTTL(time.Duration(cfg.Cache.QuestionTTLHours) * time.Hour)

	askSvc := askuc.New(answerSvc, questions, logger)
	usageSvc := usageuc.New(budgetReader)
	healthSvc := healthuc.New(store, base, pages)

	server := chiTransport.NewServer(askSvc, usageSvc, healthSvc, logger)
	handler := chiTransport.NewRouter(server, cfg.Auth.APIKeys, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// newStore creates the database store for the configured driver.
func newStore(cfg config.DatabaseConfig) (db.Store, error) {
	switch cfg.Driver {
	case config.DriverValkey, config.DriverRedis:
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Password: cfg.Password,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverMemory:
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented.
func buildEmbedder(
	base domain.Embedder,
	cfg config.Config,
	store db.Store,
	budget provideruc.BudgetChecker,
	logger *zap.Logger,
) domain.Embedder {
	embedder := base
	if cfg.Cache.EmbeddingCache {
		embedder = embcache.New(base, store, metrics.EmbeddingCacheTotal, logger).
			WithNamespace(cfg.Models.QueryEmbedding).
			WithTTL(time.Duration(cfg.Cache.EmbeddingTTLHours) * time.Hour)
	}

	return provideruc.NewInstrumentedEmbedder(
		embedder, providerName, cfg.Models.QueryEmbedding, budget, logger,
	)
}
