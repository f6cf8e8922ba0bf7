package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/bookqa/internal/corpus"
	dbRedis "github.com/kailas-cloud/bookqa/internal/db/redis"
	"github.com/kailas-cloud/bookqa/internal/domain"
	"github.com/kailas-cloud/bookqa/internal/ingest"
	logpkg "github.com/kailas-cloud/bookqa/internal/logger"
	"github.com/kailas-cloud/bookqa/internal/metrics"
	"github.com/kailas-cloud/bookqa/internal/repository/embcache"
	openaiProvider "github.com/kailas-cloud/bookqa/internal/transport/openai"
	provideruc "github.com/kailas-cloud/bookqa/internal/usecase/provider"
	"github.com/kailas-cloud/bookqa/internal/version"
)

const defaultDocumentModel = "text-search-curie-doc-001"

const cacheReadyTimeout = 10 * time.Second

type options struct {
	apiKey        string
	baseURL       string
	model         string
	dimensions    int
	batchSize     int
	logLevel      string
	cacheAddr     string
	cachePassword string
}

// cacheStore is what the page embedding cache needs from the store.
type cacheStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	MGet(ctx context.Context, keys []string) ([][]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	WaitForReady(ctx context.Context, timeout time.Duration) error
	Close()
}

// openCacheStore connects to the Valkey or Redis instance behind --cache-addr.
var openCacheStore = func(addr, password string) (cacheStore, error) {
	s, err := dbRedis.NewStore(dbRedis.Config{Addrs: []string{addr}, Password: password, ClientName: "bookqa-ingest"})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "bookqa-ingest",
		Short:        "Build the pages and embeddings sources for bookqa from a PDF",
		Version:      version.Version,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.apiKey, "api-key", os.Getenv("OPENAI_API_KEY"), "OpenAI API key (env OPENAI_API_KEY)")
	flags.StringVar(&opts.baseURL, "base-url", os.Getenv("OPENAI_BASE_URL"), "OpenAI-compatible base URL (env OPENAI_BASE_URL)")
	flags.StringVar(&opts.model, "model", defaultDocumentModel, "document embedding model")
	flags.IntVar(&opts.dimensions, "dimensions", 0, "embedding dimensions (0 = model default)")
	flags.IntVar(&opts.batchSize, "batch-size", provideruc.DefaultMaxAPIBatchSize, "pages per embeddings request")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flags.StringVar(&opts.cacheAddr, "cache-addr", os.Getenv("BOOKQA_CACHE_ADDR"),
		"Valkey/Redis address caching page embeddings between runs (env BOOKQA_CACHE_ADDR)")
	flags.StringVar(&opts.cachePassword, "cache-password", os.Getenv("BOOKQA_CACHE_PASSWORD"),
		"cache password (env BOOKQA_CACHE_PASSWORD)")

	root.AddCommand(newExtractCmd(opts), newEmbedCmd(opts), newBuildCmd(opts))
	return root
}

func newExtractCmd(opts *options) *cobra.Command {
	var pdfPath, out string
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract page text from a PDF into <pdf>.pages.csv",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := opts.logger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if out == "" {
				out = ingest.PagesPath(pdfPath)
			}
			_, err = extract(logger, pdfPath, out)
			return err
		},
	}
	cmd.Flags().StringVar(&pdfPath, "pdf", "", "path to the book PDF")
	cmd.Flags().StringVar(&out, "out", "", "pages output path (default <pdf>.pages.csv)")
	_ = cmd.MarkFlagRequired("pdf")
	return cmd
}

func newEmbedCmd(opts *options) *cobra.Command {
	var pagesPath, out string
	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Embed every page of a pages source into an embeddings source",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := opts.logger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			pages, err := readPagesFile(pagesPath)
			if err != nil {
				return err
			}
			if out == "" {
				out = embeddingsPathFor(pagesPath)
			}
			return embed(cmd.Context(), opts, logger, pages, out)
		},
	}
	cmd.Flags().StringVar(&pagesPath, "pages", "", "path to the pages source")
	cmd.Flags().StringVar(&out, "out", "", "embeddings output path (default <pdf>.embeddings.csv)")
	_ = cmd.MarkFlagRequired("pages")
	return cmd
}

func newBuildCmd(opts *options) *cobra.Command {
	var pdfPath string
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Extract and embed a PDF in one step",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := opts.logger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			pages, err := extract(logger, pdfPath, ingest.PagesPath(pdfPath))
			if err != nil {
				return err
			}
			return embed(cmd.Context(), opts, logger, pages, ingest.EmbeddingsPath(pdfPath))
		},
	}
	cmd.Flags().StringVar(&pdfPath, "pdf", "", "path to the book PDF")
	_ = cmd.MarkFlagRequired("pdf")
	return cmd
}

func (o *options) logger() (*zap.Logger, error) {
	return logpkg.NewLogger("local", "bookqa-ingest", o.logLevel)
}

func extract(logger *zap.Logger, pdfPath, out string) ([]corpus.Page, error) {
	pages, err := ingest.ExtractPages(pdfPath)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no text found in %s", pdfPath)
	}

	if err := writeFile(out, func(f *os.File) error { return corpus.WritePages(f, pages) }); err != nil {
		return nil, err
	}
	logger.Info("Dumped pages", zap.String("path", out), zap.Int("pages", len(pages)))
	return pages, nil
}

func embed(ctx context.Context, opts *options, logger *zap.Logger, pages []corpus.Page, out string) error {
	if opts.apiKey == "" {
		return fmt.Errorf("missing OpenAI API key: set OPENAI_API_KEY or --api-key")
	}

	var base domain.Embedder = openaiProvider.NewEmbedder(&openaiProvider.Config{
		APIKey:     opts.apiKey,
		BaseURL:    opts.baseURL,
		Model:      opts.model,
		Dimensions: opts.dimensions,
		Provider:   "openai",
		Logger:     logger,
	})

	if opts.cacheAddr != "" {
		store, err := openCacheStore(opts.cacheAddr, opts.cachePassword)
		if err != nil {
			return fmt.Errorf("open embedding cache: %w", err)
		}
		defer store.Close()
		if err := store.WaitForReady(ctx, cacheReadyTimeout); err != nil {
			return fmt.Errorf("embedding cache not ready: %w", err)
		}
		// Namespaced by model: vectors for the same page under another model stay apart.
		base = embcache.New(base, store, metrics.EmbeddingCacheTotal, logger).WithNamespace(opts.model)
		logger.Info("Page embedding cache enabled", zap.String("addr", opts.cacheAddr))
	}

	embedder := provideruc.NewInstrumentedEmbedder(base, "openai", opts.model, nil, logger).
		WithMaxBatchSize(opts.batchSize)

	ids, vectors, err := ingest.Embed(ctx, embedder, pages)
	if err != nil {
		return err
	}

	if err := writeFile(out, func(f *os.File) error { return corpus.WriteEmbeddings(f, ids, vectors) }); err != nil {
		return err
	}
	logger.Info("Dumped embeddings",
		zap.String("path", out),
		zap.Int("pages", len(ids)),
		zap.Int("dimensions", len(vectors[0])),
	)
	return nil
}

func readPagesFile(path string) ([]corpus.Page, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open pages: %w", err)
	}
	defer f.Close()
	return corpus.ReadPages(f)
}

// embeddingsPathFor maps book.pdf.pages.csv to book.pdf.embeddings.csv.
func embeddingsPathFor(pagesPath string) string {
	if pdfPath, ok := strings.CutSuffix(pagesPath, ".pages.csv"); ok && pdfPath != "" {
		return ingest.EmbeddingsPath(pdfPath)
	}
	return pagesPath + ".embeddings.csv"
}

func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
