package bookqa

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // "valkey", "redis" or "memory"
	addrs    []string
	password string

	embedder  Embedder
	completer Completer

	openAIKey     string
	openAIBaseURL string
	queryModel    string
	answerModel   string

	pagesPath      string
	embeddingsPath string

	maxContextTokens int
	maxAnswerTokens  int
	temperature      float32

	dailyTokens   int64
	monthlyTokens int64
	rejectOverrun bool

	questionTTL time.Duration

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithValkey configures the client to connect to a Valkey instance.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis configures the client to connect to a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithMemory keeps cached answers in process memory. They are lost on Close.
func WithMemory() Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "memory"
		c.addrs = nil
	})
}

// WithOpenAI uses the OpenAI-compatible API for both embeddings and
// completions. An empty baseURL means the public OpenAI endpoint.
func WithOpenAI(apiKey, baseURL string) Option {
	return optionFunc(func(c *clientConfig) {
		c.openAIKey = apiKey
		c.openAIBaseURL = baseURL
	})
}

// WithModels overrides the query embedding and completion models used with WithOpenAI.
// Defaults: text-search-curie-query-001 and text-davinci-003.
func WithModels(queryEmbedding, completion string) Option {
	return optionFunc(func(c *clientConfig) {
		c.queryModel = queryEmbedding
		c.answerModel = completion
	})
}

// WithEmbedder sets a custom query embedder. Takes precedence over WithOpenAI.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithCompleter sets a custom completion provider. Takes precedence over WithOpenAI.
func WithCompleter(cp Completer) Option {
	return optionFunc(func(c *clientConfig) {
		c.completer = cp
	})
}

// WithCorpusFiles sets the pages and embeddings CSV sources. Required.
func WithCorpusFiles(pagesPath, embeddingsPath string) Option {
	return optionFunc(func(c *clientConfig) {
		c.pagesPath = pagesPath
		c.embeddingsPath = embeddingsPath
	})
}

// WithMaxContextTokens sets the context budget in words. Default: 500.
func WithMaxContextTokens(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxContextTokens = n
	})
}

// WithCompletionParams sets the answer length and sampling temperature.
// Defaults: 150 tokens, temperature 0.
func WithCompletionParams(maxTokens int, temperature float32) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxAnswerTokens = maxTokens
		c.temperature = temperature
	})
}

// WithBudget limits provider tokens per day and per month (0 = unlimited).
// With reject set, calls over budget fail with ErrQuotaExceeded; otherwise
// they are only logged.
func WithBudget(daily, monthly int64, reject bool) Option {
	return optionFunc(func(c *clientConfig) {
		c.dailyTokens = daily
		c.monthlyTokens = monthly
		c.rejectOverrun = reject
	})
}

// WithQuestionTTL expires cached answers. Default: keep forever.
func WithQuestionTTL(ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.questionTTL = ttl
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
