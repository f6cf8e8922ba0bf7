package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the bookqa API configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Models   ModelsConfig   `yaml:"models"`
	Corpus   CorpusConfig   `yaml:"corpus"`
	Answer   AnswerConfig   `yaml:"answer"`
	Cache    CacheConfig    `yaml:"cache"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// Database drivers.
const (
	DriverValkey = "valkey"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis, memory (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// OpenAIConfig holds the provider account settings.
type OpenAIConfig struct {
	APIKey  string       `yaml:"api_key"`
	BaseURL string       `yaml:"base_url"`
	User    string       `yaml:"user"`
	Budget  BudgetConfig `yaml:"budget"`
}

// ModelsConfig names the models used for queries, documents and answers.
type ModelsConfig struct {
	QueryEmbedding    string `yaml:"query_embedding"`
	DocumentEmbedding string `yaml:"document_embedding"`
	Completion        string `yaml:"completion"`
	Dimensions        int    `yaml:"dimensions"` // 0 = model default
}

// CorpusConfig locates the precomputed corpus files.
type CorpusConfig struct {
	PagesPath      string `yaml:"pages_path"`
	EmbeddingsPath string `yaml:"embeddings_path"`
}

// AnswerConfig holds answer pipeline settings.
type AnswerConfig struct {
	MaxContextTokens int     `yaml:"max_context_tokens"`
	MaxAnswerTokens  int     `yaml:"max_answer_tokens"`
	Temperature      float32 `yaml:"temperature"`
	PromptPath       string  `yaml:"prompt_path"` // optional YAML template override
}

// CacheConfig holds question and embedding cache settings.
type CacheConfig struct {
	QuestionTTLHours  int  `yaml:"question_ttl_hours"` // 0 = keep forever
	EmbeddingCache    bool `yaml:"embedding_cache"`
	EmbeddingTTLHours int  `yaml:"embedding_ttl_hours"` // 0 = keep forever
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes, defaults and validates a YAML configuration.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverValkey
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Models.QueryEmbedding == "" {
		c.Models.QueryEmbedding = "text-search-curie-query-001"
	}
	if c.Models.DocumentEmbedding == "" {
		c.Models.DocumentEmbedding = "text-search-curie-doc-001"
	}
	if c.Models.Completion == "" {
		c.Models.Completion = "text-davinci-003"
	}
	if c.Corpus.PagesPath == "" {
		c.Corpus.PagesPath = "book.pdf.pages.csv"
	}
	if c.Corpus.EmbeddingsPath == "" {
		c.Corpus.EmbeddingsPath = "book.pdf.embeddings.csv"
	}
	if c.Answer.MaxContextTokens <= 0 {
		c.Answer.MaxContextTokens = 500
	}
	if c.Answer.MaxAnswerTokens <= 0 {
		c.Answer.MaxAnswerTokens = 150
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case DriverValkey, DriverRedis:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("database.driver must be one of valkey, redis, memory, got %q", c.Database.Driver)
	}
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required")
	}
	switch c.OpenAI.Budget.Action {
	case "", "warn", "reject":
		// ok
	default:
		return fmt.Errorf(
			"openai.budget.action must be \"warn\" or \"reject\", got %q",
			c.OpenAI.Budget.Action,
		)
	}
	if c.OpenAI.Budget.DailyTokenLimit < 0 || c.OpenAI.Budget.MonthlyTokenLimit < 0 {
		return fmt.Errorf("openai.budget limits must not be negative")
	}
	if c.Models.Dimensions < 0 {
		return fmt.Errorf("models.dimensions must not be negative, got %d", c.Models.Dimensions)
	}
	if c.Answer.Temperature < 0 || c.Answer.Temperature > 2 {
		return fmt.Errorf("answer.temperature must be between 0 and 2, got %g", c.Answer.Temperature)
	}
	if c.Cache.QuestionTTLHours < 0 || c.Cache.EmbeddingTTLHours < 0 {
		return fmt.Errorf("cache ttl must not be negative")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
