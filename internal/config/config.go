// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.ragpipe/config.yaml or ./config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - Providers: embedding and generation provider/model selection
//   - Chunking: chunk size, overlap
//   - Retrieval: top-k, history window, collection, no-context policy
//   - Storage: PostgreSQL connection (see storage.go)
//
// Security: sensitive data (passwords, API keys) are never logged.
// Validation: fail-fast range checks in validation.go with sentinel errors
// that callers check with errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates the provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates a model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidDimensions indicates the embedding dimensionality is out of range.
	ErrInvalidDimensions = errors.New("invalid embedding dimensions")

	// ErrInvalidChunking indicates the chunk size or overlap is out of range.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidRequestsPerSecond indicates the rate limit is negative.
	ErrInvalidRequestsPerSecond = errors.New("invalid requests per second")

	// ErrInvalidTopK indicates the retrieval top-k value is out of range.
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidHistoryWindow indicates the history window is out of range.
	ErrInvalidHistoryWindow = errors.New("invalid history window")

	// ErrInvalidCollection indicates the collection name is invalid.
	ErrInvalidCollection = errors.New("invalid collection name")

	// ErrInvalidNoContextPolicy indicates the no-context policy is not recognized.
	ErrInvalidNoContextPolicy = errors.New("invalid no-context policy")

	// ErrInvalidConcurrency indicates the ingest concurrency is out of range.
	ErrInvalidConcurrency = errors.New("invalid concurrency")

	// ErrInvalidOllamaHost indicates the Ollama host is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

// Provider identifiers for embedding and generation.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

// No-context policies chosen when retrieval returns zero chunks.
const (
	NoContextAnswer = "answer" // answer from model knowledge, disclosing the lack of sources
	NoContextRefuse = "refuse" // return a canned refusal without calling the generator
)

const (
	// DefaultGeminiEmbedModel outputs 3072 dimensions by default but supports
	// truncation via OutputDimensionality; the schema stores whatever
	// dimensionality the collection was created with.
	DefaultGeminiEmbedModel = "gemini-embedding-001"

	// DefaultGeminiGenerateModel is the default Gemini generation model.
	DefaultGeminiGenerateModel = "gemini-2.5-flash"

	// DefaultOllamaEmbedModel is the default local embedding model.
	DefaultOllamaEmbedModel = "nomic-embed-text"

	// DefaultOllamaGenerateModel is the default local generation model.
	DefaultOllamaGenerateModel = "llama3.2"
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, API keys), update MarshalJSON.
type Config struct {
	// Provider and model configuration. Embedding and generation are selected
	// independently so a hosted embedder can pair with a local generator.
	EmbeddingProvider   string  `mapstructure:"embedding_provider" json:"embedding_provider"` // "gemini" (default) or "ollama"
	EmbeddingModel      string  `mapstructure:"embedding_model" json:"embedding_model"`       // defaults per provider
	EmbeddingDimensions int     `mapstructure:"embedding_dimensions" json:"embedding_dimensions"`
	GenerationProvider  string  `mapstructure:"generation_provider" json:"generation_provider"` // "gemini" (default) or "ollama"
	GenerationModel     string  `mapstructure:"generation_model" json:"generation_model"`
	Temperature         float32 `mapstructure:"temperature" json:"temperature"`
	RequestsPerSecond   float64 `mapstructure:"requests_per_second" json:"requests_per_second"` // provider call rate cap; 0 disables

	// Chunking configuration
	ChunkSize int `mapstructure:"chunk_size" json:"chunk_size"`
	Overlap   int `mapstructure:"overlap" json:"overlap"`

	// Retrieval and conversation configuration
	TopK          int    `mapstructure:"top_k" json:"top_k"`
	HistoryWindow int    `mapstructure:"history_window" json:"history_window"` // number of prior exchanges kept
	Collection    string `mapstructure:"collection" json:"collection"`
	NoContext     string `mapstructure:"no_context" json:"no_context"` // "answer" or "refuse"

	// Ingestion configuration
	Concurrency int `mapstructure:"concurrency" json:"concurrency"`

	// Ollama configuration (only used when a provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// Storage configuration (see storage.go for connection string helpers)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".ragpipe")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings when set
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	// Provider-dependent model defaults cannot live in setDefaults because
	// they depend on the resolved provider values.
	cfg.applyModelDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// applyModelDefaults fills empty model names based on the selected providers.
func (c *Config) applyModelDefaults() {
	if c.EmbeddingModel == "" {
		if c.EmbeddingProvider == ProviderOllama {
			c.EmbeddingModel = DefaultOllamaEmbedModel
		} else {
			c.EmbeddingModel = DefaultGeminiEmbedModel
		}
	}
	if c.GenerationModel == "" {
		if c.GenerationProvider == ProviderOllama {
			c.GenerationModel = DefaultOllamaGenerateModel
		} else {
			c.GenerationModel = DefaultGeminiGenerateModel
		}
	}
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// Provider defaults (model names resolved in applyModelDefaults)
	viper.SetDefault("embedding_provider", ProviderGemini)
	viper.SetDefault("generation_provider", ProviderGemini)
	viper.SetDefault("embedding_dimensions", 768)
	viper.SetDefault("temperature", 0.7)
	viper.SetDefault("requests_per_second", 0)

	// Chunking defaults
	viper.SetDefault("chunk_size", 1000)
	viper.SetDefault("overlap", 200)

	// Retrieval defaults
	viper.SetDefault("top_k", 5)
	viper.SetDefault("history_window", 5)
	viper.SetDefault("collection", "documents")
	viper.SetDefault("no_context", NoContextAnswer)

	// Ingestion defaults
	viper.SetDefault("concurrency", 4)

	// Ollama defaults
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "ragpipe")
	viper.SetDefault("postgres_password", "ragpipe_dev_password")
	viper.SetDefault("postgres_db_name", "ragpipe")
	viper.SetDefault("postgres_ssl_mode", "disable")
}

// bindEnvVariables binds environment variable overrides explicitly.
// GEMINI_API_KEY is intentionally NOT bound: it is read by the gemini
// provider directly and only its presence is validated here.
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail).
	// If this panics, it's a BUG in our code, not a runtime error.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("embedding_provider", "RAGPIPE_EMBEDDING_PROVIDER")
	mustBind("embedding_model", "RAGPIPE_EMBEDDING_MODEL")
	mustBind("generation_provider", "RAGPIPE_GENERATION_PROVIDER")
	mustBind("generation_model", "RAGPIPE_GENERATION_MODEL")
	mustBind("ollama_host", "RAGPIPE_OLLAMA_HOST")
	mustBind("collection", "RAGPIPE_COLLECTION")
	mustBind("postgres_password", "RAGPIPE_POSTGRES_PASSWORD")
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 characters or fewer are fully masked; longer secrets keep
// the first and last 2 characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
