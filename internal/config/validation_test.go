package config

import (
	"errors"
	"testing"
)

// validBaseConfig returns a Config with all required fields set, using
// Ollama for both roles so no API key is required.
func validBaseConfig() *Config {
	return &Config{
		EmbeddingProvider:   ProviderOllama,
		EmbeddingModel:      DefaultOllamaEmbedModel,
		EmbeddingDimensions: 768,
		GenerationProvider:  ProviderOllama,
		GenerationModel:     DefaultOllamaGenerateModel,
		Temperature:         0.7,
		ChunkSize:           1000,
		Overlap:             200,
		TopK:                5,
		HistoryWindow:       5,
		Collection:          "documents",
		NoContext:           NoContextAnswer,
		Concurrency:         4,
		OllamaHost:          "http://localhost:11434",
		PostgresHost:        "localhost",
		PostgresPort:        5432,
		PostgresUser:        "ragpipe",
		PostgresPassword:    "test_password",
		PostgresDBName:      "ragpipe",
		PostgresSSLMode:     "disable",
	}
}

func TestValidateSuccess(t *testing.T) {
	cfg := validBaseConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error with valid config: %v", err)
	}
}

func TestValidateGeminiRequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	cfg := validBaseConfig()
	cfg.EmbeddingProvider = ProviderGemini
	cfg.EmbeddingModel = DefaultGeminiEmbedModel

	err := cfg.Validate()
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Validate() error = %v, want ErrMissingAPIKey", err)
	}

	t.Setenv("GEMINI_API_KEY", "test-api-key")
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error with API key set: %v", err)
	}
}

func TestValidateInvalidProvider(t *testing.T) {
	cfg := validBaseConfig()
	cfg.GenerationProvider = "unsupported"

	if err := cfg.Validate(); !errors.Is(err, ErrInvalidProvider) {
		t.Errorf("Validate() error = %v, want ErrInvalidProvider", err)
	}
}

func TestValidateRanges(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"zero chunk size", func(c *Config) { c.ChunkSize = 0 }, ErrInvalidChunking},
		{"negative overlap", func(c *Config) { c.Overlap = -1 }, ErrInvalidChunking},
		{"overlap equals chunk size", func(c *Config) { c.Overlap = c.ChunkSize }, ErrInvalidChunking},
		{"zero top_k", func(c *Config) { c.TopK = 0 }, ErrInvalidTopK},
		{"negative history window", func(c *Config) { c.HistoryWindow = -1 }, ErrInvalidHistoryWindow},
		{"empty collection", func(c *Config) { c.Collection = "" }, ErrInvalidCollection},
		{"unknown no-context policy", func(c *Config) { c.NoContext = "shrug" }, ErrInvalidNoContextPolicy},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, ErrInvalidConcurrency},
		{"zero dimensions", func(c *Config) { c.EmbeddingDimensions = 0 }, ErrInvalidDimensions},
		{"temperature too high", func(c *Config) { c.Temperature = 2.5 }, ErrInvalidTemperature},
		{"negative requests per second", func(c *Config) { c.RequestsPerSecond = -1 }, ErrInvalidRequestsPerSecond},
		{"empty embedding model", func(c *Config) { c.EmbeddingModel = "" }, ErrInvalidModelName},
		{"empty ollama host", func(c *Config) { c.OllamaHost = "" }, ErrInvalidOllamaHost},
		{"empty postgres host", func(c *Config) { c.PostgresHost = "" }, ErrInvalidPostgresHost},
		{"postgres port out of range", func(c *Config) { c.PostgresPort = 70000 }, ErrInvalidPostgresPort},
		{"empty db name", func(c *Config) { c.PostgresDBName = "" }, ErrInvalidPostgresDBName},
		{"deprecated ssl mode", func(c *Config) { c.PostgresSSLMode = "prefer" }, ErrInvalidPostgresSSLMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBaseConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateNilConfig(t *testing.T) {
	var cfg *Config
	if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("Validate() error = %v, want ErrConfigNil", err)
	}
}
