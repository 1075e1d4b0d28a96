package config

import (
	"fmt"
	"os"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// 1. Provider validation (closed set)
	validProviders := []string{ProviderGemini, ProviderOllama}
	if !slices.Contains(validProviders, c.EmbeddingProvider) {
		return fmt.Errorf("%w: embedding_provider %q must be one of %v",
			ErrInvalidProvider, c.EmbeddingProvider, validProviders)
	}
	if !slices.Contains(validProviders, c.GenerationProvider) {
		return fmt.Errorf("%w: generation_provider %q must be one of %v",
			ErrInvalidProvider, c.GenerationProvider, validProviders)
	}

	// 2. API key validation (only when a Gemini provider is selected)
	if c.EmbeddingProvider == ProviderGemini || c.GenerationProvider == ProviderGemini {
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
				"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
				ErrMissingAPIKey)
		}
	}

	// 3. Model configuration validation
	if c.EmbeddingModel == "" {
		return fmt.Errorf("%w: embedding_model cannot be empty", ErrInvalidModelName)
	}
	if c.GenerationModel == "" {
		return fmt.Errorf("%w: generation_model cannot be empty", ErrInvalidModelName)
	}

	// gemini-embedding-001 supports up to 3072 dimensions
	if c.EmbeddingDimensions < 1 || c.EmbeddingDimensions > 4096 {
		return fmt.Errorf("%w: must be between 1 and 4096, got %d",
			ErrInvalidDimensions, c.EmbeddingDimensions)
	}

	// Temperature range: 0.0 (deterministic) to 2.0 (maximum creativity)
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}

	// Zero disables client-side rate limiting
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: must be non-negative, got %.2f", ErrInvalidRequestsPerSecond, c.RequestsPerSecond)
	}

	// 4. Chunking validation (overlap strictly less than chunk size)
	if c.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk_size must be at least 1, got %d", ErrInvalidChunking, c.ChunkSize)
	}
	if c.Overlap < 0 || c.Overlap >= c.ChunkSize {
		return fmt.Errorf("%w: overlap must be in [0, chunk_size), got overlap=%d chunk_size=%d",
			ErrInvalidChunking, c.Overlap, c.ChunkSize)
	}

	// 5. Retrieval validation
	if c.TopK < 1 || c.TopK > 100 {
		return fmt.Errorf("%w: must be between 1 and 100, got %d", ErrInvalidTopK, c.TopK)
	}
	if c.HistoryWindow < 0 || c.HistoryWindow > 100 {
		return fmt.Errorf("%w: must be between 0 and 100, got %d", ErrInvalidHistoryWindow, c.HistoryWindow)
	}
	if c.Collection == "" {
		return fmt.Errorf("%w: collection cannot be empty", ErrInvalidCollection)
	}
	if c.NoContext != NoContextAnswer && c.NoContext != NoContextRefuse {
		return fmt.Errorf("%w: %q must be %q or %q",
			ErrInvalidNoContextPolicy, c.NoContext, NoContextAnswer, NoContextRefuse)
	}

	// 6. Ingestion validation
	if c.Concurrency < 1 || c.Concurrency > 64 {
		return fmt.Errorf("%w: must be between 1 and 64, got %d", ErrInvalidConcurrency, c.Concurrency)
	}

	// 7. Ollama validation (only when an Ollama provider is selected)
	if c.EmbeddingProvider == ProviderOllama || c.GenerationProvider == ProviderOllama {
		if c.OllamaHost == "" {
			return fmt.Errorf("%w: ollama_host cannot be empty", ErrInvalidOllamaHost)
		}
	}

	// 8. PostgreSQL validation
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	// Modern SSL modes only; allow/prefer are deprecated
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}
