package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ragpipe/ragpipe/db"
	"github.com/ragpipe/ragpipe/internal/config"
	"github.com/ragpipe/ragpipe/internal/database"
	"github.com/ragpipe/ragpipe/internal/log"
	"github.com/ragpipe/ragpipe/internal/provider"
	"github.com/ragpipe/ragpipe/internal/provider/gemini"
	"github.com/ragpipe/ragpipe/internal/provider/ollama"
	"github.com/ragpipe/ragpipe/internal/rag"
	"github.com/ragpipe/ragpipe/internal/session"
	"github.com/ragpipe/ragpipe/internal/vectorstore"
)

// runtime bundles the initialized components shared by the subcommands.
// Every entry point builds one via newRuntime and releases the pool with
// Close.
type runtime struct {
	cfg       *config.Config
	logger    log.Logger
	pool      *pgxpool.Pool
	store     *vectorstore.Postgres
	sessions  *session.Store
	embedder  provider.Embedder
	generator provider.Generator
}

// newRuntime loads configuration, runs migrations, connects the pool, and
// constructs the providers. Callers must Close the returned runtime.
func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger()

	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := database.Connect(ctx, cfg.PostgresURL(), logger)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	embedder, generator, err := buildProviders(ctx, cfg, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &runtime{
		cfg:       cfg,
		logger:    logger,
		pool:      pool,
		store:     vectorstore.NewPostgres(pool, logger),
		sessions:  session.NewStore(pool, logger),
		embedder:  embedder,
		generator: generator,
	}, nil
}

func (r *runtime) Close() {
	r.pool.Close()
}

// engine constructs the conversation engine from the runtime components.
func (r *runtime) engine() *rag.Engine {
	return rag.New(r.embedder, r.generator, r.store, r.sessions, rag.Config{
		Collection:  r.cfg.Collection,
		TopK:        r.cfg.TopK,
		Window:      session.Window(r.cfg.HistoryWindow),
		Temperature: r.cfg.Temperature,
		OnNoContext: rag.NoContextPolicy(r.cfg.NoContext),
	}, r.logger)
}

// buildProviders constructs the embedder and generator for the configured
// providers. When both roles use the same provider a single client serves
// both, so rate limits and connections are shared.
func buildProviders(ctx context.Context, cfg *config.Config, logger log.Logger) (provider.Embedder, provider.Generator, error) {
	var (
		geminiClient *gemini.Client
		ollamaClient *ollama.Client
	)

	needs := func(name string) bool {
		return cfg.EmbeddingProvider == name || cfg.GenerationProvider == name
	}

	if needs(config.ProviderGemini) {
		c, err := gemini.New(ctx, gemini.Config{
			APIKey:            os.Getenv("GEMINI_API_KEY"),
			EmbedModel:        cfg.EmbeddingModel,
			GenerateModel:     cfg.GenerationModel,
			Dimensions:        cfg.EmbeddingDimensions,
			Temperature:       cfg.Temperature,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("creating gemini client: %w", err)
		}
		geminiClient = c
	}

	if needs(config.ProviderOllama) {
		c, err := ollama.New(ollama.Config{
			Host:              cfg.OllamaHost,
			EmbedModel:        cfg.EmbeddingModel,
			GenerateModel:     cfg.GenerationModel,
			Dimensions:        cfg.EmbeddingDimensions,
			Temperature:       cfg.Temperature,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("creating ollama client: %w", err)
		}
		ollamaClient = c
	}

	var embedder provider.Embedder
	var generator provider.Generator

	switch cfg.EmbeddingProvider {
	case config.ProviderOllama:
		embedder = ollamaClient
	default:
		embedder = geminiClient
	}
	switch cfg.GenerationProvider {
	case config.ProviderOllama:
		generator = ollamaClient
	default:
		generator = geminiClient
	}

	return embedder, generator, nil
}

// newLogger builds the CLI logger from the persistent flags.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level, JSON: flagJSONLogs})
}
