// Package ollama implements the embedding and generation interfaces
// against a local Ollama server over its HTTP API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ragpipe/ragpipe/internal/log"
	"github.com/ragpipe/ragpipe/internal/provider"
)

const (
	DefaultHost          = "http://localhost:11434"
	DefaultEmbedModel    = "nomic-embed-text"
	DefaultGenerateModel = "llama3.2"
)

// Config holds the settings shared by the Ollama embedder and generator.
type Config struct {
	// Host is the server base URL, e.g. http://localhost:11434.
	Host          string
	EmbedModel    string
	GenerateModel string
	Dimensions    int
	Temperature   float32
	Timeout       time.Duration
	Retry         provider.RetryConfig

	// RequestsPerSecond caps the call rate; zero disables limiting.
	RequestsPerSecond float64
}

// Client talks to a local Ollama server. It implements both
// provider.Embedder and provider.Generator.
type Client struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	logger  log.Logger
}

// New validates cfg and constructs a Client. No connection is made here;
// availability is checked per call (or explicitly via Ping).
func New(cfg Config, logger log.Logger) (*Client, error) {
	if cfg.Dimensions < 1 {
		return nil, &provider.ConfigurationError{Provider: "ollama", Reason: fmt.Sprintf("invalid embedding dimensions %d", cfg.Dimensions)}
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = DefaultEmbedModel
	}
	if cfg.GenerateModel == "" {
		cfg.GenerateModel = DefaultGenerateModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.Retry == (provider.RetryConfig{}) {
		cfg.Retry = provider.DefaultRetryConfig()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		logger:  logger,
	}, nil
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// Embed generates one vector per text. The embeddings endpoint accepts a
// single prompt per request, so texts are embedded sequentially. On an
// availability failure the returned UnavailableError reports how many
// texts completed; bad credentials or an unknown model surface as a
// ConfigurationError instead.
func (c *Client) Embed(ctx context.Context, texts []string, _ provider.Purpose) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for i, text := range texts {
		var vec []float32
		err := provider.Retry(ctx, c.cfg.Retry, c.limiter, "embed", func(ctx context.Context) error {
			var callErr error
			vec, callErr = c.embedOne(ctx, text)
			return callErr
		})
		if err != nil {
			return nil, provider.WrapCallError("ollama", "embed", i, err)
		}
		out = append(out, vec)
	}

	c.logger.Debug("embedded texts", "model", c.cfg.EmbedModel, "count", len(out))
	return out, nil
}

func (c *Client) embedOne(ctx context.Context, text string) ([]float32, error) {
	var resp embedResponse
	if err := c.post(ctx, "/api/embeddings", embedRequest{Model: c.cfg.EmbedModel, Prompt: text}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("model %s returned empty embedding", c.cfg.EmbedModel)
	}
	return resp.Embedding, nil
}

// Generate runs one chat completion over the conversation in req.
func (c *Client) Generate(ctx context.Context, req provider.GenerateRequest) (string, error) {
	if len(req.Messages) == 0 {
		return "", fmt.Errorf("generate: empty message list")
	}

	msgs := make([]chatMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		role := "user"
		if m.Role == provider.RoleAssistant {
			role = "assistant"
		}
		msgs = append(msgs, chatMessage{Role: role, Content: m.Content})
	}

	body := chatRequest{
		Model:    c.cfg.GenerateModel,
		Messages: msgs,
		Stream:   false,
		Options:  map[string]any{"temperature": req.Temperature},
	}

	var resp chatResponse
	err := provider.Retry(ctx, c.cfg.Retry, c.limiter, "generate", func(ctx context.Context) error {
		return c.post(ctx, "/api/chat", body, &resp)
	})
	if err != nil {
		return "", provider.WrapCallError("ollama", "generate", 0, err)
	}
	if resp.Message.Content == "" {
		return "", &provider.UnavailableError{
			Provider: "ollama", Op: "generate",
			Err: fmt.Errorf("model %s returned empty response", c.cfg.GenerateModel),
		}
	}
	return resp.Message.Content, nil
}

// Ping checks server reachability via the tags endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Host+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return &provider.UnavailableError{Provider: "ollama", Op: "ping", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &provider.UnavailableError{Provider: "ollama", Op: "ping", Err: fmt.Errorf("server returned status %d", resp.StatusCode)}
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Host+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Dimensions reports the configured vector width of the embedding model.
func (c *Client) Dimensions() int { return c.cfg.Dimensions }

func (c *Client) Name() string { return "ollama" }
