// Package gemini implements the embedding and generation interfaces on
// top of the hosted Gemini API.
package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/ragpipe/ragpipe/internal/log"
	"github.com/ragpipe/ragpipe/internal/provider"
)

const (
	// DefaultEmbedModel supports Matryoshka truncation via
	// OutputDimensionality, so any dimension up to 3072 works.
	DefaultEmbedModel = "gemini-embedding-001"

	DefaultGenerateModel = "gemini-2.5-flash"

	// maxBatchSize is the API limit on texts per embedding request.
	maxBatchSize = 100
)

// Task type strings for asymmetric retrieval embeddings.
const (
	taskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	taskRetrievalQuery    = "RETRIEVAL_QUERY"
)

// Config holds the settings shared by the Gemini embedder and generator.
type Config struct {
	APIKey        string
	EmbedModel    string
	GenerateModel string
	Dimensions    int
	Temperature   float32
	Retry         provider.RetryConfig

	// Timeout bounds each call attempt. The hosted SDK has no client
	// deadline of its own, so without this a stalled request would hang
	// until the parent context is canceled.
	Timeout time.Duration

	// RequestsPerSecond caps the call rate; zero disables limiting.
	RequestsPerSecond float64
}

// Client talks to the hosted Gemini API. It implements both
// provider.Embedder and provider.Generator.
type Client struct {
	client  *genai.Client
	cfg     Config
	limiter *rate.Limiter
	logger  log.Logger
}

// New validates cfg and constructs a Client. A missing API key is a
// configuration error, not an availability error: it can never be fixed
// by retrying.
func New(ctx context.Context, cfg Config, logger log.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, &provider.ConfigurationError{Provider: "gemini", Reason: "missing API key"}
	}
	if cfg.Dimensions < 1 {
		return nil, &provider.ConfigurationError{Provider: "gemini", Reason: fmt.Sprintf("invalid embedding dimensions %d", cfg.Dimensions)}
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = DefaultEmbedModel
	}
	if cfg.GenerateModel == "" {
		cfg.GenerateModel = DefaultGenerateModel
	}
	if cfg.Retry == (provider.RetryConfig{}) {
		cfg.Retry = provider.DefaultRetryConfig()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &provider.ConfigurationError{Provider: "gemini", Reason: fmt.Sprintf("client init: %v", err)}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{client: client, cfg: cfg, limiter: limiter, logger: logger}, nil
}

// Embed produces one vector per text, batching requests at the API limit.
// On an availability failure the returned UnavailableError reports how
// many texts were already embedded by earlier batches; bad credentials or
// an unknown model surface as a ConfigurationError instead.
func (c *Client) Embed(ctx context.Context, texts []string, purpose provider.Purpose) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	taskType := taskRetrievalDocument
	if purpose == provider.PurposeQuery {
		taskType = taskRetrievalQuery
	}
	dim := int32(c.cfg.Dimensions)
	embedCfg := &genai.EmbedContentConfig{
		OutputDimensionality: &dim,
		TaskType:             taskType,
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatchSize {
		end := min(start+maxBatchSize, len(texts))

		contents := make([]*genai.Content, 0, end-start)
		for _, t := range texts[start:end] {
			contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
		}

		var result *genai.EmbedContentResponse
		err := provider.Retry(ctx, c.cfg.Retry, c.limiter, "embed", func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
			defer cancel()

			var callErr error
			result, callErr = c.client.Models.EmbedContent(ctx, c.cfg.EmbedModel, contents, embedCfg)
			return callErr
		})
		if err != nil {
			return nil, provider.WrapCallError("gemini", "embed", start, err)
		}
		if result == nil || len(result.Embeddings) != len(contents) {
			return nil, &provider.UnavailableError{
				Provider: "gemini", Op: "embed", Embedded: start,
				Err: fmt.Errorf("expected %d embeddings, got %d", len(contents), embeddingCount(result)),
			}
		}

		for _, e := range result.Embeddings {
			out = append(out, e.Values)
		}

		c.logger.Debug("embedded batch",
			"model", c.cfg.EmbedModel,
			"batch", end-start,
			"total", end,
		)
	}
	return out, nil
}

func embeddingCount(r *genai.EmbedContentResponse) int {
	if r == nil {
		return 0
	}
	return len(r.Embeddings)
}

// Generate runs one completion over the conversation in req.
func (c *Client) Generate(ctx context.Context, req provider.GenerateRequest) (string, error) {
	if len(req.Messages) == 0 {
		return "", fmt.Errorf("generate: empty message list")
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := genai.RoleUser
		if m.Role == provider.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{genai.NewPartFromText(m.Content)},
		})
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.System != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	var resp *genai.GenerateContentResponse
	err := provider.Retry(ctx, c.cfg.Retry, c.limiter, "generate", func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()

		var callErr error
		resp, callErr = c.client.Models.GenerateContent(ctx, c.cfg.GenerateModel, contents, genCfg)
		return callErr
	})
	if err != nil {
		return "", provider.WrapCallError("gemini", "generate", 0, err)
	}

	var b strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					b.WriteString(part.Text)
				}
			}
			if b.Len() > 0 {
				break
			}
		}
	}
	if b.Len() == 0 {
		return "", &provider.UnavailableError{
			Provider: "gemini", Op: "generate",
			Err: fmt.Errorf("model returned no text candidates"),
		}
	}
	return b.String(), nil
}

// Dimensions reports the configured output dimensionality.
func (c *Client) Dimensions() int { return c.cfg.Dimensions }

func (c *Client) Name() string { return "gemini" }
