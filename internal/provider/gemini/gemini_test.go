package gemini

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/ragpipe/ragpipe/internal/log"
	"github.com/ragpipe/ragpipe/internal/provider"
)

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(context.Background(), Config{Dimensions: 768}, log.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrConfiguration)

	var ce *provider.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "gemini", ce.Provider)
}

func TestNewRejectsInvalidDimensions(t *testing.T) {
	_, err := New(context.Background(), Config{APIKey: "k", Dimensions: 0}, log.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrConfiguration)
}

func TestNewAppliesCallDefaults(t *testing.T) {
	c, err := New(context.Background(), Config{APIKey: "k", Dimensions: 768}, log.NewNop())
	require.NoError(t, err)
	assert.Equal(t, DefaultEmbedModel, c.cfg.EmbedModel)
	assert.Equal(t, DefaultGenerateModel, c.cfg.GenerateModel)
	assert.Equal(t, 120*time.Second, c.cfg.Timeout)
	assert.Nil(t, c.limiter)
}

func TestNewConfiguresRateLimiter(t *testing.T) {
	c, err := New(context.Background(), Config{APIKey: "k", Dimensions: 768, RequestsPerSecond: 2}, log.NewNop())
	require.NoError(t, err)
	require.NotNil(t, c.limiter)
	assert.Equal(t, rate.Limit(2), c.limiter.Limit())
}
