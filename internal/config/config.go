// Package config defines the process configuration and how it is loaded.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Functions accept context.Context as the first parameter.
// - Validation failures wrap ErrInvalidConfig; loading failures wrap ErrLoadConfig.
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/hooklens/internal/adapters/embedding"
	"github.com/okian/hooklens/internal/domain/types"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Taxonomy is the default mode when no argument is given on the command line.
	Taxonomy string `koanf:"taxonomy"`

	// DBPath is the SQLite database holding content items and categories.
	DBPath string `koanf:"db_path"`

	// BatchSize is the number of candidates pulled per selector pass.
	BatchSize int `koanf:"batch_size"`

	// EmbedBatchCap bounds the texts sent in one provider call.
	EmbedBatchCap int `koanf:"embed_batch_cap"`

	// MaxTextChars truncates texts before they are embedded.
	MaxTextChars int `koanf:"max_text_chars"`

	// ThrottleMS is the pause between consecutive provider calls.
	ThrottleMS int `koanf:"throttle_ms"`

	EmbeddingProvider   string `koanf:"embedding_provider"`
	EmbeddingModel      string `koanf:"embedding_model"`
	EmbeddingURL        string `koanf:"embedding_url"`
	EmbeddingAPIKey     string `koanf:"embedding_api_key"`
	EmbeddingTimeoutMS  int    `koanf:"embedding_timeout_ms"`
	EmbeddingDimensions int    `koanf:"embedding_dimensions"`

	// EmbeddingRetries bounds retries of rate-limited or failed provider calls.
	EmbeddingRetries     int `koanf:"embedding_retries"`
	EmbeddingRetryBaseMS int `koanf:"embedding_retry_base_ms"`

	// MetricsAddr enables the ops HTTP server (/metrics, /healthz, /stats) when set.
	MetricsAddr string `koanf:"metrics_addr"`
}

// New returns a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Taxonomy:           types.DefaultKind.String(),
		DBPath:             "hooklens.db",
		BatchSize:          100,
		EmbedBatchCap:      embedding.DefaultBatchCap,
		MaxTextChars:       embedding.DefaultMaxChars,
		ThrottleMS:         int(embedding.DefaultThrottle / time.Millisecond),
		EmbeddingProvider:  embedding.ProviderOpenAI,
		EmbeddingModel:     embedding.DefaultModel,
		EmbeddingURL:       embedding.DefaultOpenAIURL,
		EmbeddingTimeoutMS: int(embedding.DefaultTimeout / time.Millisecond),

		EmbeddingRetries:     embedding.DefaultRetries,
		EmbeddingRetryBaseMS: int(embedding.DefaultRetryBase / time.Millisecond),
	}
}

// Throttle returns ThrottleMS as a duration.
func (c *Config) Throttle() time.Duration {
	return time.Duration(c.ThrottleMS) * time.Millisecond
}

// EmbeddingTimeout returns EmbeddingTimeoutMS as a duration.
func (c *Config) EmbeddingTimeout() time.Duration {
	return time.Duration(c.EmbeddingTimeoutMS) * time.Millisecond
}

// RetryBase returns EmbeddingRetryBaseMS as a duration.
func (c *Config) RetryBase() time.Duration {
	return time.Duration(c.EmbeddingRetryBaseMS) * time.Millisecond
}

// Provider returns the settings for embedding.NewProvider.
func (c *Config) Provider() embedding.ProviderConfig {
	return embedding.ProviderConfig{
		Name:       c.EmbeddingProvider,
		URL:        c.EmbeddingURL,
		Model:      c.EmbeddingModel,
		APIKey:     c.EmbeddingAPIKey,
		Timeout:    c.EmbeddingTimeout(),
		Dimensions: c.EmbeddingDimensions,
	}
}

// Validate checks the settings that would otherwise fail deep inside a run.
// The API key is not checked here: an openai run without one fails when the
// provider is built, while commands that never embed still work.
func (c *Config) Validate() error {
	switch {
	case c.DBPath == "":
		return fmt.Errorf("%w: db_path must not be empty", ErrInvalidConfig)
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch_size must be positive, got %d", ErrInvalidConfig, c.BatchSize)
	case c.EmbedBatchCap <= 0:
		return fmt.Errorf("%w: embed_batch_cap must be positive, got %d", ErrInvalidConfig, c.EmbedBatchCap)
	case c.MaxTextChars <= 0:
		return fmt.Errorf("%w: max_text_chars must be positive, got %d", ErrInvalidConfig, c.MaxTextChars)
	case c.ThrottleMS < 0:
		return fmt.Errorf("%w: throttle_ms must not be negative, got %d", ErrInvalidConfig, c.ThrottleMS)
	case c.EmbeddingRetries < 0:
		return fmt.Errorf("%w: embedding_retries must not be negative, got %d", ErrInvalidConfig, c.EmbeddingRetries)
	case c.EmbeddingRetryBaseMS <= 0:
		return fmt.Errorf("%w: embedding_retry_base_ms must be positive, got %d", ErrInvalidConfig, c.EmbeddingRetryBaseMS)
	case c.EmbeddingDimensions < 0:
		return fmt.Errorf("%w: embedding_dimensions must not be negative, got %d", ErrInvalidConfig, c.EmbeddingDimensions)
	}
	switch c.EmbeddingProvider {
	case embedding.ProviderOpenAI, embedding.ProviderHash:
	default:
		return fmt.Errorf("%w: unknown embedding_provider %q", ErrInvalidConfig, c.EmbeddingProvider)
	}
	return nil
}
