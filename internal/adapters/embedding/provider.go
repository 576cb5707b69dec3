// Package embedding turns texts into vectors through an external provider.
package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Embedding is one vector returned by a provider. Index refers to the
// position of the source text in the request.
type Embedding struct {
	Index  int
	Vector []float32
}

// Provider embeds a list of texts in one call. The result may be in any
// order and may omit entries.
type Provider interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([]Embedding, error)
}

// Provider names accepted by NewProvider.
const (
	ProviderOpenAI = "openai"
	ProviderHash   = "hash"
)

// ProviderConfig selects and configures a provider.
type ProviderConfig struct {
	Name       string
	URL        string
	Model      string
	APIKey     string
	Timeout    time.Duration
	Dimensions int
}

// NewProvider builds the provider named by cfg.Name.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Name)) {
	case ProviderOpenAI, "":
		p, err := NewOpenAIProvider(cfg.APIKey,
			WithBaseURL(cfg.URL),
			WithModel(cfg.Model),
			WithTimeout(cfg.Timeout),
			WithDimensions(cfg.Dimensions),
		)
		if err != nil {
			return nil, err
		}
		return p, nil
	case ProviderHash:
		return NewHashProvider(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Name)
	}
}
