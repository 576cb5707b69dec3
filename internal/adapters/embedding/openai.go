package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultOpenAIURL is the embeddings endpoint of the OpenAI API.
	DefaultOpenAIURL = "https://api.openai.com/v1/embeddings"
	// DefaultModel is the embedding model used when none is configured.
	DefaultModel = "text-embedding-3-small"
	// DefaultTimeout bounds a single provider call.
	DefaultTimeout = 30 * time.Second

	maxErrorBody = 512
)

// OpenAIOption configures an OpenAIProvider.
type OpenAIOption func(*OpenAIProvider)

// WithBaseURL overrides the embeddings endpoint. Any OpenAI-compatible
// server works.
func WithBaseURL(url string) OpenAIOption {
	return func(p *OpenAIProvider) {
		if url != "" {
			p.url = url
		}
	}
}

// WithModel sets the embedding model.
func WithModel(model string) OpenAIOption {
	return func(p *OpenAIProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithTimeout sets the per-call HTTP timeout.
func WithTimeout(d time.Duration) OpenAIOption {
	return func(p *OpenAIProvider) {
		if d > 0 {
			p.client.Timeout = d
		}
	}
}

// WithDimensions asks the model for shortened vectors. 0 keeps the model default.
func WithDimensions(n int) OpenAIOption {
	return func(p *OpenAIProvider) {
		if n > 0 {
			p.dimensions = n
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) OpenAIOption {
	return func(p *OpenAIProvider) {
		if c != nil {
			p.client = c
		}
	}
}

// OpenAIProvider calls an OpenAI-compatible /v1/embeddings endpoint.
type OpenAIProvider struct {
	url        string
	model      string
	apiKey     string
	dimensions int
	client     *http.Client
}

type openAIRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type openAIResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewOpenAIProvider creates a provider authenticated with apiKey.
func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) (*OpenAIProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	p := &OpenAIProvider{
		url:    DefaultOpenAIURL,
		model:  DefaultModel,
		apiKey: apiKey,
		client: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Name returns the provider and model.
func (p *OpenAIProvider) Name() string { return ProviderOpenAI + "/" + p.model }

// Embed sends texts in a single request.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([]Embedding, error) {
	body, err := json.Marshal(openAIRequest{Model: p.model, Input: texts, Dimensions: p.dimensions})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("embedding request: %w", err)
		}
		return nil, fmt.Errorf("%w: embedding request: %w", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		err := fmt.Errorf("%w: %d: %s", ErrProviderStatus, resp.StatusCode, strings.TrimSpace(string(snippet)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: %w", ErrTransient, err)
		}
		return nil, err
	}

	var out openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrProviderStatus, out.Error.Type, out.Error.Message)
	}

	embeddings := make([]Embedding, 0, len(out.Data))
	for _, d := range out.Data {
		embeddings = append(embeddings, Embedding{Index: d.Index, Vector: d.Embedding})
	}
	return embeddings, nil
}
