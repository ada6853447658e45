// ABOUTME: Embedding provider abstraction for the sync and search engines
// ABOUTME: OpenAI-backed implementation with retry; nil provider means FTS-only
package embedding

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/recallhq/recall/internal/config"
	"github.com/recallhq/recall/internal/util"
)

// Provider turns text into a fixed-width vector. Implementations must be
// safe for concurrent use.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// OpenAIProvider generates embeddings through the OpenAI API.
type OpenAIProvider struct {
	client     *openai.Client
	model      string
	maxRetries int
	retryDelay time.Duration
	timeout    time.Duration
}

// NewProvider returns an OpenAI-backed provider, or nil when no API key is
// configured. A nil provider is the supported "no embeddings" mode: sync
// indexes full-text only and vector search is unavailable.
func NewProvider(cfg *config.Config) *OpenAIProvider {
	if cfg.OpenAIKey == "" {
		return nil
	}
	return &OpenAIProvider{
		client:     openai.NewClient(cfg.OpenAIKey),
		model:      cfg.EmbeddingModel,
		maxRetries: cfg.EmbedRetries,
		retryDelay: cfg.EmbedBaseDelay,
		timeout:    cfg.EmbedTimeout,
	}
}

// ActiveProvider returns the configured provider as a Provider interface, or
// a true nil interface when embeddings are disabled. Callers comparing the
// interface against nil must use this, not NewProvider, to avoid a typed-nil
// pointer inside a non-nil interface.
func ActiveProvider(cfg *config.Config) Provider {
	if p := NewProvider(cfg); p != nil {
		return p
	}
	return nil
}

// Model returns the embedding model identifier.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// Embed generates one embedding, retrying transient failures with backoff.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(util.Backoff(p.retryDelay, attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
		resp, err := p.client.CreateEmbeddings(reqCtx, openai.EmbeddingRequestStrings{
			Input: []string{text},
			Model: openai.EmbeddingModel(p.model),
		})
		cancel()

		if err != nil {
			lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)
			continue
		}
		if len(resp.Data) == 0 {
			lastErr = fmt.Errorf("attempt %d: no embeddings returned", attempt+1)
			continue
		}
		return resp.Data[0].Embedding, nil
	}
	return nil, fmt.Errorf("failed to generate embedding after %d attempts: %w", p.maxRetries+1, lastErr)
}
