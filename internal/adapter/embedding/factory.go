package embedding

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"scirag/config"
	"scirag/internal/port"
)

// NewFromConfig builds the embedder selected by cfg.Provider.
func NewFromConfig(cfg config.EmbeddingConfig) (port.Embedder, error) {
	provider := strings.ToLower(cfg.Provider)

	opts := OpenAIOptions{
		BaseURL:           cfg.BaseURL,
		Model:             cfg.Model,
		Dimension:         cfg.Dimension,
		BatchSize:         cfg.BatchSize,
		MaxInputTokens:    cfg.MaxInputTokens,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Timeout:           time.Duration(cfg.TimeoutSeconds) * time.Second,
		MaxRetries:        2,
	}

	switch provider {
	case "", "hash", "mock":
		return NewHashEmbedder(cfg.Dimension, cfg.MaxInputTokens), nil
	case "ollama":
		if opts.BaseURL == "" {
			opts.BaseURL = defaultOllamaURL
		}
		if opts.Model == "" {
			opts.Model = "nomic-embed-text"
		}
		opts.APIKey = "ollama"
		return NewOpenAICompatibleEmbedder(opts)
	case "openai", "deepseek", "jina":
		if opts.BaseURL == "" {
			opts.BaseURL = map[string]string{
				"openai":   defaultOpenAIURL,
				"deepseek": defaultDeepSeekURL,
				"jina":     defaultJinaURL,
			}[provider]
		}
		if cfg.APIKeyEnv == "" {
			return nil, fmt.Errorf("embedding.api_key_env is required for provider %s", provider)
		}
		opts.APIKey = os.Getenv(cfg.APIKeyEnv)
		if opts.APIKey == "" {
			return nil, fmt.Errorf("API key not found in environment variable: %s", cfg.APIKeyEnv)
		}
		return NewOpenAICompatibleEmbedder(opts)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}

// EmbedOne embeds a single text. It returns exactly what a one-element batch returns.
func EmbedOne(ctx context.Context, e port.Embedder, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one text", len(vectors))
	}
	return vectors[0], nil
}
