package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"

	"scirag/internal/adapter/analyzer"
	"scirag/internal/domain"
)

const (
	defaultOpenAIURL   = "https://api.openai.com/v1"
	defaultDeepSeekURL = "https://api.deepseek.com/v1"
	defaultJinaURL     = "https://api.jina.ai/v1"
	defaultOllamaURL   = "http://localhost:11434/v1"

	defaultBatchSize = 100
)

// OpenAIOptions configures an OpenAI-compatible embeddings client.
type OpenAIOptions struct {
	APIKey            string
	BaseURL           string
	Model             string
	Dimension         int
	BatchSize         int
	MaxInputTokens    int
	RequestsPerSecond float64
	Timeout           time.Duration
	MaxRetries        int
}

// OpenAIEmbedder calls the /embeddings endpoint of any OpenAI-compatible API.
type OpenAIEmbedder struct {
	client    openai.Client
	model     string
	dimension int
	batchSize int
	maxTokens int
	tokenizer *analyzer.Tokenizer
	limiter   *rate.Limiter
}

func NewOpenAICompatibleEmbedder(opts OpenAIOptions) (*OpenAIEmbedder, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("API key is required for %s", opts.BaseURL)
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("embedding model is required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultOpenAIURL
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}

	dimension := opts.Dimension
	if dimension <= 0 {
		dimension = knownDimension(opts.Model)
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	client := openai.NewClient(
		option.WithAPIKey(opts.APIKey),
		option.WithBaseURL(opts.BaseURL),
		option.WithRequestTimeout(opts.Timeout),
		option.WithMaxRetries(opts.MaxRetries),
	)

	return &OpenAIEmbedder{
		client:    client,
		model:     opts.Model,
		dimension: dimension,
		batchSize: opts.BatchSize,
		maxTokens: opts.MaxInputTokens,
		tokenizer: analyzer.NewTokenizer(),
		limiter:   rate.NewLimiter(limit, 1),
	}, nil
}

// knownDimension returns the native output size of common embedding models.
func knownDimension(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	case "jina-embeddings-v3", "mxbai-embed-large":
		return 1024
	case "jina-embeddings-v4":
		return 2048
	case "all-minilm":
		return 384
	default:
		return 768 // nomic-embed-text and most BERT-sized models
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += e.batchSize {
		end := i + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		embeddings, err := e.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		all = append(all, embeddings...)
	}

	return all, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	input := make([]string, len(texts))
	for i, t := range texts {
		input[i] = e.tokenizer.Truncate(t, e.maxTokens)
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", domain.ErrEmbedding, err)
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: input},
		Model:          openai.EmbeddingModel(e.model),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", domain.ErrEmbedding, err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", domain.ErrEmbedding, len(texts), len(resp.Data))
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range resp.Data {
		idx := int(data.Index)
		if idx < 0 || idx >= len(embeddings) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", domain.ErrEmbedding, idx)
		}
		if len(data.Embedding) != e.dimension {
			return nil, fmt.Errorf("%w: %w: model returned %d dimensions, expected %d",
				domain.ErrEmbedding, domain.ErrDimensionMismatch, len(data.Embedding), e.dimension)
		}
		vec := make([]float32, len(data.Embedding))
		for j, v := range data.Embedding {
			vec[j] = float32(v)
		}
		embeddings[idx] = vec
	}

	for i, vec := range embeddings {
		if vec == nil {
			return nil, fmt.Errorf("%w: missing embedding for input %d", domain.ErrEmbedding, i)
		}
	}

	return embeddings, nil
}

func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}
