package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"scirag/internal/adapter/analyzer"
)

const DefaultHashDimension = 768

const bigramWeight = 0.5

// HashEmbedder is an offline embedder built on signed feature hashing of
// token unigrams and bigrams. Vectors are L2-normalized and deterministic.
type HashEmbedder struct {
	dimension int
	maxTokens int
	tokenizer *analyzer.Tokenizer
}

func NewHashEmbedder(dimension, maxInputTokens int) *HashEmbedder {
	if dimension <= 0 {
		dimension = DefaultHashDimension
	}
	return &HashEmbedder{
		dimension: dimension,
		maxTokens: maxInputTokens,
		tokenizer: analyzer.NewTokenizer(),
	}
}

func (e *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors[i] = e.vector(e.tokenizer.Truncate(text, e.maxTokens))
	}
	return vectors, nil
}

func (e *HashEmbedder) vector(text string) []float32 {
	acc := make([]float64, e.dimension)
	tokens := e.tokenizer.Tokenize(text)

	for i, tok := range tokens {
		e.add(acc, tok, 1)
		if i+1 < len(tokens) {
			e.add(acc, tok+" "+tokens[i+1], bigramWeight)
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	out := make([]float32, e.dimension)
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i, v := range acc {
		out[i] = float32(v / norm)
	}
	return out
}

func (e *HashEmbedder) add(acc []float64, feature string, weight float64) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()

	idx := int(sum % uint64(e.dimension))
	if sum>>63 == 1 {
		weight = -weight
	}
	acc[idx] += weight
}

func (e *HashEmbedder) Dimension() int {
	return e.dimension
}

func (e *HashEmbedder) ModelName() string {
	return fmt.Sprintf("hash-%d", e.dimension)
}
