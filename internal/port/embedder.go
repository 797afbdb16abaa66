package port

import (
	"context"

	"scirag/internal/domain"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// VectorStore persists records and answers filtered nearest-neighbour queries.
type VectorStore interface {
	// Upsert writes records; an existing ID is replaced whole.
	Upsert(ctx context.Context, records []domain.StoreRecord) error

	// Query returns at most k records matching filter, by ascending cosine distance.
	Query(ctx context.Context, vector []float32, k int, filter domain.Filter) ([]domain.StoreHit, error)

	// Get returns a single record by ID.
	Get(ctx context.Context, id string) (domain.StoreRecord, error)

	// Stats aggregates over all persisted records.
	Stats(ctx context.Context) (domain.StoreStats, error)

	// DeleteByFilter removes matching records and returns how many were removed.
	DeleteByFilter(ctx context.Context, filter domain.Filter) (int, error)

	Close() error
}
