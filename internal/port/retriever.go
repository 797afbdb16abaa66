package port

import (
	"context"

	"scirag/internal/domain"
)

// Retriever answers a free-text query with ranked passages.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int, filter domain.Filter) (domain.RetrievalResult, error)
}
