package usecase

import (
	"context"
	"fmt"
	"strings"

	"scirag/internal/adapter/similarity"
	"scirag/internal/domain"
	"scirag/internal/port"
)

const defaultOverfetch = 3

// RetrieveOptions tunes candidate selection.
type RetrieveOptions struct {
	// Overfetch multiplies k when querying the store so deduplication
	// still leaves k distinct passages.
	Overfetch int
	// MinSimilarity drops passages below this score (0 = disabled).
	MinSimilarity float64
}

// RetrieveUseCase answers free-text queries against the vector store.
type RetrieveUseCase struct {
	embedder      port.Embedder
	store         port.VectorStore
	overfetch     int
	minSimilarity float64
}

// NewRetrieveUseCase creates a new retrieve use case.
func NewRetrieveUseCase(embedder port.Embedder, store port.VectorStore, opts RetrieveOptions) *RetrieveUseCase {
	if opts.Overfetch < 1 {
		opts.Overfetch = defaultOverfetch
	}
	return &RetrieveUseCase{
		embedder:      embedder,
		store:         store,
		overfetch:     opts.Overfetch,
		minSimilarity: opts.MinSimilarity,
	}
}

// Retrieve embeds the query, searches the store and returns at most k
// deduplicated passages ordered by descending similarity.
func (u *RetrieveUseCase) Retrieve(ctx context.Context, query string, k int, filter domain.Filter) (domain.RetrievalResult, error) {
	result := domain.RetrievalResult{Query: query, Passages: []domain.Passage{}}

	if strings.TrimSpace(query) == "" {
		return result, domain.ErrEmptyQuery
	}
	if k <= 0 {
		return result, nil
	}

	vectors, err := u.embedder.Embed(ctx, []string{query})
	if err != nil {
		return result, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return result, fmt.Errorf("%w: expected 1 query vector, got %d", domain.ErrEmbedding, len(vectors))
	}

	hits, err := u.store.Query(ctx, vectors[0], k*u.overfetch, filter)
	if err != nil {
		return result, fmt.Errorf("failed to query store: %w", err)
	}

	result.Passages = u.rank(hits, k)
	return result, nil
}

// rank converts distances to similarities, keeps the best passage per
// article section and applies the threshold. hits arrive in ascending distance.
func (u *RetrieveUseCase) rank(hits []domain.StoreHit, k int) []domain.Passage {
	seen := make(map[string]struct{}, len(hits))
	passages := make([]domain.Passage, 0, k)

	for _, h := range hits {
		key := dedupKey(h.Kind, h.Metadata)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		sim := similarity.FromDistance(h.Distance)
		if u.minSimilarity > 0 && sim < u.minSimilarity {
			// Remaining hits are no closer.
			break
		}

		passages = append(passages, domain.Passage{
			ChunkID:    h.ID,
			Content:    h.Content,
			Kind:       h.Kind,
			SectionID:  h.SectionID,
			Metadata:   h.Metadata,
			Similarity: sim,
			Distance:   h.Distance,
		})
		if len(passages) == k {
			break
		}
	}
	return passages
}

// dedupKey identifies an article section. The abstract is keyed apart from
// sections so an untitled section never shadows it.
func dedupKey(kind domain.ChunkKind, m domain.ChunkMetadata) string {
	if kind == domain.KindAbstract {
		return articleKey(m) + "\x00" + string(domain.KindAbstract)
	}
	return articleKey(m) + "\x00" + m.SectionTitle
}

// articleKey identifies an article. Articles without a DOI fall back to their title.
func articleKey(m domain.ChunkMetadata) string {
	if m.DOI != "" {
		return strings.ToLower(m.DOI)
	}
	return "title:" + m.Title
}
