package memstore

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"

	"scirag/internal/adapter/similarity"
	"scirag/internal/domain"
)

// MemoryStore is a non-durable VectorStore used by tests and dry runs.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	model     string
	records   map[string]domain.StoreRecord
}

func NewMemoryStore(dimension int, model string) *MemoryStore {
	return &MemoryStore{
		dimension: dimension,
		model:     model,
		records:   make(map[string]domain.StoreRecord),
	}
}

func (s *MemoryStore) Upsert(ctx context.Context, records []domain.StoreRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	copies := make([]domain.StoreRecord, len(records))
	for i, rec := range records {
		if rec.ID == "" || strings.TrimSpace(rec.Content) == "" {
			return fmt.Errorf("%w: record %q has no id or content", domain.ErrStore, rec.ID)
		}
		if len(rec.Embedding) != s.dimension {
			return fmt.Errorf("%w: record %s has %d dimensions, expected %d", domain.ErrDimensionMismatch, rec.ID, len(rec.Embedding), s.dimension)
		}
		rec.Embedding = append([]float32(nil), rec.Embedding...)
		copies[i] = rec
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range copies {
		s.records[rec.ID] = rec
	}
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, vector []float32, k int, filter domain.Filter) ([]domain.StoreHit, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d", domain.ErrDimensionMismatch, len(vector), s.dimension)
	}
	if k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []domain.StoreHit
	for id := range s.records {
		rec := s.records[id]
		if !filter.Match(&rec) {
			continue
		}
		hits = append(hits, domain.StoreHit{
			ID:        rec.ID,
			Content:   rec.Content,
			Kind:      rec.Kind,
			SectionID: rec.SectionID,
			Metadata:  rec.Metadata,
			Distance:  similarity.Distance(vector, rec.Embedding),
		})
	}
	return similarity.Rank(hits, k), nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (domain.StoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return domain.StoreRecord{}, fmt.Errorf("%w: record %s", domain.ErrNotFound, id)
	}
	rec.Embedding = append([]float32(nil), rec.Embedding...)
	rec.Metadata.Subjects = append([]string(nil), rec.Metadata.Subjects...)
	return rec, nil
}

func (s *MemoryStore) Stats(ctx context.Context) (domain.StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := domain.AggregateStats(maps.Values(s.records))
	stats.Dimension = s.dimension
	stats.Metric = similarity.Metric
	stats.Model = s.model
	return stats, nil
}

func (s *MemoryStore) DeleteByFilter(ctx context.Context, filter domain.Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id := range s.records {
		rec := s.records[id]
		if filter.Match(&rec) {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
