package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"scirag/internal/domain"
)

type countingRetriever struct {
	calls int
	err   error
}

func (r *countingRetriever) Retrieve(ctx context.Context, query string, k int, filter domain.Filter) (domain.RetrievalResult, error) {
	r.calls++
	if r.err != nil {
		return domain.RetrievalResult{}, r.err
	}
	return domain.RetrievalResult{
		Query:    query,
		Passages: []domain.Passage{{ChunkID: query, Similarity: 0.9}},
	}, nil
}

func TestQueryCache_GetPut(t *testing.T) {
	c := NewQueryCache(10, time.Minute)

	if _, ok := c.Get("crispr", 5, ""); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Put("crispr", 5, "", domain.RetrievalResult{Query: "crispr"})
	got, ok := c.Get("crispr", 5, "")
	if !ok || got.Query != "crispr" {
		t.Errorf("expected hit, got %v %v", got, ok)
	}

	if _, ok := c.Get("crispr", 3, ""); ok {
		t.Error("different k must miss")
	}
	if _, ok := c.Get("crispr", 5, "subject=Genomics"); ok {
		t.Error("different filter key must miss")
	}
}

func TestQueryCache_LRUEviction(t *testing.T) {
	c := NewQueryCache(2, time.Minute)

	c.Put("a", 1, "", domain.RetrievalResult{Query: "a"})
	c.Put("b", 1, "", domain.RetrievalResult{Query: "b"})
	c.Get("a", 1, "")
	c.Put("c", 1, "", domain.RetrievalResult{Query: "c"})

	if _, ok := c.Get("b", 1, ""); ok {
		t.Error("least recently used entry should be evicted")
	}
	if _, ok := c.Get("a", 1, ""); !ok {
		t.Error("recently used entry should survive")
	}
	if c.Size() != 2 {
		t.Errorf("expected size 2, got %d", c.Size())
	}
}

func TestQueryCache_TTL(t *testing.T) {
	c := NewQueryCache(10, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Put("a", 1, "", domain.RetrievalResult{Query: "a"})
	now = now.Add(2 * time.Minute)

	if _, ok := c.Get("a", 1, ""); ok {
		t.Error("expired entry should miss")
	}
	if c.Size() != 0 {
		t.Error("expired entry should be removed")
	}
}

func TestQueryCache_Invalidate(t *testing.T) {
	c := NewQueryCache(10, time.Minute)
	c.Put("a", 1, "", domain.RetrievalResult{Query: "a"})

	c.Invalidate()
	if _, ok := c.Get("a", 1, ""); ok {
		t.Error("invalidated entry should miss")
	}
}

func TestCachedRetriever(t *testing.T) {
	inner := &countingRetriever{}
	r := NewCachedRetriever(inner, NewQueryCache(10, time.Minute))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := r.Retrieve(ctx, "crispr", 5, nil); err != nil {
			t.Fatal(err)
		}
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 underlying call, got %d", inner.calls)
	}

	filter := domain.BySubject("Genomics")
	r.Retrieve(ctx, "crispr", 5, filter)
	r.Retrieve(ctx, "crispr", 5, filter)
	if inner.calls != 3 {
		t.Errorf("filtered queries bypass the cache, got %d calls", inner.calls)
	}

	r.RetrieveKeyed(ctx, "crispr", 5, filter, "subject=genomics")
	r.RetrieveKeyed(ctx, "crispr", 5, filter, "subject=genomics")
	if inner.calls != 4 {
		t.Errorf("keyed filtered queries are cached, got %d calls", inner.calls)
	}

	r.Invalidate()
	r.Retrieve(ctx, "crispr", 5, nil)
	if inner.calls != 5 {
		t.Errorf("expected refetch after invalidation, got %d calls", inner.calls)
	}
}

func TestCachedRetriever_ErrorsNotCached(t *testing.T) {
	inner := &countingRetriever{err: errors.New("boom")}
	r := NewCachedRetriever(inner, NewQueryCache(10, time.Minute))

	for i := 0; i < 2; i++ {
		if _, err := r.Retrieve(context.Background(), "q", 1, nil); err == nil {
			t.Fatal("expected error")
		}
	}
	if inner.calls != 2 {
		t.Errorf("errors must not be cached, got %d calls", inner.calls)
	}
}
