package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"scirag/config"
	"scirag/internal/adapter/analyzer"
	"scirag/internal/adapter/cache"
	"scirag/internal/adapter/chunker"
	"scirag/internal/adapter/embedding"
	"scirag/internal/adapter/filter"
	"scirag/internal/adapter/store"
	"scirag/internal/domain"
	"scirag/internal/port"
	"scirag/internal/usecase"
)

// storeDir resolves the store directory: a command's own flag, then --store,
// then the config. Relative paths are taken from the root directory.
func storeDir(override string) string {
	dir := GetConfig().Store.Dir
	switch {
	case override != "":
		dir = override
	case storePath != "":
		dir = storePath
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(GetRootDir(), dir)
	}
	return dir
}

func newEmbedder() (port.Embedder, error) {
	emb, err := embedding.NewFromConfig(GetConfig().Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return emb, nil
}

func newChunker() (*chunker.ArticleChunker, error) {
	c := GetConfig().Chunk
	noise, err := chunker.NoiseByName(c.Noise)
	if err != nil {
		return nil, err
	}
	return chunker.New(
		chunker.WithNoiseFilter(noise),
		chunker.WithMaxSectionChars(c.MaxSectionChars),
		chunker.WithIncludeUntitledSections(c.IncludeUntitledSections),
	), nil
}

// keepSet resolves the category keep set: an explicit file, then the
// configured file, then the configured list, then the built-in defaults.
func keepSet(file string) ([]string, error) {
	f := GetConfig().Filter
	if file == "" {
		file = f.CategoriesFile
	}
	if file != "" {
		return filter.LoadKeepFile(file)
	}
	if len(f.Categories) > 0 {
		return filter.Dedupe(f.Categories), nil
	}
	return filter.DefaultCategories, nil
}

// openStore opens the store under dir for emb. Unless create is set the store
// must already exist. A nil emb opens for inspection and adopts the stored dimension.
func openStore(dir string, emb port.Embedder, create bool) (*store.VectorStore, error) {
	dbPath := config.StoreDBPath(dir)
	if !create {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("no store found at %s. Run 'scirag build' first", dbPath)
		}
	}

	opts := store.Options{ConfigHash: config.ComputeConfigHash(GetConfig())}
	if emb != nil {
		opts.Dimension = emb.Dimension()
		opts.Model = emb.ModelName()
	}
	st, err := store.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}

// newRetriever builds the retrieval engine, wrapped in a query cache when one is configured.
func newRetriever(emb port.Embedder, st port.VectorStore) port.Retriever {
	r := GetConfig().Retrieve
	var retriever port.Retriever = usecase.NewRetrieveUseCase(emb, st, usecase.RetrieveOptions{
		Overfetch:     r.Overfetch,
		MinSimilarity: r.MinSimilarity,
	})
	if r.CacheSize > 0 {
		ttl := time.Duration(r.CacheTTLSeconds) * time.Second
		retriever = cache.NewCachedRetriever(retriever, cache.NewQueryCache(r.CacheSize, ttl))
	}
	return retriever
}

// session bundles what the read-side commands need.
type session struct {
	store     *store.VectorStore
	retriever port.Retriever
	answers   *usecase.ContextUseCase
}

func openSession(dir string) (*session, error) {
	emb, err := newEmbedder()
	if err != nil {
		return nil, err
	}
	st, err := openStore(dir, emb, false)
	if err != nil {
		return nil, err
	}
	return newSession(emb, st), nil
}

func newSession(emb port.Embedder, st *store.VectorStore) *session {
	retriever := newRetriever(emb, st)
	return &session{
		store:     st,
		retriever: retriever,
		answers:   usecase.NewContextUseCase(retriever, analyzer.NewTokenizer()),
	}
}

// ingest writes into the session's store and drops cached query results,
// which no longer reflect its contents.
func (s *session) ingest(ctx context.Context, uc *usecase.IngestUseCase, dir string, opts usecase.IngestOptions) (domain.IngestStats, error) {
	stats, err := uc.Ingest(ctx, dir, opts)
	if c, ok := s.retriever.(*cache.CachedRetriever); ok {
		c.Invalidate()
	}
	return stats, err
}

func (s *session) Close() error {
	return s.store.Close()
}
