package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"scirag/internal/adapter/filter"
	"scirag/internal/adapter/fs"
	"scirag/internal/domain"
	"scirag/internal/logger"
	"scirag/internal/port"
)

const (
	defaultBatchSize = 100
	defaultQueueSize = 256
)

// IngestOptions controls one ingestion run.
type IngestOptions struct {
	Recursive       bool
	MaxFiles        int // 0 = unlimited
	BatchSize       int
	Workers         int
	QueueSize       int
	CheckCategories bool
	Keep            []string
	// Progress is called once per file after it has been parsed and chunked.
	Progress func(done, total int)
}

// IngestUseCase walks a directory of article XML and writes embedded chunks to the store.
type IngestUseCase struct {
	parser   port.ArticleParser
	chunker  port.Chunker
	embedder port.Embedder
	store    port.VectorStore
}

// NewIngestUseCase creates a new ingest use case.
func NewIngestUseCase(
	parser port.ArticleParser,
	chunker port.Chunker,
	embedder port.Embedder,
	store port.VectorStore,
) *IngestUseCase {
	return &IngestUseCase{
		parser:   parser,
		chunker:  chunker,
		embedder: embedder,
		store:    store,
	}
}

// runRecorder is implemented by stores that persist run metadata.
type runRecorder interface {
	SetLastRun(runID string, at time.Time) error
}

type fileResult struct {
	path    string
	chunked *domain.ChunkedArticle
	err     error
}

// Ingest processes every XML file under dir. Per-file parse failures and
// embedding failures are counted in the returned stats; setup failures, store
// write failures and embedder dimension mismatches return an error.
func (u *IngestUseCase) Ingest(ctx context.Context, dir string, opts IngestOptions) (domain.IngestStats, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}

	stats := domain.IngestStats{RunID: uuid.NewString()}
	log := logger.With("run_id", stats.RunID)

	files, err := fs.NewXMLWalker(opts.Recursive).Walk(ctx, dir)
	if err != nil {
		return stats, fmt.Errorf("failed to walk directory: %w", err)
	}
	if opts.MaxFiles > 0 && len(files) > opts.MaxFiles {
		files = files[:opts.MaxFiles]
	}
	log.Info("ingestion started", "dir", dir, "files", len(files), "batch_size", opts.BatchSize, "workers", opts.Workers)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	paths := make(chan string)
	results := make(chan fileResult, opts.QueueSize)

	g.Go(func() error {
		defer close(paths)
		for _, f := range files {
			select {
			case paths <- f.Path:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	var workers sync.WaitGroup
	for i := 0; i < opts.Workers; i++ {
		workers.Add(1)
		g.Go(func() error {
			defer workers.Done()
			for path := range paths {
				r := u.processFile(path, opts)
				select {
				case results <- r:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		workers.Wait()
		close(results)
	}()

	var (
		pending  []domain.Chunk
		storeErr error
		done     int
	)
	for r := range results {
		if storeErr != nil {
			continue
		}
		done++

		switch {
		case r.err != nil:
			stats.Errors++
			stats.FileErrors = append(stats.FileErrors, domain.FileError{Path: r.path, Err: r.err.Error()})
			log.Warn("failed to parse article", "file", r.path, "error", r.err)
		case r.chunked == nil:
			stats.Filtered++
			log.Debug("article filtered out", "file", r.path)
		default:
			stats.Processed++
			pending = append(pending, r.chunked.Chunks...)
			if opts.CheckCategories {
				log.Debug("article accepted", "file", r.path,
					"matched", filter.Matching(r.chunked.Metadata.Subjects, opts.Keep))
			}
		}

		for len(pending) >= opts.BatchSize && storeErr == nil {
			storeErr = u.flush(ctx, pending[:opts.BatchSize], &stats, log)
			pending = pending[opts.BatchSize:]
		}
		if storeErr != nil {
			cancel()
			continue
		}

		if opts.Progress != nil {
			opts.Progress(done, len(files))
		}
	}

	if err := g.Wait(); err != nil && storeErr == nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return stats, ctxErr
		}
		return stats, err
	}
	if storeErr != nil {
		log.Error("ingestion aborted", "error", storeErr)
		return stats, storeErr
	}

	if len(pending) > 0 {
		if err := u.flush(ctx, pending, &stats, log); err != nil {
			log.Error("ingestion aborted", "error", err)
			return stats, err
		}
	}

	if rec, ok := u.store.(runRecorder); ok {
		if err := rec.SetLastRun(stats.RunID, time.Now()); err != nil {
			return stats, err
		}
	}

	log.Info("ingestion complete",
		"processed", stats.Processed,
		"filtered", stats.Filtered,
		"errors", stats.Errors,
		"chunks", stats.TotalChunks,
		"embedding_errors", stats.EmbeddingErrors,
		"dropped_chunks", stats.DroppedChunks,
	)
	return stats, nil
}

func (u *IngestUseCase) processFile(path string, opts IngestOptions) fileResult {
	article, err := u.parser.ParseFile(path)
	if err != nil {
		return fileResult{path: path, err: err}
	}
	return fileResult{path: path, chunked: u.chunker.Chunk(article, opts.Keep, opts.CheckCategories)}
}

// flush embeds and writes one batch. Embedding failures are retried once and
// then counted. A dimension mismatch is a configuration error and is returned
// without retrying, as is any store failure.
func (u *IngestUseCase) flush(ctx context.Context, batch []domain.Chunk, stats *domain.IngestStats, log *slog.Logger) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Content
	}

	vectors, err := u.embed(ctx, texts)
	if errors.Is(err, domain.ErrDimensionMismatch) {
		return fmt.Errorf("embedding model %s misconfigured: %w", u.embedder.ModelName(), err)
	}
	if err != nil {
		log.Warn("embedding failed, retrying batch", "chunks", len(batch), "error", err)
		vectors, err = u.embed(ctx, texts)
	}
	if errors.Is(err, domain.ErrDimensionMismatch) {
		return fmt.Errorf("embedding model %s misconfigured: %w", u.embedder.ModelName(), err)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		stats.EmbeddingErrors++
		stats.DroppedChunks += len(batch)
		log.Warn("dropping batch after embedding retry", "chunks", len(batch), "error", err)
		return nil
	}

	records := make([]domain.StoreRecord, len(batch))
	for i, c := range batch {
		records[i] = domain.RecordFromChunk(c, vectors[i])
	}

	if err := u.store.Upsert(ctx, records); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, domain.ErrStore) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrStore, err)
	}
	stats.TotalChunks += len(records)
	return nil
}

func (u *IngestUseCase) embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := u.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d vectors, got %d", domain.ErrEmbedding, len(texts), len(vectors))
	}
	want := u.embedder.Dimension()
	for i, v := range vectors {
		if len(v) != want {
			return nil, fmt.Errorf("%w: %w: vector %d has %d dimensions, expected %d",
				domain.ErrEmbedding, domain.ErrDimensionMismatch, i, len(v), want)
		}
	}
	return vectors, nil
}
