package store

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"scirag/internal/adapter/similarity"
	"scirag/internal/domain"
	"scirag/internal/logger"
)

// Options describe the embedder a store is opened for.
type Options struct {
	// Dimension of stored vectors. Zero adopts the persisted dimension
	// (read-only inspection such as stats).
	Dimension  int
	Metric     string
	Model      string
	ConfigHash string
	// Timeout waits for the file lock held by another process.
	Timeout time.Duration
}

// VectorStore implements port.VectorStore on BoltDB.
// Uses brute-force search over an in-memory copy of all records.
type VectorStore struct {
	db      *bbolt.DB
	path    string
	mu      sync.RWMutex
	info    SchemaInfo
	records map[string]domain.StoreRecord
}

// Open opens or creates the store at path and validates it against opts.
func Open(path string, opts Options) (*VectorStore, error) {
	if opts.Metric == "" {
		opts.Metric = similarity.Metric
	}
	if opts.Metric != similarity.Metric {
		return nil, fmt.Errorf("%w: unsupported metric %q", domain.ErrMetricMismatch, opts.Metric)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create store directory: %v", domain.ErrStore, err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: opts.Timeout})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open bolt db: %v", domain.ErrStore, err)
	}

	s := &VectorStore{
		db:      db,
		path:    path,
		records: make(map[string]domain.StoreRecord),
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketMeta, bucketRecords} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}

		info, exists, err := readSchemaInfo(tx)
		if err != nil {
			return err
		}
		if exists {
			if err := checkSchema(info, opts); err != nil {
				return err
			}
			s.info = info
			return nil
		}

		if opts.Dimension <= 0 {
			return fmt.Errorf("%w: dimension is required to create a store", domain.ErrStore)
		}
		s.info = SchemaInfo{
			Version:    CurrentSchemaVersion,
			Dimension:  opts.Dimension,
			Metric:     opts.Metric,
			Model:      opts.Model,
			CreatedAt:  time.Now().UTC().Format(time.RFC3339),
			ConfigHash: opts.ConfigHash,
		}
		return writeSchemaInfo(tx, s.info)
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	if err := s.loadRecords(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to load records: %v", domain.ErrStore, err)
	}

	logger.Debug("store opened", "path", path, "records", len(s.records), "dimension", s.info.Dimension, "model", s.info.Model)
	return s, nil
}

// loadRecords loads all records from BoltDB into memory.
func (s *VectorStore) loadRecords() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRecords).ForEach(func(k, v []byte) error {
			var rec domain.StoreRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				logger.Warn("skipping corrupt record", "id", string(k), "error", err)
				return nil
			}
			if len(rec.Embedding) != s.info.Dimension {
				logger.Warn("skipping record with wrong dimension", "id", string(k), "dimension", len(rec.Embedding))
				return nil
			}
			s.records[string(k)] = rec
			return nil
		})
	})
}

func (s *VectorStore) Path() string {
	return s.path
}

func (s *VectorStore) Dimension() int {
	return s.info.Dimension
}

// Upsert validates every record, then writes them in one transaction. The
// in-memory index changes only after the transaction commits.
func (s *VectorStore) Upsert(ctx context.Context, records []domain.StoreRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	encoded := make([][]byte, len(records))
	copies := make([]domain.StoreRecord, len(records))
	for i, rec := range records {
		if err := validateRecord(rec, s.info.Dimension); err != nil {
			return err
		}
		rec.Embedding = append([]float32(nil), rec.Embedding...)
		rec.Metadata.Subjects = append([]string(nil), rec.Metadata.Subjects...)
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("%w: failed to encode record %s: %v", domain.ErrStore, rec.ID, err)
		}
		encoded[i] = data
		copies[i] = rec
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRecords)
		for i, rec := range copies {
			if err := b.Put([]byte(rec.ID), encoded[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: upsert failed: %v", domain.ErrStore, err)
	}

	for _, rec := range copies {
		s.records[rec.ID] = rec
	}
	return nil
}

func validateRecord(rec domain.StoreRecord, dimension int) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: record without id", domain.ErrStore)
	}
	if strings.TrimSpace(rec.Content) == "" {
		return fmt.Errorf("%w: record %s has empty content", domain.ErrStore, rec.ID)
	}
	if !rec.Kind.IsValid() {
		return fmt.Errorf("%w: record %s has unknown kind %q", domain.ErrStore, rec.ID, rec.Kind)
	}
	if len(rec.Embedding) != dimension {
		return fmt.Errorf("%w: record %s has %d dimensions, expected %d", domain.ErrDimensionMismatch, rec.ID, len(rec.Embedding), dimension)
	}
	return nil
}

// Query returns the k records closest to vector that match filter.
func (s *VectorStore) Query(ctx context.Context, vector []float32, k int, filter domain.Filter) ([]domain.StoreHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(vector) != s.info.Dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d", domain.ErrDimensionMismatch, len(vector), s.info.Dimension)
	}
	if k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]domain.StoreHit, 0, len(s.records))
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

func (s *VectorStore) Get(ctx context.Context, id string) (domain.StoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return domain.StoreRecord{}, fmt.Errorf("%w: record %s", domain.ErrNotFound, id)
	}
	rec.Embedding = append([]float32(nil), rec.Embedding...)
	return rec, nil
}

func (s *VectorStore) Stats(ctx context.Context) (domain.StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := domain.AggregateStats(maps.Values(s.records))
	stats.Dimension = s.info.Dimension
	stats.Metric = s.info.Metric
	stats.Model = s.info.Model
	stats.SchemaVersion = s.info.Version
	stats.LastRun = s.info.LastRun
	return stats, nil
}

// DeleteByFilter removes every record matching filter. A nil filter removes all records.
func (s *VectorStore) DeleteByFilter(ctx context.Context, filter domain.Filter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id := range s.records {
		rec := s.records[id]
		if filter.Match(&rec) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRecords)
		for _, id := range ids {
			if err := b.Delete([]byte(id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: delete failed: %v", domain.ErrStore, err)
	}

	for _, id := range ids {
		delete(s.records, id)
	}
	return len(ids), nil
}

func (s *VectorStore) Close() error {
	return s.db.Close()
}
