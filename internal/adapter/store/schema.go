package store

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"scirag/internal/domain"
)

// CurrentSchemaVersion is the current schema version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

var (
	bucketMeta    = []byte("meta")
	bucketRecords = []byte("records")

	keySchemaVersion = []byte("schema_version")
	keyDimension     = []byte("dimension")
	keyMetric        = []byte("metric")
	keyModel         = []byte("model")
	keyCreatedAt     = []byte("created_at")
	keyLastRun       = []byte("last_run")
	keyConfigHash    = []byte("config_hash")
)

// SchemaInfo is the persisted description of a store.
type SchemaInfo struct {
	Version    int
	Dimension  int
	Metric     string
	Model      string
	CreatedAt  string
	LastRun    string
	ConfigHash string
}

// readSchemaInfo reports ok=false for a store that was never initialized.
func readSchemaInfo(tx *bbolt.Tx) (SchemaInfo, bool, error) {
	var info SchemaInfo
	b := tx.Bucket(bucketMeta)
	if b == nil {
		return info, false, nil
	}

	versionData := b.Get(keySchemaVersion)
	if versionData == nil {
		return info, false, nil
	}
	if err := json.Unmarshal(versionData, &info.Version); err != nil {
		return info, false, fmt.Errorf("corrupt schema version: %w", err)
	}
	if data := b.Get(keyDimension); data != nil {
		if err := json.Unmarshal(data, &info.Dimension); err != nil {
			return info, false, fmt.Errorf("corrupt dimension: %w", err)
		}
	}

	info.Metric = string(b.Get(keyMetric))
	info.Model = string(b.Get(keyModel))
	info.CreatedAt = string(b.Get(keyCreatedAt))
	info.LastRun = string(b.Get(keyLastRun))
	info.ConfigHash = string(b.Get(keyConfigHash))
	return info, true, nil
}

func writeSchemaInfo(tx *bbolt.Tx, info SchemaInfo) error {
	b := tx.Bucket(bucketMeta)

	versionData, err := json.Marshal(info.Version)
	if err != nil {
		return err
	}
	dimData, err := json.Marshal(info.Dimension)
	if err != nil {
		return err
	}

	pairs := []struct {
		key   []byte
		value []byte
	}{
		{keySchemaVersion, versionData},
		{keyDimension, dimData},
		{keyMetric, []byte(info.Metric)},
		{keyModel, []byte(info.Model)},
		{keyCreatedAt, []byte(info.CreatedAt)},
		{keyLastRun, []byte(info.LastRun)},
		{keyConfigHash, []byte(info.ConfigHash)},
	}
	for _, p := range pairs {
		if err := b.Put(p.key, p.value); err != nil {
			return err
		}
	}
	return nil
}

// checkSchema validates a persisted store against the opening provider.
// Stores written by a newer version are refused; there is no migration path.
func checkSchema(info SchemaInfo, opts Options) error {
	if info.Version > CurrentSchemaVersion {
		return fmt.Errorf("%w: database created by newer version (v%d > v%d)", domain.ErrStore, info.Version, CurrentSchemaVersion)
	}
	if opts.Dimension != 0 && info.Dimension != opts.Dimension {
		return fmt.Errorf("%w: store has %d dimensions, embedder produces %d", domain.ErrDimensionMismatch, info.Dimension, opts.Dimension)
	}
	if info.Metric != opts.Metric {
		return fmt.Errorf("%w: store uses %q, requested %q", domain.ErrMetricMismatch, info.Metric, opts.Metric)
	}
	if opts.Model != "" && info.Model != "" && info.Model != opts.Model {
		return fmt.Errorf("%w: store was built with %q, embedder is %q", domain.ErrModelMismatch, info.Model, opts.Model)
	}
	return nil
}

// SchemaInfo returns the store description read at open time.
func (s *VectorStore) SchemaInfo() SchemaInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// ConfigChanged reports whether the chunking configuration differs from the
// one recorded at creation. Stores without a recorded hash never report a change.
func (s *VectorStore) ConfigChanged(hash string) bool {
	info := s.SchemaInfo()
	return info.ConfigHash != "" && hash != "" && info.ConfigHash != hash
}

// SetLastRun records the identifier and time of the latest ingestion run.
func (s *VectorStore) SetLastRun(runID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lastRun := fmt.Sprintf("%s %s", at.UTC().Format(time.RFC3339), runID)
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(keyLastRun, []byte(lastRun))
	})
	if err != nil {
		return fmt.Errorf("%w: failed to record run: %v", domain.ErrStore, err)
	}
	s.info.LastRun = lastRun
	return nil
}
