package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Store.Dir != "scirag_db" {
		t.Errorf("expected Store.Dir=scirag_db, got %s", cfg.Store.Dir)
	}
	if cfg.Ingest.BatchSize != 100 {
		t.Errorf("expected BatchSize=100, got %d", cfg.Ingest.BatchSize)
	}
	if !cfg.Filter.Enabled {
		t.Error("expected category filter enabled by default")
	}
	if cfg.Embedding.Provider != "hash" || cfg.Embedding.Dimension != 0 {
		t.Errorf("unexpected embedding defaults: %+v", cfg.Embedding)
	}
	if cfg.Retrieve.TopK != 5 {
		t.Errorf("expected TopK=5, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Retrieve.Overfetch != 3 {
		t.Errorf("expected Overfetch=3, got %d", cfg.Retrieve.Overfetch)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "scirag.yaml")

	content := `
ingest:
  batch_size: 16
  recursive: true
filter:
  enabled: false
retrieve:
  top_k: 10
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Ingest.BatchSize != 16 {
		t.Errorf("expected BatchSize=16, got %d", cfg.Ingest.BatchSize)
	}
	if !cfg.Ingest.Recursive {
		t.Error("expected Recursive=true")
	}
	if cfg.Filter.Enabled {
		t.Error("expected Filter.Enabled=false")
	}
	if cfg.Retrieve.TopK != 10 {
		t.Errorf("expected TopK=10, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Ingest.Workers != 4 {
		t.Errorf("unset fields should keep defaults, got Workers=%d", cfg.Ingest.Workers)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scirag.yaml")
	if err := os.WriteFile(path, []byte("ingest: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmpDir, ".scirag"), 0755); err != nil {
		t.Fatal(err)
	}

	content := `
retrieve:
  token_budget: 8000
`
	if err := os.WriteFile(filepath.Join(tmpDir, ".scirag", "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Retrieve.TokenBudget != 8000 {
		t.Errorf("expected TokenBudget=8000, got %d", cfg.Retrieve.TokenBudget)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scirag.yaml")
	cfg := DefaultConfig()
	cfg.Filter.Categories = []string{"Genomics"}

	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Filter.Categories) != 1 || loaded.Filter.Categories[0] != "Genomics" {
		t.Errorf("categories not persisted: %v", loaded.Filter.Categories)
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	if err := LoadEnv(dir); err != nil {
		t.Errorf("missing .env should not fail: %v", err)
	}

	t.Setenv("SCIRAG_TEST_PRESET", "kept")
	env := "SCIRAG_TEST_KEY=from-file\nSCIRAG_TEST_PRESET=overridden\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("SCIRAG_TEST_KEY") })

	if err := LoadEnv(dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := os.Getenv("SCIRAG_TEST_KEY"); got != "from-file" {
		t.Errorf("expected value from .env, got %q", got)
	}
	if got := os.Getenv("SCIRAG_TEST_PRESET"); got != "kept" {
		t.Errorf("existing variables must not be overridden, got %q", got)
	}
}

func TestStoreDBPath(t *testing.T) {
	path := StoreDBPath("/data/scirag_db")
	expected := filepath.Join("/data/scirag_db", "store.db")
	if path != expected {
		t.Errorf("expected %s, got %s", expected, path)
	}
}

func TestComputeConfigHash(t *testing.T) {
	a := DefaultConfig()
	b := DefaultConfig()
	if ComputeConfigHash(a) != ComputeConfigHash(b) {
		t.Error("equal configs should hash equally")
	}

	b.Chunk.Noise = "boilerplate"
	if ComputeConfigHash(a) == ComputeConfigHash(b) {
		t.Error("chunk settings should change the hash")
	}

	c := DefaultConfig()
	c.Retrieve.TopK = 50
	if ComputeConfigHash(a) != ComputeConfigHash(c) {
		t.Error("retrieval settings should not change the hash")
	}
}
