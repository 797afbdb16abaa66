package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for scirag.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Filter    FilterConfig    `yaml:"filter"`
	Chunk     ChunkConfig     `yaml:"chunk"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StoreConfig holds vector store configuration.
type StoreConfig struct {
	Dir string `yaml:"dir"` // directory holding store.db
}

// IngestConfig holds ingestion configuration.
type IngestConfig struct {
	Recursive bool `yaml:"recursive"`
	MaxFiles  int  `yaml:"max_files"` // 0 = unlimited
	BatchSize int  `yaml:"batch_size"`
	Workers   int  `yaml:"workers"`
	QueueSize int  `yaml:"queue_size"`
}

// FilterConfig holds category filter configuration.
type FilterConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Categories     []string `yaml:"categories"`      // overrides the default keep set when non-empty
	CategoriesFile string   `yaml:"categories_file"` // YAML list, takes precedence over Categories
}

// ChunkConfig holds chunking configuration.
type ChunkConfig struct {
	Noise                   string `yaml:"noise"` // "alnum", "boilerplate", "none"
	MaxSectionChars         int    `yaml:"max_section_chars"`
	IncludeUntitledSections bool   `yaml:"include_untitled_sections"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider          string  `yaml:"provider"` // "hash", "openai", "ollama", "jina", "deepseek", "mock"
	Model             string  `yaml:"model"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	BaseURL           string  `yaml:"base_url"`
	Dimension         int     `yaml:"dimension"` // 0 = model default
	BatchSize         int     `yaml:"batch_size"`
	MaxInputTokens    int     `yaml:"max_input_tokens"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unlimited
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK            int     `yaml:"top_k"`
	Overfetch       int     `yaml:"overfetch"`
	MinSimilarity   float64 `yaml:"min_similarity"` // 0 = disabled
	TokenBudget     int     `yaml:"token_budget"`
	CacheSize       int     `yaml:"cache_size"` // 0 disables the query cache
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Dir: "scirag_db",
		},
		Ingest: IngestConfig{
			Recursive: false,
			BatchSize: 100,
			Workers:   4,
			QueueSize: 256,
		},
		Filter: FilterConfig{
			Enabled: true,
		},
		Chunk: ChunkConfig{
			Noise:                   "alnum",
			IncludeUntitledSections: true,
		},
		Embedding: EmbeddingConfig{
			Provider:       "hash",
			Model:          "hash-768",
			APIKeyEnv:      "OPENAI_API_KEY",
			BatchSize:      64,
			MaxInputTokens: 512,
			TimeoutSeconds: 60,
		},
		Retrieve: RetrieveConfig{
			TopK:            5,
			Overfetch:       3,
			TokenBudget:     4000,
			CacheSize:       128,
			CacheTTLSeconds: 300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for scirag.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "scirag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".scirag", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// LoadEnv loads a .env file from dir into the process environment.
// Variables already set are not overridden; a missing file is not an error.
func LoadEnv(dir string) error {
	err := godotenv.Load(filepath.Join(dir, ".env"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// StoreDBPath returns the path to the store database inside a store directory.
func StoreDBPath(dir string) string {
	return filepath.Join(dir, "store.db")
}

// EnsureStoreDir ensures the store directory exists.
func EnsureStoreDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// ComputeConfigHash computes a hash of the settings that shape stored chunks.
// A changed hash means re-ingesting would produce different records.
func ComputeConfigHash(cfg *Config) string {
	relevant := struct {
		Noise           string `json:"noise"`
		MaxSectionChars int    `json:"max_section_chars"`
		Untitled        bool   `json:"untitled"`
		EmbProvider     string `json:"emb_provider"`
		EmbModel        string `json:"emb_model"`
		EmbDimension    int    `json:"emb_dimension"`
		MaxInputTokens  int    `json:"max_input_tokens"`
	}{
		Noise:           cfg.Chunk.Noise,
		MaxSectionChars: cfg.Chunk.MaxSectionChars,
		Untitled:        cfg.Chunk.IncludeUntitledSections,
		EmbProvider:     cfg.Embedding.Provider,
		EmbModel:        cfg.Embedding.Model,
		EmbDimension:    cfg.Embedding.Dimension,
		MaxInputTokens:  cfg.Embedding.MaxInputTokens,
	}

	data, _ := json.Marshal(relevant)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}
