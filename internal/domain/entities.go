package domain

import "strings"

// Article is one parsed scientific manuscript.
type Article struct {
	Source   string
	Title    string
	DOI      string
	Subjects []string
	Abstract string
	Sections []Section
}

// Section is one body section in document order.
type Section struct {
	ID      string
	Heading string
	Body    string
}

// Identity returns the stable key used to derive chunk IDs.
func (a Article) Identity() string {
	switch {
	case a.DOI != "":
		return "doi:" + strings.ToLower(a.DOI)
	case a.Source != "":
		return "src:" + a.Source
	default:
		return "title:" + a.Title
	}
}

type ChunkKind string

const (
	KindAbstract ChunkKind = "abstract"
	KindSection  ChunkKind = "section"
)

// IsValid reports whether k is a known chunk kind.
func (k ChunkKind) IsValid() bool {
	return k == KindAbstract || k == KindSection
}

type ChunkMetadata struct {
	Title        string   `json:"title"`
	DOI          string   `json:"doi"`
	Subjects     []string `json:"subjects"`
	SectionTitle string   `json:"section_title,omitempty"`
}

// Chunk is the unit of retrieval.
type Chunk struct {
	ID        string
	Content   string
	Kind      ChunkKind
	SectionID string
	Metadata  ChunkMetadata
}

type ArticleMetadata struct {
	Title       string   `json:"title"`
	DOI         string   `json:"doi"`
	Subjects    []string `json:"subjects"`
	TotalChunks int      `json:"total_chunks"`
}

// ChunkedArticle is the chunker output for an accepted article.
type ChunkedArticle struct {
	Chunks   []Chunk
	Metadata ArticleMetadata
}

// StoreRecord is the persisted tuple. Re-upserting an ID replaces it whole.
type StoreRecord struct {
	ID        string        `json:"id"`
	Embedding []float32     `json:"v"`
	Content   string        `json:"content"`
	Kind      ChunkKind     `json:"kind"`
	SectionID string        `json:"section_id,omitempty"`
	Metadata  ChunkMetadata `json:"metadata"`
}

// RecordFromChunk pairs a chunk with its embedding.
func RecordFromChunk(c Chunk, vec []float32) StoreRecord {
	return StoreRecord{
		ID:        c.ID,
		Embedding: vec,
		Content:   c.Content,
		Kind:      c.Kind,
		SectionID: c.SectionID,
		Metadata:  c.Metadata,
	}
}

// StoreHit is one vector store match, ordered by ascending Distance.
type StoreHit struct {
	ID        string
	Content   string
	Kind      ChunkKind
	SectionID string
	Metadata  ChunkMetadata
	Distance  float64
}

// Passage is one ranked retrieval result.
type Passage struct {
	ChunkID    string        `json:"chunk_id"`
	Content    string        `json:"content"`
	Kind       ChunkKind     `json:"kind"`
	SectionID  string        `json:"section_id,omitempty"`
	Metadata   ChunkMetadata `json:"metadata"`
	Similarity float64       `json:"similarity"`
	Distance   float64       `json:"distance"`
}

type RetrievalResult struct {
	Query    string    `json:"query"`
	Passages []Passage `json:"passages"`
}

type FileError struct {
	Path string `json:"path"`
	Err  string `json:"error"`
}

// IngestStats summarises one ingestion run.
type IngestStats struct {
	RunID           string      `json:"run_id"`
	Processed       int         `json:"processed"`
	Filtered        int         `json:"filtered"`
	Errors          int         `json:"errors"`
	TotalChunks     int         `json:"total_chunks"`
	EmbeddingErrors int         `json:"embedding_errors"`
	DroppedChunks   int         `json:"dropped_chunks"`
	FileErrors      []FileError `json:"file_errors,omitempty"`
}

// StoreStats is a read-only aggregate over all persisted records.
type StoreStats struct {
	TotalChunks    int               `json:"total_chunks"`
	UniqueSubjects []string          `json:"unique_subjects"`
	UniqueArticles int               `json:"unique_articles"`
	Kinds          map[ChunkKind]int `json:"kinds"`
	Dimension      int               `json:"dimension"`
	Metric         string            `json:"metric"`
	Model          string            `json:"model"`
	SchemaVersion  int               `json:"schema_version"`
	LastRun        string            `json:"last_run,omitempty"`
}

// AssembledContext is the prompt fragment built from ranked passages.
type AssembledContext struct {
	Query        string    `json:"query"`
	Text         string    `json:"text"`
	Sources      []Passage `json:"sources"`
	UsedTokens   int       `json:"used_tokens"`
	BudgetTokens int       `json:"budget_tokens"`
}

// Answer is the result of a question answered from retrieved context.
type Answer struct {
	Query   string           `json:"query"`
	Text    string           `json:"answer"`
	Method  string           `json:"method"`
	Context AssembledContext `json:"context"`
}
