package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scirag/config"
	"scirag/internal/adapter/chunker"
	"scirag/internal/adapter/embedding"
	"scirag/internal/adapter/jats"
	"scirag/internal/adapter/store"
	"scirag/internal/domain"
	"scirag/internal/usecase"
)

const crisprXML = `<?xml version="1.0" encoding="UTF-8"?>
<article>
  <front><article-meta>
    <article-id pub-id-type="doi">10.1101/000001</article-id>
    <article-categories><subj-group><subject>Genomics</subject></subj-group></article-categories>
    <title-group><article-title>CRISPR Review</article-title></title-group>
    <abstract><p>CRISPR enables targeted edits.</p></abstract>
  </article-meta></front>
  <body>
    <sec id="s1"><title>Introduction</title><p>Bacteria use CRISPR for immunity.</p></sec>
  </body>
</article>`

const coralXML = `<?xml version="1.0" encoding="UTF-8"?>
<article>
  <front><article-meta>
    <article-id pub-id-type="doi">10.1101/000002</article-id>
    <article-categories><subj-group><subject>Ecology</subject></subj-group></article-categories>
    <title-group><article-title>Coral Reef Fish</article-title></title-group>
    <abstract><p>Reef fish migrate between coral patches at dusk.</p></abstract>
  </article-meta></front>
</article>`

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.ExecuteContext(context.Background()), out.String())
	return out.String()
}

func TestCommands_EndToEnd(t *testing.T) {
	root := t.TempDir()
	xmlDir := filepath.Join(root, "xml")
	require.NoError(t, os.MkdirAll(xmlDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(xmlDir, "crispr.xml"), []byte(crisprXML), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(xmlDir, "coral.xml"), []byte(coralXML), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(xmlDir, "broken.xml"), []byte("<article><title></article>"), 0644))

	out := execute(t, "--dir", root, "build", xmlDir, "--no-filter")
	assert.Contains(t, out, "Articles processed: 2")
	assert.Contains(t, out, "Parse errors:       1")
	assert.Contains(t, out, "Chunks stored:      3")
	assert.FileExists(t, filepath.Join(root, "scirag_db", "store.db"))

	out = execute(t, "--dir", root, "query", "-q", "CRISPR enables targeted edits", "-k", "1", "--json")
	var result domain.RetrievalResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Passages, 1)
	assert.Equal(t, "10.1101/000001", result.Passages[0].Metadata.DOI)

	out = execute(t, "--dir", root, "query", "-q", "fish", "--subject", "ecology", "--json")
	result = domain.RetrievalResult{}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Passages, 1)
	assert.Equal(t, "Coral Reef Fish", result.Passages[0].Metadata.Title)

	out = execute(t, "--dir", root, "ask", "-q", "What does CRISPR do?", "--prompt")
	assert.Contains(t, out, "QUESTION: What does CRISPR do?")
	assert.Contains(t, out, "[Source 1]")

	out = execute(t, "--dir", root, "delete", "--doi", "10.1101/000002")
	assert.Contains(t, out, "Deleted 1 passages")

	out = execute(t, "--dir", root, "stats", "--json")
	var stats domain.StoreStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 2, stats.TotalChunks)
	assert.Equal(t, []string{"Genomics"}, stats.UniqueSubjects)
	assert.NotEmpty(t, stats.LastRun)
}

func TestCommands_StoreFlag(t *testing.T) {
	root := t.TempDir()
	elsewhere := filepath.Join(t.TempDir(), "shared_db")
	xmlDir := filepath.Join(root, "xml")
	require.NoError(t, os.MkdirAll(xmlDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(xmlDir, "crispr.xml"), []byte(crisprXML), 0644))
	t.Cleanup(func() {
		storePath = ""
		querySubject, queryKind, querySection = "", "", ""
	})
	querySubject, queryKind = "", ""

	execute(t, "--dir", root, "--store", elsewhere, "build", xmlDir, "--no-filter")
	assert.FileExists(t, filepath.Join(elsewhere, "store.db"))
	assert.NoFileExists(t, filepath.Join(root, "scirag_db", "store.db"))

	out := execute(t, "--dir", root, "--store", elsewhere, "query", "-q", "bacteria immunity", "-k", "5", "--section", "introduction", "--json")
	var result domain.RetrievalResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Passages, 1)
	assert.Equal(t, "Introduction", result.Passages[0].Metadata.SectionTitle)

	out = execute(t, "--dir", root, "--store", elsewhere, "stats", "--json")
	var stats domain.StoreStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 2, stats.TotalChunks)
}

func TestSession_IngestInvalidatesCache(t *testing.T) {
	cfg = config.DefaultConfig()
	require.Positive(t, cfg.Retrieve.CacheSize)
	ctx := context.Background()

	emb := embedding.NewHashEmbedder(64, 0)
	st, err := store.Open(filepath.Join(t.TempDir(), "store.db"), store.Options{Dimension: emb.Dimension(), Model: emb.ModelName()})
	require.NoError(t, err)
	defer st.Close()
	sess := newSession(emb, st)

	before, err := sess.retriever.Retrieve(ctx, "CRISPR immunity", 3, nil)
	require.NoError(t, err)
	assert.Empty(t, before.Passages)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "crispr.xml"), []byte(crisprXML), 0644))
	uc := usecase.NewIngestUseCase(jats.NewParser(), chunker.New(), emb, st)
	stats, err := sess.ingest(ctx, uc, dir, usecase.IngestOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalChunks)

	after, err := sess.retriever.Retrieve(ctx, "CRISPR immunity", 3, nil)
	require.NoError(t, err)
	assert.Len(t, after.Passages, 2)
}

func TestQueryFilter(t *testing.T) {
	assert.NoError(t, queryFilter{}.validate())
	assert.NoError(t, queryFilter{kind: "abstract"}.validate())
	assert.Error(t, queryFilter{kind: "figure"}.validate())

	assert.Nil(t, queryFilter{}.filter())
	assert.Equal(t, "", queryFilter{}.key())
	assert.Equal(t, "subject=Genomics;kind=section;section=", queryFilter{subject: "Genomics", kind: "section"}.key())
	assert.Equal(t, "subject=;kind=;section=Methods", queryFilter{section: "Methods"}.key())

	f := queryFilter{subject: "genomics", kind: "section"}.filter()
	match := &domain.StoreRecord{Kind: domain.KindSection, Metadata: domain.ChunkMetadata{Subjects: []string{"Genomics"}}}
	miss := &domain.StoreRecord{Kind: domain.KindAbstract, Metadata: domain.ChunkMetadata{Subjects: []string{"Genomics"}}}
	assert.True(t, f.Match(match))
	assert.False(t, f.Match(miss))

	bySection := queryFilter{section: "methods"}.filter()
	assert.True(t, bySection.Match(&domain.StoreRecord{Metadata: domain.ChunkMetadata{SectionTitle: "Methods"}}))
	assert.False(t, bySection.Match(&domain.StoreRecord{Metadata: domain.ChunkMetadata{SectionTitle: "Results"}}))
}

func TestRunREPL(t *testing.T) {
	cfg = config.DefaultConfig()
	ctx := context.Background()

	emb := embedding.NewHashEmbedder(64, 0)
	st, err := store.Open(filepath.Join(t.TempDir(), "store.db"), store.Options{Dimension: emb.Dimension(), Model: emb.ModelName()})
	require.NoError(t, err)
	defer st.Close()

	crispr := "CRISPR Review\n\nCRISPR enables targeted edits."
	coral := "Coral Reef Fish\n\nReef fish migrate between coral patches at dusk."
	vecs, err := emb.Embed(ctx, []string{crispr, coral})
	require.NoError(t, err)
	require.NoError(t, st.Upsert(ctx, []domain.StoreRecord{{
		ID:        "abs",
		Embedding: vecs[0],
		Content:   crispr,
		Kind:      domain.KindAbstract,
		Metadata:  domain.ChunkMetadata{Title: "CRISPR Review", DOI: "10.1101/000001", Subjects: []string{"Genomics"}},
	}, {
		ID:        "coral",
		Embedding: vecs[1],
		Content:   coral,
		Kind:      domain.KindAbstract,
		Metadata:  domain.ChunkMetadata{Title: "Coral Reef Fish", DOI: "10.1101/000002", Subjects: []string{"Ecology"}},
	}}))

	in := strings.NewReader(strings.Join([]string{
		"stats",
		"subjects",
		"search crispr in genomics",
		"",
		"What does CRISPR enable?",
		"compare CRISPR edits; reef fish",
		"compare ;",
		"quit",
		"never reached",
	}, "\n"))
	var out bytes.Buffer
	require.NoError(t, runREPL(ctx, in, &out, newSession(emb, st), 1, 1000))

	text := out.String()
	assert.Contains(t, text, "Total chunks:    2")
	assert.Contains(t, text, "Available subjects (2):\n  - Ecology\n  - Genomics\n")
	assert.Contains(t, text, "Subject: genomics\nFound 1 results for: crispr")
	assert.Contains(t, text, "Based on 1 relevant sections from 1 scientific papers:")
	assert.Contains(t, text, "Query: CRISPR edits\n  1. ")
	assert.Contains(t, text, "Query: reef fish\n  1. ")
	assert.Contains(t, text, "Error: usage: compare <query>; <query>")
	assert.Contains(t, text, "Goodbye!")
	assert.NotContains(t, text, "never reached")
}

func TestRunREPL_EOF(t *testing.T) {
	cfg = config.DefaultConfig()
	emb := embedding.NewHashEmbedder(16, 0)
	st, err := store.Open(filepath.Join(t.TempDir(), "store.db"), store.Options{Dimension: emb.Dimension()})
	require.NoError(t, err)
	defer st.Close()

	var out bytes.Buffer
	require.NoError(t, runREPL(context.Background(), strings.NewReader("search \n"), &out, newSession(emb, st), 5, 0))
	assert.Contains(t, out.String(), "Error: empty query")
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdef", 2))
	assert.Equal(t, "<1s", formatDuration(0))
	assert.Equal(t, []string{"a", "b", "c"}, firstSubjects([]string{"a", "b", "c", "d"}))
}
