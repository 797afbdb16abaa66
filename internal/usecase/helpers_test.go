package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"scirag/internal/domain"
)

// staticEmbedder maps known texts to fixed vectors; unknown texts get fallback.
type staticEmbedder struct {
	vectors  map[string][]float32
	fallback []float32
	err      error
	failures int // fail this many calls before succeeding
	calls    int
	// dimension overrides the reported size; zero means len(fallback).
	dimension int
}

func (e *staticEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil && (e.failures < 0 || e.calls <= e.failures) {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := e.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = e.fallback
		}
	}
	return out, nil
}

func (e *staticEmbedder) Dimension() int {
	if e.dimension > 0 {
		return e.dimension
	}
	return len(e.fallback)
}

func (e *staticEmbedder) ModelName() string { return "static" }

var errEmbedDown = errors.New("embedding service down")

const articleTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<article>
  <front><article-meta>
    <article-id pub-id-type="doi">%s</article-id>
    <article-categories><subj-group><subject>%s</subject></subj-group></article-categories>
    <title-group><article-title>%s</article-title></title-group>
    <abstract><p>%s</p></abstract>
  </article-meta></front>
  <body>
    <sec id="s1"><title>Introduction</title><p>%s</p></sec>
  </body>
</article>`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func passageIDs(ps []domain.Passage) []string {
	ids := make([]string, len(ps))
	for i, p := range ps {
		ids[i] = p.ChunkID
	}
	return ids
}
