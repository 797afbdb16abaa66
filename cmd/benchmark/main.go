package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"scirag/config"
	"scirag/internal/adapter/embedding"
	"scirag/internal/adapter/store"
	"scirag/internal/usecase"
)

func main() {
	rootDir := flag.String("dir", ".", "directory holding scirag.yaml and the store")
	query := flag.String("q", "", "query to test")
	topK := flag.Int("k", 10, "number of results")
	runs := flag.Int("runs", 20, "timed repetitions of the query")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -dir . -q \"query\"")
		fmt.Println("\nReports:")
		fmt.Println("  1. Store contents (chunks, model, dimension)")
		fmt.Println("  2. Similarity of the top matches")
		fmt.Println("  3. Query latency over repeated runs")
		os.Exit(1)
	}

	if err := config.LoadEnv(*rootDir); err != nil {
		fail("Error loading .env", err)
	}
	cfg, err := config.LoadFromDir(*rootDir)
	if err != nil {
		fail("Error loading config", err)
	}

	embedder, err := embedding.NewFromConfig(cfg.Embedding)
	if err != nil {
		fail("Embedder init failed", err)
	}

	dir := cfg.Store.Dir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(*rootDir, dir)
	}
	st, err := store.Open(config.StoreDBPath(dir), store.Options{
		Dimension: embedder.Dimension(),
		Model:     embedder.ModelName(),
	})
	if err != nil {
		fail("Error opening store", err)
	}
	defer st.Close()

	ctx := context.Background()
	stats, err := st.Stats(ctx)
	if err != nil {
		fail("Error reading stats", err)
	}
	if stats.TotalChunks == 0 {
		fmt.Fprintln(os.Stderr, "Store is empty - run 'scirag build' first")
		os.Exit(1)
	}

	fmt.Println("RETRIEVAL BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Chunks stored: %d (%d articles)\n", stats.TotalChunks, stats.UniqueArticles)
	fmt.Printf("Model: %s (%s)\n", stats.Model, cfg.Embedding.Provider)
	fmt.Printf("Dimension: %d\n\n", stats.Dimension)

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	retriever := usecase.NewRetrieveUseCase(embedder, st, usecase.RetrieveOptions{
		Overfetch:     cfg.Retrieve.Overfetch,
		MinSimilarity: cfg.Retrieve.MinSimilarity,
	})

	result, err := retriever.Retrieve(ctx, *query, *topK, nil)
	if err != nil {
		fail("Search error", err)
	}
	if len(result.Passages) == 0 {
		fmt.Println("No matches.")
		return
	}

	fmt.Printf("Top %d matches:\n\n", len(result.Passages))

	totalScore := 0.0
	for i, p := range result.Passages {
		preview := []rune(strings.ReplaceAll(p.Content, "\n", " "))
		if len(preview) > 150 {
			preview = append(preview[:150], []rune("...")...)
		}
		totalScore += p.Similarity

		where := string(p.Kind)
		if p.Metadata.SectionTitle != "" {
			where += ": " + p.Metadata.SectionTitle
		}
		fmt.Printf("%d. [%s %.3f] %s (%s)\n", i+1, rating(p.Similarity), p.Similarity, p.Metadata.Title, where)
		fmt.Printf("   %s\n\n", string(preview))
	}

	latencies := make([]time.Duration, 0, *runs)
	for i := 0; i < *runs; i++ {
		start := time.Now()
		if _, err := retriever.Retrieve(ctx, *query, *topK, nil); err != nil {
			fail("Search error", err)
		}
		latencies = append(latencies, time.Since(start))
	}

	avgScore := totalScore / float64(len(result.Passages))
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Average similarity: %.3f\n", avgScore)
	fmt.Printf("  Top-1 similarity:   %.3f\n", result.Passages[0].Similarity)
	fmt.Printf("  Mean latency:       %s over %d runs\n", mean(latencies), len(latencies))

	if avgScore > 0.75 {
		fmt.Println("  Status: GOOD - retrieval working well")
	} else if avgScore > 0.6 {
		fmt.Println("  Status: OK - results are somewhat related")
	} else {
		fmt.Println("  Status: POOR - consider a model-backed embedding provider")
	}
}

// rating buckets a [0,1] similarity; 0.5 is orthogonal under the cosine mapping.
func rating(similarity float64) string {
	switch {
	case similarity > 0.85:
		return "HIGH"
	case similarity > 0.75:
		return "GOOD"
	case similarity > 0.6:
		return "OK"
	default:
		return "LOW"
	}
}

func mean(ds []time.Duration) time.Duration {
	if len(ds) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range ds {
		total += d
	}
	return total / time.Duration(len(ds))
}

func fail(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}
