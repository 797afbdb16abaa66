package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"scirag/internal/domain"
)

const (
	contentPreviewChars = 200
	maxListedSubjects   = 3
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printPassages prints ranked passages in the human-readable search layout.
func printPassages(w io.Writer, result domain.RetrievalResult, showContent bool) {
	if len(result.Passages) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintf(w, "Found %d results for: %s\n", len(result.Passages), result.Query)
	for i, p := range result.Passages {
		fmt.Fprintf(w, "\n%d. Similarity: %.3f\n", i+1, p.Similarity)
		fmt.Fprintf(w, "   Title: %s\n", p.Metadata.Title)
		if p.Metadata.DOI != "" {
			fmt.Fprintf(w, "   DOI: %s\n", p.Metadata.DOI)
		}
		fmt.Fprintf(w, "   Type: %s\n", p.Kind)
		fmt.Fprintf(w, "   Subjects: %s\n", strings.Join(firstSubjects(p.Metadata.Subjects), ", "))
		if p.Metadata.SectionTitle != "" {
			fmt.Fprintf(w, "   Section: %s\n", p.Metadata.SectionTitle)
		}
		if showContent {
			fmt.Fprintf(w, "   Content: %s\n", truncate(p.Content, contentPreviewChars))
		}
	}
}

func printAnswer(w io.Writer, ans domain.Answer) {
	fmt.Fprintln(w, "Answer:")
	fmt.Fprintln(w, ans.Text)

	if len(ans.Context.Sources) == 0 {
		return
	}
	fmt.Fprintf(w, "\nSources (%d passages, %d tokens):\n", len(ans.Context.Sources), ans.Context.UsedTokens)
	for i, p := range ans.Context.Sources {
		fmt.Fprintf(w, "%d. %s\n", i+1, p.Metadata.Title)
		fmt.Fprintf(w, "   Type: %s, Similarity: %.3f\n", p.Kind, p.Similarity)
		if p.Metadata.SectionTitle != "" {
			fmt.Fprintf(w, "   Section: %s\n", p.Metadata.SectionTitle)
		}
		fmt.Fprintf(w, "   Preview: %s\n", truncate(p.Content, contentPreviewChars))
	}
}

func printIngestStats(w io.Writer, stats domain.IngestStats, elapsed time.Duration) {
	fmt.Fprintf(w, "\nBuild complete in %s (run %s):\n", formatDuration(elapsed), stats.RunID)
	fmt.Fprintf(w, "  Articles processed: %d\n", stats.Processed)
	fmt.Fprintf(w, "  Articles filtered:  %d\n", stats.Filtered)
	fmt.Fprintf(w, "  Parse errors:       %d\n", stats.Errors)
	fmt.Fprintf(w, "  Chunks stored:      %d\n", stats.TotalChunks)
	if stats.EmbeddingErrors > 0 {
		fmt.Fprintf(w, "  Embedding errors:   %d (%d chunks dropped)\n", stats.EmbeddingErrors, stats.DroppedChunks)
	}

	if len(stats.FileErrors) > 0 {
		fmt.Fprintf(w, "\nWarnings:\n")
		for _, e := range stats.FileErrors {
			fmt.Fprintf(w, "  - %s: %s\n", e.Path, e.Err)
		}
	}
}

func printStoreStats(w io.Writer, stats domain.StoreStats, path string) {
	fmt.Fprintln(w, "Store statistics:")
	fmt.Fprintf(w, "  Total chunks:    %d\n", stats.TotalChunks)
	fmt.Fprintf(w, "  Articles:        %d\n", stats.UniqueArticles)
	fmt.Fprintf(w, "  Abstracts:       %d\n", stats.Kinds[domain.KindAbstract])
	fmt.Fprintf(w, "  Sections:        %d\n", stats.Kinds[domain.KindSection])
	fmt.Fprintf(w, "  Model:           %s (%d dimensions, %s)\n", stats.Model, stats.Dimension, stats.Metric)
	fmt.Fprintf(w, "  Schema version:  %d\n", stats.SchemaVersion)
	if stats.LastRun != "" {
		fmt.Fprintf(w, "  Last run:        %s\n", stats.LastRun)
	}
	fmt.Fprintf(w, "  Path:            %s\n", path)

	fmt.Fprintf(w, "\nSubjects (%d):\n", len(stats.UniqueSubjects))
	for _, s := range stats.UniqueSubjects {
		fmt.Fprintf(w, "  - %s\n", s)
	}
}

func firstSubjects(subjects []string) []string {
	if len(subjects) > maxListedSubjects {
		return subjects[:maxListedSubjects]
	}
	return subjects
}

// truncate cuts s to n runes for display.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
