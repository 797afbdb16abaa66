package domain

import (
	"iter"
	"sort"
	"strings"
)

// AggregateStats computes the record counts of StoreStats. Store-level
// fields (dimension, metric, model, schema) are left to the caller.
func AggregateStats(records iter.Seq[StoreRecord]) StoreStats {
	stats := StoreStats{Kinds: make(map[ChunkKind]int)}

	subjects := make(map[string]struct{})
	articles := make(map[string]struct{})
	for rec := range records {
		stats.TotalChunks++
		stats.Kinds[rec.Kind]++
		for _, subj := range rec.Metadata.Subjects {
			subjects[subj] = struct{}{}
		}
		key := strings.ToLower(rec.Metadata.DOI)
		if key == "" {
			key = "title:" + rec.Metadata.Title
		}
		articles[key] = struct{}{}
	}

	stats.UniqueArticles = len(articles)
	stats.UniqueSubjects = make([]string, 0, len(subjects))
	for subj := range subjects {
		stats.UniqueSubjects = append(stats.UniqueSubjects, subj)
	}
	sort.Strings(stats.UniqueSubjects)
	return stats
}
