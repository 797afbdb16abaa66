package filter

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultCategories is the life-science subset kept when no category file is configured.
var DefaultCategories = []string{
	"Biochemistry",
	"Bioengineering",
	"Bioinformatics",
	"Biophysics",
	"Ecology",
	"Evolutionary biology",
	"Genetics",
	"Genomics",
	"Microbiology",
	"Molecular biology",
	"Plant biology",
	"Synthetic biology",
}

// Accepts reports whether an article with the given subjects passes the keep set.
// With check disabled every article passes. Comparison is case-insensitive and
// ignores surrounding whitespace; a nil or empty subject list never matches.
func Accepts(subjects, keep []string, check bool) bool {
	if !check {
		return true
	}
	if len(subjects) == 0 || len(keep) == 0 {
		return false
	}
	want := normalizeSet(keep)
	for _, s := range subjects {
		if _, ok := want[normalize(s)]; ok {
			return true
		}
	}
	return false
}

// Matching returns the subjects that intersect keep, in input order.
func Matching(subjects, keep []string) []string {
	want := normalizeSet(keep)
	var out []string
	for _, s := range subjects {
		if _, ok := want[normalize(s)]; ok {
			out = append(out, s)
		}
	}
	return out
}

type categoryFile struct {
	Categories []string `yaml:"categories"`
}

// LoadKeepFile reads a category list from YAML. Both a bare sequence and a
// `categories:` mapping are accepted.
func LoadKeepFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read category file: %w", err)
	}

	var list []string
	if err := yaml.Unmarshal(data, &list); err != nil {
		var wrapped categoryFile
		if err2 := yaml.Unmarshal(data, &wrapped); err2 != nil {
			return nil, fmt.Errorf("failed to parse category file %s: %w", path, err2)
		}
		list = wrapped.Categories
	}

	return Dedupe(list), nil
}

// Dedupe trims, drops empties and removes case-insensitive duplicates, keeping first spelling.
func Dedupe(categories []string) []string {
	seen := make(map[string]struct{}, len(categories))
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		key := strings.ToLower(c)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizeSet(xs []string) map[string]struct{} {
	m := make(map[string]struct{}, len(xs))
	for _, x := range xs {
		if n := normalize(x); n != "" {
			m[n] = struct{}{}
		}
	}
	return m
}
