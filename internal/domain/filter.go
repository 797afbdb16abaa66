package domain

import "strings"

// Filter is a metadata predicate applied by the vector store. A nil Filter matches everything.
type Filter func(r *StoreRecord) bool

// Match reports whether r satisfies f.
func (f Filter) Match(r *StoreRecord) bool {
	return f == nil || f(r)
}

// BySubject matches records tagged with subject, case-insensitively.
func BySubject(subject string) Filter {
	want := strings.ToLower(strings.TrimSpace(subject))
	return func(r *StoreRecord) bool {
		for _, s := range r.Metadata.Subjects {
			if strings.ToLower(strings.TrimSpace(s)) == want {
				return true
			}
		}
		return false
	}
}

func ByKind(kind ChunkKind) Filter {
	return func(r *StoreRecord) bool { return r.Kind == kind }
}

func ByDOI(doi string) Filter {
	return func(r *StoreRecord) bool { return strings.EqualFold(r.Metadata.DOI, doi) }
}

func BySectionTitle(title string) Filter {
	return func(r *StoreRecord) bool { return strings.EqualFold(r.Metadata.SectionTitle, title) }
}

// And matches when every non-nil filter matches.
func And(filters ...Filter) Filter {
	var active []Filter
	for _, f := range filters {
		if f != nil {
			active = append(active, f)
		}
	}
	if len(active) == 0 {
		return nil
	}
	return func(r *StoreRecord) bool {
		for _, f := range active {
			if !f(r) {
				return false
			}
		}
		return true
	}
}
