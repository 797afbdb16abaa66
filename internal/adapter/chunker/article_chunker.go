package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"scirag/internal/adapter/filter"
	"scirag/internal/domain"
)

// NoiseFilter reports whether a normalized line is noise and should be dropped.
type NoiseFilter func(line string) bool

// DefaultNoise drops lines that contain no letter or digit.
func DefaultNoise(line string) bool {
	for _, r := range line {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

var figureLabel = regexp.MustCompile(`(?i)^(fig(ure)?|table|supplementary (figure|table))\.?\s*s?\d+[a-z]?\.?$`)

// BoilerplateNoise extends DefaultNoise with bare figure and table labels.
func BoilerplateNoise(line string) bool {
	return DefaultNoise(line) || figureLabel.MatchString(line)
}

// NoNoise keeps every non-empty line.
func NoNoise(string) bool { return false }

// NoiseByName maps a configuration name to a predicate.
func NoiseByName(name string) (NoiseFilter, error) {
	switch strings.ToLower(name) {
	case "", "alnum", "default":
		return DefaultNoise, nil
	case "boilerplate":
		return BoilerplateNoise, nil
	case "none":
		return NoNoise, nil
	default:
		return nil, fmt.Errorf("unknown noise filter: %s", name)
	}
}

var paragraphBreak = regexp.MustCompile(`\n[ \t\r\f\v]*\n`)

type ArticleChunker struct {
	noise           NoiseFilter
	maxSectionChars int
	includeUntitled bool
}

type Option func(*ArticleChunker)

func WithNoiseFilter(f NoiseFilter) Option {
	return func(c *ArticleChunker) {
		if f != nil {
			c.noise = f
		}
	}
}

// WithMaxSectionChars caps the normalized section body length. Zero means unlimited.
func WithMaxSectionChars(n int) Option {
	return func(c *ArticleChunker) {
		if n >= 0 {
			c.maxSectionChars = n
		}
	}
}

func WithIncludeUntitledSections(include bool) Option {
	return func(c *ArticleChunker) {
		c.includeUntitled = include
	}
}

func New(opts ...Option) *ArticleChunker {
	c := &ArticleChunker{
		noise:           DefaultNoise,
		includeUntitled: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chunk turns an article into abstract and section chunks. It returns nil when
// the article is rejected by the category keep set.
func (c *ArticleChunker) Chunk(article domain.Article, keep []string, checkCategories bool) *domain.ChunkedArticle {
	if !filter.Accepts(article.Subjects, keep, checkCategories) {
		return nil
	}

	title := collapse(article.Title)
	identity := article.Identity()
	subjects := append([]string(nil), article.Subjects...)

	out := &domain.ChunkedArticle{
		Metadata: domain.ArticleMetadata{
			Title:    title,
			DOI:      article.DOI,
			Subjects: subjects,
		},
	}

	if abstract := c.Normalize(article.Abstract); abstract != "" {
		out.Chunks = append(out.Chunks, domain.Chunk{
			ID:      generateChunkID(identity, "abstract"),
			Content: joinNonEmpty(title, abstract),
			Kind:    domain.KindAbstract,
			Metadata: domain.ChunkMetadata{
				Title:    title,
				DOI:      article.DOI,
				Subjects: subjects,
			},
		})
	}

	for i, sec := range article.Sections {
		heading := collapse(sec.Heading)
		if heading == "" && !c.includeUntitled {
			continue
		}
		body := c.Normalize(sec.Body)
		if c.maxSectionChars > 0 {
			body = clip(body, c.maxSectionChars)
		}
		if body == "" {
			continue
		}
		out.Chunks = append(out.Chunks, domain.Chunk{
			ID:        generateChunkID(identity, fmt.Sprintf("sec:%d:%s", i, sec.ID)),
			Content:   joinNonEmpty(title, heading, body),
			Kind:      domain.KindSection,
			SectionID: sec.ID,
			Metadata: domain.ChunkMetadata{
				Title:        title,
				DOI:          article.DOI,
				Subjects:     subjects,
				SectionTitle: heading,
			},
		})
	}

	out.Metadata.TotalChunks = len(out.Chunks)
	return out
}

// Normalize collapses whitespace per line, drops noise lines and joins the
// surviving paragraphs with blank lines.
func (c *ArticleChunker) Normalize(text string) string {
	var paragraphs []string
	for _, para := range paragraphBreak.Split(text, -1) {
		var kept []string
		for _, line := range strings.Split(para, "\n") {
			line = collapse(line)
			if line == "" || c.noise(line) {
				continue
			}
			kept = append(kept, line)
		}
		if len(kept) > 0 {
			paragraphs = append(paragraphs, strings.Join(kept, " "))
		}
	}
	return strings.Join(paragraphs, "\n\n")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}

// clip cuts s to at most n bytes, preferring the last whitespace before the limit.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	cut := s[:n]
	if i := strings.LastIndexAny(cut, " \n"); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRightFunc(cut, unicode.IsSpace)
}

func generateChunkID(identity, position string) string {
	hash := sha256.Sum256([]byte(identity + "#" + position))
	return hex.EncodeToString(hash[:8])
}
