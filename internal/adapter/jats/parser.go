// Package jats extracts articles from JATS-like publisher XML.
package jats

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/antchfx/xmlquery"

	"scirag/internal/domain"
)

// XPath selectors for the article parts we index.
const (
	titlePath    = "//article-title"
	doiPath      = "//article-id[@pub-id-type='doi']"
	subjectPath  = "//subj-group/subject"
	abstractPath = "//abstract//p"
	sectionPath  = "//body//sec[@id]"
)

// Parser reads JATS article XML files.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// ParseFile parses the article at path. All failures wrap domain.ErrParse.
func (p *Parser) ParseFile(path string) (domain.Article, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Article{}, fmt.Errorf("%w: failed to open %s: %v", domain.ErrParse, path, err)
	}
	defer f.Close()

	return p.Parse(f, path)
}

// Parse parses one article document from r.
func (p *Parser) Parse(r io.Reader, source string) (domain.Article, error) {
	doc, err := xmlquery.ParseWithOptions(r, xmlquery.ParserOptions{
		Decoder: &xmlquery.DecoderOptions{
			Strict: true,
			Entity: xml.HTMLEntity,
		},
	})
	if err != nil {
		return domain.Article{}, fmt.Errorf("%w: %s: %v", domain.ErrParse, source, err)
	}

	article := domain.Article{
		Source:   source,
		Title:    firstText(doc, titlePath),
		DOI:      firstText(doc, doiPath),
		Subjects: allText(doc, subjectPath),
		Abstract: strings.Join(allText(doc, abstractPath), "\n\n"),
	}

	for _, sec := range xmlquery.Find(doc, sectionPath) {
		article.Sections = append(article.Sections, domain.Section{
			ID:      sec.SelectAttr("id"),
			Heading: firstText(sec, ".//title"),
			Body:    strings.Join(allText(sec, ".//p"), "\n\n"),
		})
	}

	if article.Title == "" && article.Abstract == "" && len(article.Sections) == 0 {
		return domain.Article{}, fmt.Errorf("%w: %s: no article title, abstract or sections", domain.ErrParse, source)
	}

	return article, nil
}

func firstText(top *xmlquery.Node, expr string) string {
	n := xmlquery.FindOne(top, expr)
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.InnerText())
}

// allText returns the trimmed, non-empty text of every match in document order.
func allText(top *xmlquery.Node, expr string) []string {
	var out []string
	for _, n := range xmlquery.Find(top, expr) {
		if t := strings.TrimSpace(n.InnerText()); t != "" {
			out = append(out, t)
		}
	}
	return out
}
