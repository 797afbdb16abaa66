package port

import "scirag/internal/domain"

// Chunker splits an article into chunks. A nil result means the article was filtered out.
type Chunker interface {
	Chunk(article domain.Article, keep []string, checkCategories bool) *domain.ChunkedArticle
}

// ArticleParser extracts an Article from one source document.
type ArticleParser interface {
	ParseFile(path string) (domain.Article, error)
}
