package domain

import "errors"

var (
	ErrParse             = errors.New("parse error")
	ErrEmbedding         = errors.New("embedding error")
	ErrStore             = errors.New("store error")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrMetricMismatch    = errors.New("similarity metric mismatch")
	ErrModelMismatch     = errors.New("embedding model mismatch")
	ErrNotFound          = errors.New("not found")
	ErrSourceDir         = errors.New("source directory unavailable")
	ErrEmptyQuery        = errors.New("empty query")
)
