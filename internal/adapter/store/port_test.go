package store

import "scirag/internal/port"

var _ port.VectorStore = (*VectorStore)(nil)
