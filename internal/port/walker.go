package port

import "context"

// FileWalker lists the source files of an ingestion run in lexical order.
type FileWalker interface {
	Walk(ctx context.Context, root string) ([]FileInfo, error)
}

type FileInfo struct {
	Path    string
	ModTime int64
	Size    int64
}
