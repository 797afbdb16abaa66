package fs

import (
	"context"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"scirag/internal/domain"
	"scirag/internal/logger"
	"scirag/internal/port"
)

type Walker struct {
	includes  []string
	excludes  []string
	recursive bool
}

func NewWalker(includes, excludes []string, recursive bool) *Walker {
	if len(includes) == 0 {
		includes = []string{"**/*"}
	}
	return &Walker{
		includes:  includes,
		excludes:  excludes,
		recursive: recursive,
	}
}

// NewXMLWalker lists *.xml files in the top-level directory, or **/*.xml when recursive.
func NewXMLWalker(recursive bool) *Walker {
	pattern := "*.xml"
	if recursive {
		pattern = "**/*.xml"
	}
	return NewWalker([]string{pattern}, []string{"**/.*/**"}, recursive)
}

// Walk returns matching files in lexical order. A missing or non-directory
// root wraps domain.ErrSourceDir.
func (w *Walker) Walk(ctx context.Context, root string) ([]port.FileInfo, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrSourceDir, root)
	}

	var files []port.FileInfo
	err = filepath.WalkDir(root, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return skipUnreadable(path, d, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if path == root {
				return nil
			}
			if !w.recursive || w.shouldExclude(relPath+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if !w.shouldInclude(relPath) || w.shouldExclude(relPath) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return skipUnreadable(path, d, err)
		}
		files = append(files, port.FileInfo{
			Path:    path,
			ModTime: fi.ModTime().Unix(),
			Size:    fi.Size(),
		})
		return nil
	})

	return files, err
}

// skipUnreadable logs an entry that could not be read and tells WalkDir to
// move past it.
func skipUnreadable(path string, d iofs.DirEntry, err error) error {
	logger.Warn("skipping unreadable path", "path", path, "error", err)
	if d != nil && d.IsDir() {
		return filepath.SkipDir
	}
	return nil
}

func (w *Walker) shouldInclude(path string) bool {
	for _, pattern := range w.includes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func (w *Walker) shouldExclude(path string) bool {
	if strings.HasPrefix(path, ".") {
		return true
	}
	for _, pattern := range w.excludes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}
