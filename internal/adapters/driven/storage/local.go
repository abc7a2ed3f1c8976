package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/istqb-chatbot/syllabus-core/internal/core/domain"
	"github.com/istqb-chatbot/syllabus-core/internal/core/ports/driven"
)

// Ensure LocalSource implements SyllabusSource
var _ driven.SyllabusSource = (*LocalSource)(nil)

// LocalSource reads syllabus PDFs from a directory tree.
// Keys are slash-separated paths that include the directory, e.g. "data/foundation.pdf",
// so the key doubles as the source label shown to users.
type LocalSource struct {
	dir string
}

// NewLocalSource creates a source rooted at dir
func NewLocalSource(dir string) (*LocalSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat syllabus directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	return &LocalSource{dir: filepath.Clean(dir)}, nil
}

// List returns every PDF below the directory, sorted
func (s *LocalSource) List(ctx context.Context) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(s.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !isPDF(p) {
			return nil
		}
		keys = append(keys, filepath.ToSlash(p))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list syllabus directory: %w", err)
	}

	sort.Strings(keys)
	return keys, nil
}

// Open returns the file behind key; the caller closes it
func (s *LocalSource) Open(ctx context.Context, key string) (io.ReaderAt, int64, error) {
	p := filepath.Clean(filepath.FromSlash(key))
	rel, err := filepath.Rel(s.dir, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, 0, fmt.Errorf("%w: %s is outside %s", domain.ErrInvalidInput, key, s.dir)
	}

	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, fmt.Errorf("document %s: %w", key, domain.ErrNotFound)
		}
		return nil, 0, fmt.Errorf("failed to open document: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("failed to stat document: %w", err)
	}

	return f, info.Size(), nil
}

// Name returns "local"
func (s *LocalSource) Name() string {
	return string(BackendLocal)
}
