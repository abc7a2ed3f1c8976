package mocks

import (
	"bytes"
	"context"
	"io"
	"sort"

	"github.com/istqb-chatbot/syllabus-core/internal/core/domain"
	"github.com/istqb-chatbot/syllabus-core/internal/core/ports/driven"
)

var (
	_ driven.SyllabusSource = (*MockSyllabusSource)(nil)
	_ driven.PageExtractor  = (*MockPageExtractor)(nil)
)

// MockSyllabusSource serves documents from memory. Document bytes are the
// key itself so MockPageExtractor can map them back to pages.
type MockSyllabusSource struct {
	Docs    map[string][]driven.Page
	ListErr error
}

// NewMockSyllabusSource creates a source over the given documents
func NewMockSyllabusSource(docs map[string][]driven.Page) *MockSyllabusSource {
	return &MockSyllabusSource{Docs: docs}
}

func (m *MockSyllabusSource) List(ctx context.Context) ([]string, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	keys := make([]string, 0, len(m.Docs))
	for k := range m.Docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MockSyllabusSource) Open(ctx context.Context, key string) (io.ReaderAt, int64, error) {
	if _, ok := m.Docs[key]; !ok {
		return nil, 0, domain.ErrNotFound
	}
	return bytes.NewReader([]byte(key)), int64(len(key)), nil
}

func (m *MockSyllabusSource) Name() string {
	return "mock"
}

// MockPageExtractor resolves documents opened from a MockSyllabusSource
type MockPageExtractor struct {
	Source *MockSyllabusSource
	Err    error
}

func (m *MockPageExtractor) Extract(r io.ReaderAt, size int64) ([]driven.Page, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	buf := make([]byte, size)
	if _, err := r.ReadAt(buf, 0); err != nil && err != io.EOF {
		return nil, err
	}
	return m.Source.Docs[string(buf)], nil
}
