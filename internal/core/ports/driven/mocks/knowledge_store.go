package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/istqb-chatbot/syllabus-core/internal/core/domain"
	"github.com/istqb-chatbot/syllabus-core/internal/core/ports/driven"
)

var _ driven.KnowledgeStore = (*MockKnowledgeStore)(nil)

// MockKnowledgeStore is an in-memory implementation of KnowledgeStore for testing
type MockKnowledgeStore struct {
	mu     sync.RWMutex
	chunks map[string]*domain.Chunk

	// ReplaceSyllabusFn runs before a replacement; an error leaves the store untouched
	ReplaceSyllabusFn func(chunks []*domain.Chunk) error
}

// NewMockKnowledgeStore creates a new MockKnowledgeStore
func NewMockKnowledgeStore() *MockKnowledgeStore {
	return &MockKnowledgeStore{chunks: make(map[string]*domain.Chunk)}
}

// Put stores a chunk directly (test setup)
func (m *MockKnowledgeStore) Put(chunk *domain.Chunk) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[chunk.ID] = chunk
}

func (m *MockKnowledgeStore) ListByStatus(ctx context.Context, status domain.KnowledgeStatus, limit, offset int) ([]*domain.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.Chunk
	for _, c := range m.chunks {
		if c.Metadata.Status() == status {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	if offset >= len(out) {
		return []*domain.Chunk{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockKnowledgeStore) CountByStatus(ctx context.Context, status domain.KnowledgeStatus) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, c := range m.chunks {
		if c.Metadata.Status() == status {
			n++
		}
	}
	return n, nil
}

func (m *MockKnowledgeStore) Get(ctx context.Context, id string) (*domain.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.chunks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (m *MockKnowledgeStore) UpdateStatus(ctx context.Context, id string, status domain.KnowledgeStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chunks[id]
	if !ok {
		return domain.ErrNotFound
	}
	meta := c.Metadata.Clone()
	if meta == nil {
		meta = domain.Metadata{}
	}
	meta[domain.MetaStatus] = string(status)
	c.Metadata = meta
	return nil
}

func (m *MockKnowledgeStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chunks[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.chunks, id)
	return nil
}

func (m *MockKnowledgeStore) ReplaceSyllabus(ctx context.Context, chunks, reembedded []*domain.Chunk) (int, error) {
	if m.ReplaceSyllabusFn != nil {
		if err := m.ReplaceSyllabusFn(chunks); err != nil {
			return 0, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, c := range m.chunks {
		if c.Metadata.Status() == "" {
			delete(m.chunks, id)
			removed++
		}
	}
	for _, c := range chunks {
		if c.ID == "" {
			c.ID = domain.GenerateID()
		}
		m.chunks[c.ID] = c
	}
	for _, c := range reembedded {
		if stored, ok := m.chunks[c.ID]; ok && stored.Metadata.Status() != "" {
			stored.Embedding = c.Embedding
		}
	}
	return removed, nil
}

// All returns every stored chunk (test assertions)
func (m *MockKnowledgeStore) All() []*domain.Chunk {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Chunk, 0, len(m.chunks))
	for _, c := range m.chunks {
		out = append(out, c)
	}
	return out
}
