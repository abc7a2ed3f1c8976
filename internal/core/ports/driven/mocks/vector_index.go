package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/istqb-chatbot/syllabus-core/internal/core/domain"
	"github.com/istqb-chatbot/syllabus-core/internal/core/ports/driven"
)

var _ driven.VectorIndex = (*MockVectorIndex)(nil)

// MockVectorIndex is an in-memory VectorIndex for testing.
// Seeded chunks carry a fixed distance that is returned for every query,
// which lets tests script retrieval outcomes precisely.
type MockVectorIndex struct {
	mu       sync.RWMutex
	seeded   []*domain.ScoredChunk
	inserted []*domain.Chunk
	nextID   int

	searchErr   error
	insertErr   error
	searchCalls int
	lastK       int
	queries     []string
}

// NewMockVectorIndex creates an empty MockVectorIndex
func NewMockVectorIndex() *MockVectorIndex {
	return &MockVectorIndex{}
}

// Seed adds a chunk that every search returns with the given distance
func (m *MockVectorIndex) Seed(content string, metadata domain.Metadata, score float64) *domain.Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	chunk := &domain.Chunk{
		ID:        fmt.Sprintf("seed-%d", m.nextID),
		Content:   content,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
	m.seeded = append(m.seeded, &domain.ScoredChunk{Chunk: chunk, Score: score})
	return chunk
}

func (m *MockVectorIndex) Search(ctx context.Context, query string, k int) ([]*domain.ScoredChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchCalls++
	m.lastK = k
	m.queries = append(m.queries, query)
	if m.searchErr != nil {
		return nil, m.searchErr
	}

	results := make([]*domain.ScoredChunk, len(m.seeded))
	copy(results, m.seeded)
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score < results[j].Score
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (m *MockVectorIndex) Insert(ctx context.Context, content string, metadata domain.Metadata) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return "", m.insertErr
	}
	m.nextID++
	chunk := &domain.Chunk{
		ID:        fmt.Sprintf("chunk-%d", m.nextID),
		Content:   content,
		Metadata:  metadata.Clone(),
		CreatedAt: time.Now(),
	}
	m.inserted = append(m.inserted, chunk)
	return chunk.ID, nil
}

// Helper methods for testing

func (m *MockVectorIndex) SetSearchError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchErr = err
}

func (m *MockVectorIndex) SetInsertError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertErr = err
}

// Inserted returns the chunks appended through Insert
func (m *MockVectorIndex) Inserted() []*domain.Chunk {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*domain.Chunk(nil), m.inserted...)
}

// SearchCalls returns the number of Search invocations
func (m *MockVectorIndex) SearchCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.searchCalls
}

// LastK returns the k passed to the most recent Search
func (m *MockVectorIndex) LastK() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastK
}

// Queries returns every query passed to Search
func (m *MockVectorIndex) Queries() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.queries...)
}

// Reset clears seeded and inserted chunks and injected errors
func (m *MockVectorIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seeded = nil
	m.inserted = nil
	m.searchErr = nil
	m.insertErr = nil
	m.searchCalls = 0
	m.queries = nil
}
