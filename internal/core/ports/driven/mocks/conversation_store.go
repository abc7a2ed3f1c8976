package mocks

import (
	"context"
	"sync"

	"github.com/istqb-chatbot/syllabus-core/internal/core/domain"
	"github.com/istqb-chatbot/syllabus-core/internal/core/ports/driven"
)

var _ driven.ConversationStore = (*MockConversationStore)(nil)

// MockConversationStore keeps chat histories in memory
type MockConversationStore struct {
	mu       sync.Mutex
	sessions map[string][]*domain.ChatMessage

	// AppendErr, when set, fails every Append
	AppendErr error
}

// NewMockConversationStore creates a new MockConversationStore
func NewMockConversationStore() *MockConversationStore {
	return &MockConversationStore{sessions: make(map[string][]*domain.ChatMessage)}
}

func (m *MockConversationStore) Append(ctx context.Context, sessionID string, messages ...*domain.ChatMessage) error {
	if m.AppendErr != nil {
		return m.AppendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = append(m.sessions[sessionID], messages...)
	return nil
}

func (m *MockConversationStore) List(ctx context.Context, sessionID string) ([]*domain.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.ChatMessage{}, m.sessions[sessionID]...), nil
}

func (m *MockConversationStore) Clear(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}
