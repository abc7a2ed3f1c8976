package mocks

import (
	"context"
	"sync"

	"github.com/istqb-chatbot/syllabus-core/internal/core/ports/driven"
)

var _ driven.LLMService = (*MockLLMService)(nil)

// LLMCall records one Complete invocation
type LLMCall struct {
	System string
	Prompt string
}

// MockLLMService is a mock implementation of LLMService for testing
type MockLLMService struct {
	mu         sync.Mutex
	CompleteFn func(system, prompt string) (string, error)
	Reply      string
	Err        error
	PingErr    error
	calls      []LLMCall
}

// NewMockLLMService creates a MockLLMService answering with reply
func NewMockLLMService(reply string) *MockLLMService {
	return &MockLLMService{Reply: reply}
}

func (m *MockLLMService) Complete(ctx context.Context, system, prompt string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, LLMCall{System: system, Prompt: prompt})
	fn, reply, err := m.CompleteFn, m.Reply, m.Err
	m.mu.Unlock()

	if fn != nil {
		return fn(system, prompt)
	}
	return reply, err
}

func (m *MockLLMService) Model() string {
	return "mock-llm"
}

func (m *MockLLMService) Ping(ctx context.Context) error {
	return m.PingErr
}

func (m *MockLLMService) Close() error {
	return nil
}

// Calls returns every recorded invocation
func (m *MockLLMService) Calls() []LLMCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LLMCall(nil), m.calls...)
}
