package mocks

import (
	"context"
	"sync"

	"github.com/istqb-chatbot/syllabus-core/internal/core/ports/driven"
)

var (
	_ driven.GroundedGenerator = (*MockGroundedGenerator)(nil)
	_ driven.GeneralGenerator  = (*MockGeneralGenerator)(nil)
)

// GroundedCall records one GroundedGenerator invocation
type GroundedCall struct {
	Context  string
	Question string
}

// MockGroundedGenerator returns a scripted reply and records its inputs.
type MockGroundedGenerator struct {
	mu    sync.Mutex
	Reply string
	Err   error
	// GenerateFn overrides Reply/Err when set
	GenerateFn func(context, question string) (string, error)
	calls      []GroundedCall
}

// NewMockGroundedGenerator creates a generator answering with reply
func NewMockGroundedGenerator(reply string) *MockGroundedGenerator {
	return &MockGroundedGenerator{Reply: reply}
}

func (m *MockGroundedGenerator) Generate(ctx context.Context, contextText, question string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, GroundedCall{Context: contextText, Question: question})
	fn, reply, err := m.GenerateFn, m.Reply, m.Err
	m.mu.Unlock()

	if fn != nil {
		return fn(contextText, question)
	}
	return reply, err
}

// Calls returns every recorded invocation
func (m *MockGroundedGenerator) Calls() []GroundedCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]GroundedCall(nil), m.calls...)
}

// MockGeneralGenerator returns a scripted reply and records its inputs.
type MockGeneralGenerator struct {
	mu        sync.Mutex
	Reply     string
	Err       error
	questions []string
}

// NewMockGeneralGenerator creates a generator answering with reply
func NewMockGeneralGenerator(reply string) *MockGeneralGenerator {
	return &MockGeneralGenerator{Reply: reply}
}

func (m *MockGeneralGenerator) Generate(ctx context.Context, question string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions = append(m.questions, question)
	return m.Reply, m.Err
}

// Questions returns every question received
func (m *MockGeneralGenerator) Questions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.questions...)
}
