package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/istqb-chatbot/syllabus-core/internal/core/ports/driven"
)

var (
	_ driven.LanguageDetector = (*MockLanguageDetector)(nil)
	_ driven.Translator       = (*MockTranslator)(nil)
)

// MockLanguageDetector returns a fixed language unless a per-text override exists
type MockLanguageDetector struct {
	Default   string
	Overrides map[string]string
}

// NewMockLanguageDetector creates a detector that always answers lang
func NewMockLanguageDetector(lang string) *MockLanguageDetector {
	return &MockLanguageDetector{Default: lang, Overrides: map[string]string{}}
}

func (m *MockLanguageDetector) Detect(text string) string {
	if lang, ok := m.Overrides[text]; ok {
		return lang
	}
	if m.Default == "" {
		return "en"
	}
	return m.Default
}

// TranslateCall records one translation request
type TranslateCall struct {
	Text   string
	Target string
}

// MockTranslator tags text with the target language, e.g. "[English] xin chào"
type MockTranslator struct {
	mu    sync.Mutex
	Err   error
	calls []TranslateCall
}

// NewMockTranslator creates a new MockTranslator
func NewMockTranslator() *MockTranslator {
	return &MockTranslator{}
}

func (m *MockTranslator) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, TranslateCall{Text: text, Target: targetLanguage})
	if m.Err != nil {
		return "", m.Err
	}
	return fmt.Sprintf("[%s] %s", targetLanguage, text), nil
}

// Calls returns every recorded translation request
func (m *MockTranslator) Calls() []TranslateCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TranslateCall(nil), m.calls...)
}
