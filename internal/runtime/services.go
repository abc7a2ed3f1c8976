package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/istqb-chatbot/syllabus-core/internal/core/domain"
	"github.com/istqb-chatbot/syllabus-core/internal/core/ports/driven"
)

// Services holds the process-wide AI services.
// Consumers receive the stable proxies from Embedding() and LLM(), so the
// underlying services can be swapped or closed without rewiring.
// Thread-safe for concurrent access.
type Services struct {
	mu sync.RWMutex

	// Config tracks capability flags
	config *domain.RuntimeConfig

	// Dynamic services (can be nil)
	embeddingService driven.EmbeddingService
	llmService       driven.LLMService
}

// NewServices creates a new Services registry
func NewServices(config *domain.RuntimeConfig) *Services {
	return &Services{
		config: config,
	}
}

// Config returns the runtime configuration
func (s *Services) Config() *domain.RuntimeConfig {
	return s.config
}

// EmbeddingService returns the current embedding service (may be nil)
func (s *Services) EmbeddingService() driven.EmbeddingService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embeddingService
}

// LLMService returns the current LLM service (may be nil)
func (s *Services) LLMService() driven.LLMService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.llmService
}

// SetEmbeddingService updates the embedding service.
// Closes the old service if present. Updates config flags.
func (s *Services) SetEmbeddingService(svc driven.EmbeddingService) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embeddingService != nil {
		_ = s.embeddingService.Close()
	}

	s.embeddingService = svc
	s.config.SetEmbeddingAvailable(svc != nil)
}

// SetLLMService updates the LLM service.
// Closes the old service if present. Updates config flags.
func (s *Services) SetLLMService(svc driven.LLMService) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.llmService != nil {
		_ = s.llmService.Close()
	}

	s.llmService = svc
	s.config.SetLLMAvailable(svc != nil)
}

// Close shuts down all services
func (s *Services) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embeddingService != nil {
		_ = s.embeddingService.Close()
		s.embeddingService = nil
	}
	if s.llmService != nil {
		_ = s.llmService.Close()
		s.llmService = nil
	}

	s.config.SetEmbeddingAvailable(false)
	s.config.SetLLMAvailable(false)

	return nil
}

// ValidateAndSetEmbedding validates connectivity before setting embedding service
func (s *Services) ValidateAndSetEmbedding(ctx context.Context, svc driven.EmbeddingService) error {
	if svc == nil {
		s.SetEmbeddingService(nil)
		return nil
	}

	if err := svc.HealthCheck(ctx); err != nil {
		_ = svc.Close()
		return err
	}

	s.SetEmbeddingService(svc)
	return nil
}

// ValidateAndSetLLM validates connectivity before setting LLM service
func (s *Services) ValidateAndSetLLM(ctx context.Context, svc driven.LLMService) error {
	if svc == nil {
		s.SetLLMService(nil)
		return nil
	}

	if err := svc.Ping(ctx); err != nil {
		_ = svc.Close()
		return err
	}

	s.SetLLMService(svc)
	return nil
}

// Health probes every configured service. Missing services report
// "not configured"; failing ones report their error.
func (s *Services) Health(ctx context.Context) map[string]string {
	status := map[string]string{
		"embedding": "not configured",
		"llm":       "not configured",
	}
	if svc := s.EmbeddingService(); svc != nil {
		status["embedding"] = "ok"
		if err := svc.HealthCheck(ctx); err != nil {
			status["embedding"] = err.Error()
		}
	}
	if svc := s.LLMService(); svc != nil {
		status["llm"] = "ok"
		if err := svc.Ping(ctx); err != nil {
			status["llm"] = err.Error()
		}
	}
	return status
}

// Embedding returns an EmbeddingService that always delegates to the
// currently configured service.
func (s *Services) Embedding() driven.EmbeddingService {
	return embeddingProxy{s}
}

// LLM returns an LLMService that always delegates to the currently
// configured service.
func (s *Services) LLM() driven.LLMService {
	return llmProxy{s}
}

type embeddingProxy struct{ s *Services }

func (p embeddingProxy) current() (driven.EmbeddingService, error) {
	svc := p.s.EmbeddingService()
	if svc == nil {
		return nil, fmt.Errorf("embedding: %w", domain.ErrServiceUnavailable)
	}
	return svc, nil
}

func (p embeddingProxy) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	svc, err := p.current()
	if err != nil {
		return nil, err
	}
	return svc.Embed(ctx, texts)
}

func (p embeddingProxy) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	svc, err := p.current()
	if err != nil {
		return nil, err
	}
	return svc.EmbedQuery(ctx, query)
}

func (p embeddingProxy) Dimensions() int {
	if svc := p.s.EmbeddingService(); svc != nil {
		return svc.Dimensions()
	}
	return 0
}

func (p embeddingProxy) Model() string {
	if svc := p.s.EmbeddingService(); svc != nil {
		return svc.Model()
	}
	return ""
}

func (p embeddingProxy) HealthCheck(ctx context.Context) error {
	svc, err := p.current()
	if err != nil {
		return err
	}
	return svc.HealthCheck(ctx)
}

// Close is a no-op: the registry owns the service lifecycle.
func (p embeddingProxy) Close() error { return nil }

type llmProxy struct{ s *Services }

func (p llmProxy) current() (driven.LLMService, error) {
	svc := p.s.LLMService()
	if svc == nil {
		return nil, fmt.Errorf("llm: %w", domain.ErrServiceUnavailable)
	}
	return svc, nil
}

func (p llmProxy) Complete(ctx context.Context, system, prompt string) (string, error) {
	svc, err := p.current()
	if err != nil {
		return "", err
	}
	return svc.Complete(ctx, system, prompt)
}

func (p llmProxy) Model() string {
	if svc := p.s.LLMService(); svc != nil {
		return svc.Model()
	}
	return ""
}

func (p llmProxy) Ping(ctx context.Context) error {
	svc, err := p.current()
	if err != nil {
		return err
	}
	return svc.Ping(ctx)
}

// Close is a no-op: the registry owns the service lifecycle.
func (p llmProxy) Close() error { return nil }
