package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/istqb-chatbot/syllabus-core/internal/core/domain"
	"github.com/istqb-chatbot/syllabus-core/internal/core/ports/driven"
	"github.com/istqb-chatbot/syllabus-core/internal/core/ports/driving"
)

// Ensure engine implements AnswerService
var _ driving.AnswerService = (*engine)(nil)

// contextSeparator joins retrieved chunk contents into the grounding context
const contextSeparator = "\n\n"

// engine is the retrieval decision engine.
// It holds no per-call state, so a single instance serves concurrent requests.
type engine struct {
	index          driven.VectorIndex
	grounded       driven.GroundedGenerator
	general        driven.GeneralGenerator
	logger         *zap.Logger
	topK           int
	answerPolicy   RelevancePolicy
	syllabusPolicy RelevancePolicy
}

// EngineOption customises the engine
type EngineOption func(*engine)

// WithAnswerPolicy sets the policy gating the one-shot Answer pipeline
func WithAnswerPolicy(p RelevancePolicy) EngineOption {
	return func(e *engine) {
		if p != nil {
			e.answerPolicy = p
		}
	}
}

// WithSyllabusPolicy sets the policy gating SearchInSyllabus
func WithSyllabusPolicy(p RelevancePolicy) EngineOption {
	return func(e *engine) {
		if p != nil {
			e.syllabusPolicy = p
		}
	}
}

// WithTopK sets how many chunks are retrieved per question
func WithTopK(k int) EngineOption {
	return func(e *engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

// EngineOptionsFromConfig translates configuration into engine options
func EngineOptionsFromConfig(cfg domain.EngineConfig) ([]EngineOption, error) {
	answer, err := PolicyByName(cfg.AnswerPolicy, cfg.ScoreThreshold)
	if err != nil {
		return nil, fmt.Errorf("answer policy: %w", err)
	}
	syllabus, err := PolicyByName(cfg.SyllabusPolicy, cfg.ScoreThreshold)
	if err != nil {
		return nil, fmt.Errorf("syllabus policy: %w", err)
	}
	return []EngineOption{
		WithTopK(cfg.TopK),
		WithAnswerPolicy(answer),
		WithSyllabusPolicy(syllabus),
	}, nil
}

// NewEngine creates the AnswerService
func NewEngine(
	index driven.VectorIndex,
	grounded driven.GroundedGenerator,
	general driven.GeneralGenerator,
	logger *zap.Logger,
	opts ...EngineOption,
) driving.AnswerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := domain.DefaultEngineConfig()
	e := &engine{
		index:          index,
		grounded:       grounded,
		general:        general,
		logger:         logger,
		topK:           defaults.TopK,
		answerPolicy:   ThresholdPolicy{Threshold: defaults.ScoreThreshold},
		syllabusPolicy: SentinelOnlyPolicy{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Answer runs retrieve, gate, then grounded or general generation. Nothing is written back.
func (e *engine) Answer(ctx context.Context, question string) (*domain.AnswerEnvelope, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.ErrEmptyQuestion
	}

	results, err := e.retrieve(ctx, question)
	if err != nil {
		return nil, err
	}

	if !e.answerPolicy.Admit(results) {
		e.logger.Debug("retrieval not relevant, using general generator",
			zap.String("policy", e.answerPolicy.Name()),
			zap.Int("results", len(results)),
		)
		answer, err := e.generateGeneral(ctx, question)
		if err != nil {
			return nil, err
		}
		return domain.FallbackEnvelope(answer), nil
	}

	answer, err := e.generateGrounded(ctx, results, question)
	if err != nil {
		return nil, err
	}
	if isSentinel(answer) {
		return domain.NotFoundEnvelope(), nil
	}
	return &domain.AnswerEnvelope{Answer: answer, Sources: sourcesOf(results)}, nil
}

// SearchInSyllabus answers strictly from retrieved context
func (e *engine) SearchInSyllabus(ctx context.Context, question string) (*domain.AnswerEnvelope, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.ErrEmptyQuestion
	}

	results, err := e.retrieve(ctx, question)
	if err != nil {
		return nil, err
	}
	if !e.syllabusPolicy.Admit(results) {
		return nil, domain.ErrNotInSyllabus
	}

	answer, err := e.generateGrounded(ctx, results, question)
	if err != nil {
		return nil, err
	}
	if isSentinel(answer) {
		return nil, domain.ErrNotInSyllabus
	}
	return &domain.AnswerEnvelope{Answer: answer, Sources: sourcesOf(results)}, nil
}

// SearchWithFallbackAndLearn answers from general knowledge and records the exchange as pending knowledge
func (e *engine) SearchWithFallbackAndLearn(ctx context.Context, question string) (*domain.AnswerEnvelope, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.ErrEmptyQuestion
	}

	answer, err := e.generateGeneral(ctx, question)
	if err != nil {
		return nil, err
	}

	outcome := e.learn(ctx, question, answer)
	if outcome.Succeeded() {
		e.logger.Info("learned fallback answer",
			zap.String("chunk_id", outcome.ChunkID),
			zap.Duration("duration", outcome.Duration),
		)
	} else {
		e.logger.Warn("learn write-back failed",
			zap.String("question", outcome.Question),
			zap.Duration("duration", outcome.Duration),
			zap.Error(outcome.Err),
		)
	}

	return domain.FallbackEnvelope(answer), nil
}

func (e *engine) retrieve(ctx context.Context, question string) ([]*domain.ScoredChunk, error) {
	results, err := e.index.Search(ctx, question, e.topK)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRetrievalFailed, err)
	}
	if len(results) > e.topK {
		results = results[:e.topK]
	}
	return results, nil
}

func (e *engine) generateGrounded(ctx context.Context, results []*domain.ScoredChunk, question string) (string, error) {
	answer, err := e.grounded.Generate(ctx, buildContext(results), question)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
	}
	return answer, nil
}

func (e *engine) generateGeneral(ctx context.Context, question string) (string, error) {
	answer, err := e.general.Generate(ctx, question)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
	}
	return answer, nil
}

func (e *engine) learn(ctx context.Context, question, answer string) domain.LearnOutcome {
	start := time.Now()
	content := fmt.Sprintf("Question: %s\nAnswer: %s", question, answer)
	id, err := e.index.Insert(ctx, content, domain.LearnedMetadata())
	if err == nil && id == "" {
		err = fmt.Errorf("index returned no chunk id")
	}
	return domain.LearnOutcome{
		Question: question,
		ChunkID:  id,
		Err:      err,
		Duration: time.Since(start),
	}
}

func buildContext(results []*domain.ScoredChunk) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if r.Chunk == nil {
			continue
		}
		parts = append(parts, r.Chunk.Content)
	}
	return strings.Join(parts, contextSeparator)
}

// sourcesOf returns the metadata of every retrieved chunk, in retrieval order
func sourcesOf(results []*domain.ScoredChunk) []domain.Metadata {
	sources := make([]domain.Metadata, 0, len(results))
	for _, r := range results {
		if r.Chunk == nil || r.Chunk.Metadata == nil {
			sources = append(sources, domain.Metadata{})
			continue
		}
		sources = append(sources, r.Chunk.Metadata.Clone())
	}
	return sources
}

func isSentinel(answer string) bool {
	return strings.Contains(answer, domain.NotFoundSentinel)
}
