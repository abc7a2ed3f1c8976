package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/istqb-chatbot/syllabus-core/internal/core/domain"
	"github.com/istqb-chatbot/syllabus-core/internal/core/ports/driven"
	"github.com/istqb-chatbot/syllabus-core/internal/core/ports/driving"
)

// Ensure ingestionService implements IngestionService
var _ driving.IngestionService = (*ingestionService)(nil)

// IngestLockName guards ingestion across instances
const IngestLockName = "syllabus-ingest"

// ingestionService rebuilds the syllabus chunks.
// The flow is:
//  1. Acquire the ingest lock
//  2. List documents from the syllabus source
//  3. Extract pages and run them through the post-processing pipeline
//  4. Embed segments and learned chunks in batches with the current model
//  5. Replace previously ingested chunks and refresh learned vectors atomically
type ingestionService struct {
	lock      driven.DistributedLock
	source    driven.SyllabusSource
	extractor driven.PageExtractor
	pipeline  driven.PostProcessorPipeline
	embedder  driven.EmbeddingService
	store     driven.KnowledgeStore
	queue     driven.TaskQueue
	logger    *zap.Logger

	batchSize int
	lockTTL   time.Duration
}

// IngestionConfig holds dependencies for the IngestionService.
type IngestionConfig struct {
	Lock      driven.DistributedLock
	Source    driven.SyllabusSource
	Extractor driven.PageExtractor
	Pipeline  driven.PostProcessorPipeline
	Embedder  driven.EmbeddingService
	Store     driven.KnowledgeStore
	Queue     driven.TaskQueue // optional; Schedule is unavailable without it
	Logger    *zap.Logger

	// BatchSize is the number of segments embedded per call (default 64)
	BatchSize int
	// LockTTL bounds how long a crashed run can hold the lock (default 30m)
	LockTTL time.Duration
}

// NewIngestionService creates a new IngestionService
func NewIngestionService(cfg IngestionConfig) driving.IngestionService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 64
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 30 * time.Minute
	}

	return &ingestionService{
		lock:      cfg.Lock,
		source:    cfg.Source,
		extractor: cfg.Extractor,
		pipeline:  cfg.Pipeline,
		embedder:  cfg.Embedder,
		store:     cfg.Store,
		queue:     cfg.Queue,
		logger:    logger,
		batchSize: batchSize,
		lockTTL:   lockTTL,
	}
}

// Ingest replaces every syllabus chunk with freshly extracted ones
func (s *ingestionService) Ingest(ctx context.Context) (*driving.IngestResult, error) {
	if s.source == nil || s.extractor == nil {
		return nil, fmt.Errorf("syllabus source not configured: %w", domain.ErrServiceUnavailable)
	}
	start := time.Now()

	acquired, err := s.lock.Acquire(ctx, IngestLockName, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire ingest lock: %w", err)
	}
	if !acquired {
		return nil, domain.ErrLockNotAcquired
	}
	defer func() {
		// Released even when ctx is cancelled
		if err := s.lock.Release(context.WithoutCancel(ctx), IngestLockName); err != nil {
			s.logger.Warn("failed to release ingest lock", zap.Error(err))
		}
	}()

	s.logger.Info("starting ingestion", zap.String("source", s.source.Name()))

	keys, err := s.source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list syllabus documents: %w", err)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no syllabus documents in %s source: %w", s.source.Name(), domain.ErrNotFound)
	}

	result := &driving.IngestResult{Documents: len(keys)}
	var chunks []*domain.Chunk

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		docChunks, pages, err := s.processDocument(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to process %s: %w", key, err)
		}
		result.Pages += pages
		chunks = append(chunks, docChunks...)

		s.logger.Info("document processed",
			zap.String("document", key),
			zap.Int("pages", pages),
			zap.Int("chunks", len(docChunks)),
		)

		if err := s.lock.Extend(ctx, IngestLockName, s.lockTTL); err != nil {
			s.logger.Debug("ingest lock not extended", zap.Error(err))
		}
	}

	// Learned chunks are re-embedded with the current model as well
	learned, err := s.learnedChunks(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.embed(ctx, append(chunks[:len(chunks):len(chunks)], learned...)); err != nil {
		return nil, err
	}

	// Swap only after every embedding succeeded
	removed, err := s.store.ReplaceSyllabus(ctx, chunks, learned)
	if err != nil {
		return nil, fmt.Errorf("failed to replace syllabus chunks: %w", err)
	}
	result.Removed = removed
	result.Refreshed = len(learned)
	result.Chunks = len(chunks)
	result.Duration = time.Since(start)

	s.logger.Info("ingestion completed",
		zap.Int("documents", result.Documents),
		zap.Int("pages", result.Pages),
		zap.Int("chunks", result.Chunks),
		zap.Int("removed", result.Removed),
		zap.Int("refreshed", result.Refreshed),
		zap.Duration("duration", result.Duration),
	)

	return result, nil
}

// processDocument extracts and segments one document
func (s *ingestionService) processDocument(ctx context.Context, key string) ([]*domain.Chunk, int, error) {
	r, size, err := s.source.Open(ctx, key)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open: %w", err)
	}
	if c, ok := r.(interface{ Close() error }); ok {
		defer c.Close()
	}

	pages, err := s.extractor.Extract(r, size)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to extract pages: %w", err)
	}

	now := time.Now()
	var chunks []*domain.Chunk
	for _, page := range pages {
		for _, seg := range s.pipeline.Process(page.Text) {
			chunks = append(chunks, &domain.Chunk{
				ID:        domain.GenerateID(),
				Content:   seg.Content,
				Metadata:  domain.SyllabusMetadata(key, page.Number),
				CreatedAt: now,
			})
		}
	}
	return chunks, len(pages), nil
}

const learnedPageSize = 200

// learnedChunks loads every pending and approved chunk
func (s *ingestionService) learnedChunks(ctx context.Context) ([]*domain.Chunk, error) {
	var out []*domain.Chunk
	for _, status := range []domain.KnowledgeStatus{domain.KnowledgeStatusPending, domain.KnowledgeStatusApproved} {
		for offset := 0; ; offset += learnedPageSize {
			page, err := s.store.ListByStatus(ctx, status, learnedPageSize, offset)
			if err != nil {
				return nil, fmt.Errorf("failed to list %s chunks: %w", status, err)
			}
			out = append(out, page...)
			if len(page) < learnedPageSize {
				break
			}
		}
	}
	return out, nil
}

// embed fills in chunk embeddings in batches
func (s *ingestionService) embed(ctx context.Context, chunks []*domain.Chunk) error {
	for i := 0; i < len(chunks); i += s.batchSize {
		batch := chunks[i:min(i+s.batchSize, len(chunks))]

		texts := make([]string, len(batch))
		for j, c := range batch {
			texts[j] = c.Content
		}

		vectors, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed chunks: %w", err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(batch))
		}
		for j, c := range batch {
			c.Embedding = vectors[j]
		}
	}
	return nil
}

// Schedule enqueues an ingestion task for the worker
func (s *ingestionService) Schedule(ctx context.Context, requestedBy string) (*domain.Task, error) {
	if s.queue == nil {
		return nil, fmt.Errorf("task queue not configured: %w", domain.ErrServiceUnavailable)
	}

	task := domain.NewIngestTask(requestedBy)
	if err := s.queue.Enqueue(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to enqueue ingest task: %w", err)
	}

	s.logger.Info("ingestion scheduled",
		zap.String("task_id", task.ID),
		zap.String("requested_by", requestedBy),
	)
	return task, nil
}

// TaskStatus returns a scheduled task
func (s *ingestionService) TaskStatus(ctx context.Context, taskID string) (*domain.Task, error) {
	if s.queue == nil {
		return nil, fmt.Errorf("task queue not configured: %w", domain.ErrServiceUnavailable)
	}

	task, err := s.queue.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, domain.ErrNotFound
	}
	return task, nil
}
