package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/istqb-chatbot/syllabus-core/internal/core/domain"
	"github.com/istqb-chatbot/syllabus-core/internal/core/ports/driven"
	"github.com/istqb-chatbot/syllabus-core/internal/core/ports/driving"
)

// Ensure reviewService implements ReviewService
var _ driving.ReviewService = (*reviewService)(nil)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// reviewService is the knowledge review gate over learned chunks
type reviewService struct {
	store  driven.KnowledgeStore
	logger *zap.Logger
}

// NewReviewService creates a new ReviewService
func NewReviewService(store driven.KnowledgeStore, logger *zap.Logger) driving.ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &reviewService{store: store, logger: logger}
}

// ListPending returns learned chunks awaiting review
func (s *reviewService) ListPending(ctx context.Context, limit, offset int) (*driving.PendingPage, error) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}

	items, err := s.store.ListByStatus(ctx, domain.KnowledgeStatusPending, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending knowledge: %w", err)
	}
	total, err := s.store.CountByStatus(ctx, domain.KnowledgeStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending knowledge: %w", err)
	}

	return &driving.PendingPage{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}, nil
}

// Approve moves a pending chunk to approved
func (s *reviewService) Approve(ctx context.Context, id string) (*domain.Chunk, error) {
	chunk, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !chunk.Metadata.Status().CanTransitionTo(domain.KnowledgeStatusApproved) {
		return nil, domain.ErrInvalidStatusTransition
	}

	if err := s.store.UpdateStatus(ctx, id, domain.KnowledgeStatusApproved); err != nil {
		return nil, err
	}
	s.logger.Info("knowledge approved", zap.String("chunk_id", id))

	return s.store.Get(ctx, id)
}

// Reject deletes a pending chunk. Ingested and approved chunks cannot be rejected.
func (s *reviewService) Reject(ctx context.Context, id string) error {
	chunk, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if chunk.Metadata.Status() != domain.KnowledgeStatusPending {
		return domain.ErrInvalidStatusTransition
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("knowledge rejected", zap.String("chunk_id", id))
	return nil
}
