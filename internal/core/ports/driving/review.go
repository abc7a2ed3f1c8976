package driving

import (
	"context"

	"github.com/istqb-chatbot/syllabus-core/internal/core/domain"
)

// PendingPage is one page of knowledge awaiting review
type PendingPage struct {
	Items  []*domain.Chunk `json:"items"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// ReviewService lets a curator approve or reject learned knowledge
type ReviewService interface {
	// ListPending returns learned chunks awaiting review, oldest first
	ListPending(ctx context.Context, limit, offset int) (*PendingPage, error)

	// Approve marks a pending chunk as approved
	Approve(ctx context.Context, id string) (*domain.Chunk, error)

	// Reject deletes a pending chunk
	Reject(ctx context.Context, id string) error
}
