package driven

import (
	"context"

	"github.com/istqb-chatbot/syllabus-core/internal/core/domain"
)

// KnowledgeStore exposes chunk rows to curation and ingestion.
// The answering engine never uses it; it only reads and appends via VectorIndex.
type KnowledgeStore interface {
	// ListByStatus returns chunks whose metadata status matches, oldest first
	ListByStatus(ctx context.Context, status domain.KnowledgeStatus, limit, offset int) ([]*domain.Chunk, error)

	// CountByStatus returns the number of chunks with the given status
	CountByStatus(ctx context.Context, status domain.KnowledgeStatus) (int, error)

	// Get retrieves a chunk by ID
	Get(ctx context.Context, id string) (*domain.Chunk, error)

	// UpdateStatus rewrites the status key of a chunk's metadata
	UpdateStatus(ctx context.Context, id string, status domain.KnowledgeStatus) error

	// Delete removes a chunk
	Delete(ctx context.Context, id string) error

	// ReplaceSyllabus removes every ingested chunk (rows without a status) and
	// stores the pre-embedded replacements atomically. Learned chunks are kept;
	// those passed in reembedded get their stored vector overwritten in the same
	// transaction. Returns how many chunks were removed.
	ReplaceSyllabus(ctx context.Context, chunks, reembedded []*domain.Chunk) (int, error)
}
