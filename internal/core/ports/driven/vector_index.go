package driven

import (
	"context"

	"github.com/istqb-chatbot/syllabus-core/internal/core/domain"
)

// VectorIndex stores chunks with their embeddings and serves nearest-neighbour search.
// It embeds text itself, so callers deal in plain strings.
type VectorIndex interface {
	// Search returns up to k chunks ordered by ascending distance to query.
	// Identical index state and query yield identical results.
	Search(ctx context.Context, query string, k int) ([]*domain.ScoredChunk, error)

	// Insert embeds and appends a new chunk, returning its ID.
	// Inserting the same content twice creates two chunks.
	Insert(ctx context.Context, content string, metadata domain.Metadata) (string, error)
}
