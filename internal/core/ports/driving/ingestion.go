package driving

import (
	"context"
	"time"

	"github.com/istqb-chatbot/syllabus-core/internal/core/domain"
)

// IngestResult summarises an ingestion run
type IngestResult struct {
	Documents int           `json:"documents"`
	Pages     int           `json:"pages"`
	Chunks    int           `json:"chunks"`
	Removed   int           `json:"removed"`
	Refreshed int           `json:"refreshed"` // learned chunks re-embedded
	Duration  time.Duration `json:"duration"`
}

// IngestionService rebuilds the syllabus portion of the index
type IngestionService interface {
	// Ingest replaces all syllabus chunks with freshly extracted ones.
	// Learned chunks are kept, with their vectors recomputed by the current model.
	Ingest(ctx context.Context) (*IngestResult, error)

	// Schedule enqueues an ingestion task for the worker
	Schedule(ctx context.Context, requestedBy string) (*domain.Task, error)

	// TaskStatus returns a previously scheduled task
	TaskStatus(ctx context.Context, taskID string) (*domain.Task, error)
}
