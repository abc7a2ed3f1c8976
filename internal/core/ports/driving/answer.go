package driving

import (
	"context"

	"github.com/istqb-chatbot/syllabus-core/internal/core/domain"
)

// AnswerService is the retrieval-and-fallback decision engine.
type AnswerService interface {
	// Answer runs the one-shot pipeline: retrieve, gate on the answer policy,
	// then either generate from context or fall back to general knowledge.
	// It never writes to the index.
	Answer(ctx context.Context, question string) (*domain.AnswerEnvelope, error)

	// SearchInSyllabus answers from retrieved context only.
	// Returns domain.ErrNotInSyllabus when retrieval is empty, the syllabus
	// policy rejects the results, or the generator replies with the sentinel.
	SearchInSyllabus(ctx context.Context, question string) (*domain.AnswerEnvelope, error)

	// SearchWithFallbackAndLearn answers from general knowledge and appends the
	// answer to the index as pending knowledge. Write-back failures are logged only.
	SearchWithFallbackAndLearn(ctx context.Context, question string) (*domain.AnswerEnvelope, error)
}
