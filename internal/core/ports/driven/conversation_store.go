package driven

import (
	"context"

	"github.com/istqb-chatbot/syllabus-core/internal/core/domain"
)

// ConversationStore persists chat history per session.
type ConversationStore interface {
	// Append adds messages to the end of a session's history
	Append(ctx context.Context, sessionID string, messages ...*domain.ChatMessage) error

	// List returns the full history of a session, oldest first.
	// An unknown session yields an empty slice.
	List(ctx context.Context, sessionID string) ([]*domain.ChatMessage, error)

	// Clear deletes a session's history
	Clear(ctx context.Context, sessionID string) error
}
