package driving

import (
	"context"

	"github.com/istqb-chatbot/syllabus-core/internal/core/domain"
)

// ChatRequest is one user turn
type ChatRequest struct {
	SessionID string          `json:"session_id" validate:"omitempty,max=128"`
	Message   string          `json:"message" validate:"required,max=4000"`
	Mode      domain.ChatMode `json:"mode" validate:"omitempty,oneof=staged oneshot"`
}

// ChatService runs conversational turns on top of the AnswerService,
// adding translation and per-session history.
type ChatService interface {
	// Ask answers one message and records the exchange in the session history
	Ask(ctx context.Context, req ChatRequest) (*domain.ChatResponse, error)

	// History returns the session's messages, starting with the greeting
	History(ctx context.Context, sessionID string) ([]*domain.ChatMessage, error)

	// Reset clears a session's history
	Reset(ctx context.Context, sessionID string) error
}
