package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/istqb-chatbot/syllabus-core/internal/core/domain"
	"github.com/istqb-chatbot/syllabus-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ConversationStore = (*ConversationStore)(nil)

// ConversationStore implements driven.ConversationStore using PostgreSQL.
// Used when Redis is not configured. Every append pushes the session's expiry forward.
type ConversationStore struct {
	db  *DB
	ttl time.Duration
}

// NewConversationStore creates a new ConversationStore
func NewConversationStore(db *DB, ttl time.Duration) *ConversationStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ConversationStore{db: db, ttl: ttl}
}

// Append adds messages to the end of a session's history
func (s *ConversationStore) Append(ctx context.Context, sessionID string, messages ...*domain.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}
	expiresAt := time.Now().Add(s.ttl)

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM chat_messages WHERE expires_at <= NOW()`,
		); err != nil {
			return fmt.Errorf("failed to purge expired messages: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE chat_messages SET expires_at = $2 WHERE session_id = $1`,
			sessionID, expiresAt,
		); err != nil {
			return fmt.Errorf("failed to refresh session expiry: %w", err)
		}

		query := `
			INSERT INTO chat_messages (session_id, role, content, sources, created_at, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		for _, msg := range messages {
			sources, err := json.Marshal(msg.Sources)
			if err != nil {
				return fmt.Errorf("failed to marshal sources: %w", err)
			}
			if msg.Sources == nil {
				sources = []byte("[]")
			}
			if _, err := tx.ExecContext(ctx, query,
				sessionID,
				string(msg.Role),
				msg.Content,
				sources,
				msg.CreatedAt,
				expiresAt,
			); err != nil {
				return fmt.Errorf("failed to insert message: %w", err)
			}
		}
		return nil
	})
}

// List returns the unexpired history of a session, oldest first
func (s *ConversationStore) List(ctx context.Context, sessionID string) ([]*domain.ChatMessage, error) {
	query := `
		SELECT role, content, sources, created_at
		FROM chat_messages
		WHERE session_id = $1 AND expires_at > NOW()
		ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []*domain.ChatMessage{}
	for rows.Next() {
		var (
			msg     domain.ChatMessage
			role    string
			sources []byte
		)
		if err := rows.Scan(&role, &msg.Content, &sources, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Role = domain.ChatRole(role)
		if len(sources) > 0 {
			if err := json.Unmarshal(sources, &msg.Sources); err != nil {
				return nil, fmt.Errorf("failed to decode sources: %w", err)
			}
			if len(msg.Sources) == 0 {
				msg.Sources = nil
			}
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

// Clear deletes a session's history
func (s *ConversationStore) Clear(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
