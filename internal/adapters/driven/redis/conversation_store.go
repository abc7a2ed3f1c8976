package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/istqb-chatbot/syllabus-core/internal/core/domain"
	"github.com/istqb-chatbot/syllabus-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ConversationStore = (*ConversationStore)(nil)

const (
	// Key prefix for chat histories
	conversationPrefix = "syllabus:chat:"

	// DefaultHistoryTTL is how long an idle conversation is kept
	DefaultHistoryTTL = 24 * time.Hour
)

// ConversationStore implements driven.ConversationStore using Redis lists.
// Each session is one list of JSON messages; the TTL is refreshed on every append.
type ConversationStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewConversationStore creates a new Redis-backed ConversationStore
func NewConversationStore(client *redis.Client, ttl time.Duration) *ConversationStore {
	if ttl <= 0 {
		ttl = DefaultHistoryTTL
	}
	return &ConversationStore{client: client, ttl: ttl}
}

// Append adds messages to the end of a session's history
func (s *ConversationStore) Append(ctx context.Context, sessionID string, messages ...*domain.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}

	values := make([]any, 0, len(messages))
	for _, msg := range messages {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		values = append(values, data)
	}

	key := conversationPrefix + sessionID

	// Use pipeline for atomic operations
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, values...)
	pipe.Expire(ctx, key, s.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append messages: %w", err)
	}
	return nil
}

// List returns the history of a session, oldest first
func (s *ConversationStore) List(ctx context.Context, sessionID string) ([]*domain.ChatMessage, error) {
	raw, err := s.client.LRange(ctx, conversationPrefix+sessionID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	messages := make([]*domain.ChatMessage, 0, len(raw))
	for _, item := range raw {
		var msg domain.ChatMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message: %w", err)
		}
		messages = append(messages, &msg)
	}
	return messages, nil
}

// Clear deletes a session's history
func (s *ConversationStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, conversationPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}
