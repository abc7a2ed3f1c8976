package driven

import (
	"context"
)

// LLMService provides chat completion against a large language model.
// Implementations must be configured for deterministic-leaning output (temperature 0).
type LLMService interface {
	// Complete sends an optional system instruction and a user prompt and
	// returns the model's text reply
	Complete(ctx context.Context, system, prompt string) (string, error)

	// Model returns the model name being used
	Model() string

	// Ping verifies the LLM service is available
	Ping(ctx context.Context) error

	// Close releases resources held by the LLM service
	Close() error
}
