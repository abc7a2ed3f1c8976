package driving

import (
	"context"

	"github.com/istqb-chatbot/syllabus-core/internal/core/domain"
)

// AuthService handles admin authentication for the curation API
type AuthService interface {
	// Authenticate checks the admin password and issues a token
	Authenticate(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error)

	// ValidateToken validates a JWT token and returns the auth context
	ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error)
}
