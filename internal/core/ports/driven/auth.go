package driven

import "github.com/istqb-chatbot/syllabus-core/internal/core/domain"

// AuthAdapter handles authentication cryptographic operations.
// Tokens are stateless, so there is no session storage behind it.
type AuthAdapter interface {
	// Password operations
	HashPassword(password string) (string, error)
	VerifyPassword(password, hash string) bool

	// Token operations
	GenerateToken(claims *domain.TokenClaims) (string, error)
	ParseToken(token string) (*domain.TokenClaims, error)
}
