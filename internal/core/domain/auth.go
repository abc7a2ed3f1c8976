package domain

import "time"

// RoleAdmin is the only role issued: the curator managing learned knowledge.
const RoleAdmin = "admin"

// AdminSubject is the token subject for the single shared admin account.
const AdminSubject = "admin"

// AuthContext contains authenticated admin info for request context
type AuthContext struct {
	Subject   string    `json:"subject"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsAdmin checks if the authenticated caller is an admin
func (a *AuthContext) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

// LoginRequest represents an admin login attempt
type LoginRequest struct {
	Password string `json:"password" validate:"required"`
}

// LoginResponse is returned after successful authentication
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenClaims represents the JWT token payload
type TokenClaims struct {
	Subject   string `json:"sub"`
	Role      string `json:"role"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}
