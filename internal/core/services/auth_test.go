package services

import (
	"context"
	"testing"
	"time"

	"github.com/istqb-chatbot/syllabus-core/internal/core/domain"
	"github.com/istqb-chatbot/syllabus-core/internal/core/ports/driven/mocks"
)

func newTestAuthService() (*mocks.MockAuthAdapter, *authService) {
	authAdapter := mocks.NewMockAuthAdapter()
	// Mock hasher uses plain text comparison
	svc := NewAuthService(authAdapter, "password123").(*authService)
	return authAdapter, svc
}

func TestAuthService_Authenticate(t *testing.T) {
	_, svc := newTestAuthService()

	tests := []struct {
		name    string
		req     domain.LoginRequest
		wantErr error
	}{
		{
			name:    "valid credentials",
			req:     domain.LoginRequest{Password: "password123"},
			wantErr: nil,
		},
		{
			name:    "empty password",
			req:     domain.LoginRequest{Password: ""},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "wrong password",
			req:     domain.LoginRequest{Password: "wrongpassword"},
			wantErr: domain.ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.Authenticate(context.Background(), tt.req)
			if err != tt.wantErr {
				t.Errorf("Authenticate() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr == nil {
				if resp.Token == "" {
					t.Error("expected token to be set")
				}
				if d := time.Until(resp.ExpiresAt); d < 23*time.Hour || d > 25*time.Hour {
					t.Errorf("expected ~24h expiry, got %v", d)
				}
			}
		})
	}
}

func TestAuthService_Authenticate_Disabled(t *testing.T) {
	svc := NewAuthService(mocks.NewMockAuthAdapter(), "")

	_, err := svc.Authenticate(context.Background(), domain.LoginRequest{Password: "anything"})
	if err != domain.ErrUnauthorized {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthService_ValidateToken(t *testing.T) {
	authAdapter, svc := newTestAuthService()

	resp, err := svc.Authenticate(context.Background(), domain.LoginRequest{Password: "password123"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	authCtx, err := svc.ValidateToken(context.Background(), resp.Token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !authCtx.IsAdmin() {
		t.Error("expected admin context")
	}
	if authCtx.Subject != domain.AdminSubject {
		t.Errorf("expected subject %q, got %q", domain.AdminSubject, authCtx.Subject)
	}

	// Empty token
	if _, err := svc.ValidateToken(context.Background(), ""); err != domain.ErrTokenInvalid {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}

	// Garbage token
	if _, err := svc.ValidateToken(context.Background(), "not-a-token!"); err != domain.ErrTokenInvalid {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}

	// Expired token
	expired, _ := authAdapter.GenerateToken(&domain.TokenClaims{
		Subject:   domain.AdminSubject,
		Role:      domain.RoleAdmin,
		IssuedAt:  time.Now().Add(-48 * time.Hour).Unix(),
		ExpiresAt: time.Now().Add(-24 * time.Hour).Unix(),
	})
	if _, err := svc.ValidateToken(context.Background(), expired); err != domain.ErrTokenExpired {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}

	// Wrong role
	other, _ := authAdapter.GenerateToken(&domain.TokenClaims{
		Subject:   "someone",
		Role:      "viewer",
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	})
	if _, err := svc.ValidateToken(context.Background(), other); err != domain.ErrUnauthorized {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}
