package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"ErrNotFound", ErrNotFound, "not found"},
		{"ErrInvalidInput", ErrInvalidInput, "invalid input"},
		{"ErrEmptyQuestion", ErrEmptyQuestion, "question is empty"},
		{"ErrNotInSyllabus", ErrNotInSyllabus, "answer not found in syllabus"},
		{"ErrRetrievalFailed", ErrRetrievalFailed, "retrieval failed"},
		{"ErrGenerationFailed", ErrGenerationFailed, "generation failed"},
		{"ErrUnauthorized", ErrUnauthorized, "unauthorized"},
		{"ErrTokenExpired", ErrTokenExpired, "token expired"},
		{"ErrTokenInvalid", ErrTokenInvalid, "token invalid"},
		{"ErrInvalidCredentials", ErrInvalidCredentials, "invalid credentials"},
		{"ErrLockNotAcquired", ErrLockNotAcquired, "lock held by another process"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.msg {
				t.Errorf("expected %q, got %q", tt.msg, tt.err.Error())
			}
		})
	}
}

func TestErrorsAreDistinct(t *testing.T) {
	allErrors := []error{
		ErrNotFound,
		ErrInvalidInput,
		ErrEmptyQuestion,
		ErrNotInSyllabus,
		ErrRetrievalFailed,
		ErrGenerationFailed,
		ErrInvalidStatusTransition,
		ErrUnauthorized,
		ErrTokenExpired,
		ErrTokenInvalid,
		ErrInvalidCredentials,
		ErrLockNotAcquired,
		ErrInvalidProvider,
		ErrServiceUnavailable,
	}

	for i, a := range allErrors {
		for j, b := range allErrors {
			if i != j && errors.Is(a, b) {
				t.Errorf("errors %d and %d should be distinct: %v, %v", i, j, a, b)
			}
		}
	}
}

func TestErrorsWrap(t *testing.T) {
	wrapped := fmt.Errorf("%w: index unreachable", ErrRetrievalFailed)
	if !errors.Is(wrapped, ErrRetrievalFailed) {
		t.Error("expected wrapped error to match ErrRetrievalFailed")
	}
	if errors.Is(wrapped, ErrGenerationFailed) {
		t.Error("wrapped retrieval error must not match ErrGenerationFailed")
	}
}
