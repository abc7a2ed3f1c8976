package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmptyQuestion indicates a blank question was submitted
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrNotInSyllabus indicates the syllabus does not answer the question
	ErrNotInSyllabus = errors.New("answer not found in syllabus")

	// ErrRetrievalFailed indicates the vector index or embedder failed
	ErrRetrievalFailed = errors.New("retrieval failed")

	// ErrGenerationFailed indicates a generator call failed
	ErrGenerationFailed = errors.New("generation failed")

	// ErrInvalidStatusTransition indicates a curation move that is not allowed
	ErrInvalidStatusTransition = errors.New("invalid status transition")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrInvalidCredentials indicates a wrong admin password
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrLockNotAcquired indicates another process holds the named lock
	ErrLockNotAcquired = errors.New("lock held by another process")

	// ErrInvalidProvider indicates an unknown AI provider was specified
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrServiceUnavailable indicates the AI service could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")
)
