// Package storage provides the syllabus document sources: a local
// directory or an S3 bucket prefix.
package storage

import (
	"fmt"
	"path"
	"strings"

	"github.com/istqb-chatbot/syllabus-core/internal/core/domain"
)

// Backend identifies a syllabus source implementation
type Backend string

const (
	BackendLocal Backend = "local"
	BackendS3    Backend = "s3"
)

// ParseBackend maps a configuration value to a Backend
func ParseBackend(s string) (Backend, error) {
	switch Backend(strings.ToLower(s)) {
	case "", BackendLocal:
		return BackendLocal, nil
	case BackendS3:
		return BackendS3, nil
	default:
		return "", fmt.Errorf("%w: unknown storage backend %q", domain.ErrInvalidInput, s)
	}
}

// isPDF reports whether a key names a PDF document
func isPDF(key string) bool {
	return strings.EqualFold(path.Ext(key), ".pdf")
}
