package driven

import (
	"context"
	"io"
)

// SyllabusSource lists and opens the documents to ingest.
type SyllabusSource interface {
	// List returns the keys of all PDF documents, sorted
	List(ctx context.Context) ([]string, error)

	// Open returns a reader over a document's bytes and its size
	Open(ctx context.Context, key string) (io.ReaderAt, int64, error)

	// Name identifies the backend for logs ("local", "s3")
	Name() string
}

// Page is the extracted text of one document page.
type Page struct {
	Number int // zero-based
	Text   string
}

// PageExtractor extracts per-page text from a document.
type PageExtractor interface {
	Extract(r io.ReaderAt, size int64) ([]Page, error)
}
