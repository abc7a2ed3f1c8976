// Package pdf extracts per-page plain text from syllabus PDFs.
package pdf

import (
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"

	"github.com/istqb-chatbot/syllabus-core/internal/core/ports/driven"
)

// Ensure Extractor implements PageExtractor
var _ driven.PageExtractor = (*Extractor)(nil)

// Extractor reads page text with ledongthuc/pdf
type Extractor struct{}

// NewExtractor creates a PDF page extractor
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns one Page per PDF page, numbered from zero.
// Pages without text are returned with empty Text so numbering stays aligned.
func (e *Extractor) Extract(r io.ReaderAt, size int64) (pages []driven.Page, err error) {
	// The parser panics on some malformed streams
	defer func() {
		if rec := recover(); rec != nil {
			pages = nil
			err = fmt.Errorf("malformed pdf: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	total := reader.NumPage()
	pages = make([]driven.Page, 0, total)
	for i := 1; i <= total; i++ {
		page := driven.Page{Number: i - 1}

		p := reader.Page(i)
		if !p.V.IsNull() {
			text, err := p.GetPlainText(nil)
			if err != nil {
				return nil, fmt.Errorf("failed to read page %d: %w", i, err)
			}
			page.Text = text
		}

		pages = append(pages, page)
	}

	return pages, nil
}
