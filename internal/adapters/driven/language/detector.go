package language

import (
	"strings"

	"github.com/pemistahl/lingua-go"

	"github.com/istqb-chatbot/syllabus-core/internal/core/domain"
	"github.com/istqb-chatbot/syllabus-core/internal/core/ports/driven"
)

// Ensure Detector implements LanguageDetector
var _ driven.LanguageDetector = (*Detector)(nil)

// Detector identifies English and Vietnamese messages.
// It is safe for concurrent use.
type Detector struct {
	detector lingua.LanguageDetector
}

// NewDetector builds a detector restricted to the languages the chat supports.
// Building loads language models, so one instance should be shared.
func NewDetector() *Detector {
	return &Detector{
		detector: lingua.NewLanguageDetectorBuilder().
			FromLanguages(lingua.English, lingua.Vietnamese).
			Build(),
	}
}

// Detect returns "vi" for Vietnamese and "en" otherwise
func (d *Detector) Detect(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.LanguageEnglish
	}

	lang, ok := d.detector.DetectLanguageOf(text)
	if ok && lang == lingua.Vietnamese {
		return domain.LanguageVietnamese
	}
	return domain.LanguageEnglish
}
