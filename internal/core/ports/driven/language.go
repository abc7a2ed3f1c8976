package driven

import "context"

// LanguageDetector identifies the language of a text.
type LanguageDetector interface {
	// Detect returns an ISO 639-1 code such as "en" or "vi".
	// Undetectable input yields "en".
	Detect(text string) string
}

// Translator translates free text between languages.
type Translator interface {
	// Translate renders text in the named target language (e.g. "English")
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
}
