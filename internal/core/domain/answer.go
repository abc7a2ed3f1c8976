package domain

import "time"

// NotFoundSentinel is the exact phrase the grounded generator is instructed to
// reply with when the context does not answer the question.
const NotFoundSentinel = "Tôi không tìm thấy thông tin về điều này trong tài liệu."

// AnswerEnvelope is the result of every answering operation.
// Sources is empty exactly when Answer is NotFoundSentinel.
type AnswerEnvelope struct {
	Answer  string     `json:"answer"`
	Sources []Metadata `json:"sources"`
}

// IsNotFound reports whether the envelope carries the sentinel answer.
func (e *AnswerEnvelope) IsNotFound() bool {
	return e.Answer == NotFoundSentinel && len(e.Sources) == 0
}

// NotFoundEnvelope returns the sentinel envelope.
func NotFoundEnvelope() *AnswerEnvelope {
	return &AnswerEnvelope{Answer: NotFoundSentinel, Sources: []Metadata{}}
}

// FallbackEnvelope wraps a general-generator answer.
func FallbackEnvelope(answer string) *AnswerEnvelope {
	return &AnswerEnvelope{Answer: answer, Sources: []Metadata{FallbackSource()}}
}

// AnswerPath records which branch produced an answer.
type AnswerPath string

const (
	AnswerPathSyllabus AnswerPath = "syllabus"
	AnswerPathFallback AnswerPath = "fallback"
	AnswerPathOneShot  AnswerPath = "oneshot"
)

// LearnOutcome is the result of the best-effort write-back.
// It is reported to logs only and never returned to callers.
type LearnOutcome struct {
	Question string
	ChunkID  string
	Err      error
	Duration time.Duration
}

// Succeeded reports whether the write-back stored a chunk.
func (o LearnOutcome) Succeeded() bool {
	return o.Err == nil && o.ChunkID != ""
}

// Relevance policy names.
const (
	PolicyThreshold = "threshold"
	PolicySentinel  = "sentinel"
)

// EngineConfig holds the tunables of the retrieval decision engine.
type EngineConfig struct {
	TopK           int     `json:"top_k"`
	ScoreThreshold float64 `json:"score_threshold"`
	AnswerPolicy   string  `json:"answer_policy"`
	SyllabusPolicy string  `json:"syllabus_policy"`
}

// DefaultEngineConfig returns the tuned defaults for text-embedding-3-small with L2 distance.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		TopK:           5,
		ScoreThreshold: 0.9,
		AnswerPolicy:   PolicyThreshold,
		SyllabusPolicy: PolicySentinel,
	}
}
