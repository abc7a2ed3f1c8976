package domain

import "time"

// Metadata keys carried on every chunk.
const (
	MetaSource = "source"
	MetaPage   = "page"
	MetaStatus = "status"
)

// Well-known source labels.
const (
	// SourceOpenAI labels answers produced by the general generator.
	SourceOpenAI = "OpenAI"
	// SourceGeneratedQA labels chunks written back by the learn step.
	SourceGeneratedQA = "OpenAI_Generated_Q&A"
	// SourceUnknown is rendered when a chunk has no source.
	SourceUnknown = "N/A"
)

// KnowledgeStatus is the curation state of a learned chunk.
// Ingested syllabus chunks carry no status at all.
type KnowledgeStatus string

const (
	KnowledgeStatusPending  KnowledgeStatus = "pending"
	KnowledgeStatusApproved KnowledgeStatus = "approved"
)

// IsValid reports whether s is a known status.
func (s KnowledgeStatus) IsValid() bool {
	return s == KnowledgeStatusPending || s == KnowledgeStatusApproved
}

// CanTransitionTo reports whether curation may move s to next.
// Only pending -> approved is allowed.
func (s KnowledgeStatus) CanTransitionTo(next KnowledgeStatus) bool {
	return s == KnowledgeStatusPending && next == KnowledgeStatusApproved
}

// Metadata is the free-form JSON mapping stored alongside a chunk.
type Metadata map[string]any

// Source returns the source label, or SourceUnknown when missing or not a string.
func (m Metadata) Source() string {
	if m == nil {
		return SourceUnknown
	}
	if s, ok := m[MetaSource].(string); ok && s != "" {
		return s
	}
	return SourceUnknown
}

// Page returns the zero-based page number when present.
// JSON decoding yields float64, so numeric kinds are normalised.
func (m Metadata) Page() (int, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[MetaPage].(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	default:
		return 0, false
	}
}

// Status returns the curation status, empty for ingested chunks.
func (m Metadata) Status() KnowledgeStatus {
	if m == nil {
		return ""
	}
	s, _ := m[MetaStatus].(string)
	return KnowledgeStatus(s)
}

// Clone returns a shallow copy of m.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// SyllabusMetadata builds the metadata for an ingested page chunk.
func SyllabusMetadata(source string, page int) Metadata {
	return Metadata{MetaSource: source, MetaPage: page}
}

// LearnedMetadata builds the metadata for a chunk written by the learn step.
func LearnedMetadata() Metadata {
	return Metadata{MetaSource: SourceGeneratedQA, MetaStatus: string(KnowledgeStatusPending)}
}

// FallbackSource is the synthetic source attached to general-generator answers.
func FallbackSource() Metadata {
	return Metadata{MetaSource: SourceOpenAI, MetaPage: nil}
}

// Chunk is a unit of indexed knowledge.
type Chunk struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"-"`
	Metadata  Metadata  `json:"metadata"`
	CreatedAt time.Time `json:"created_at"`
}

// ScoredChunk pairs a chunk with its distance to the query (lower is closer).
type ScoredChunk struct {
	Chunk *Chunk  `json:"chunk"`
	Score float64 `json:"score"`
}
