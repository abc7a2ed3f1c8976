package domain

import (
	"encoding/json"
	"testing"
)

func TestMetadata_Source(t *testing.T) {
	tests := []struct {
		name     string
		meta     Metadata
		expected string
	}{
		{"nil metadata", nil, SourceUnknown},
		{"missing source", Metadata{"page": 1}, SourceUnknown},
		{"empty source", Metadata{"source": ""}, SourceUnknown},
		{"non-string source", Metadata{"source": 42}, SourceUnknown},
		{"file path", Metadata{"source": "data/syllabus.pdf"}, "data/syllabus.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.meta.Source(); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestMetadata_Page(t *testing.T) {
	tests := []struct {
		name   string
		meta   Metadata
		page   int
		hasVal bool
	}{
		{"int", Metadata{"page": 4}, 4, true},
		{"int64", Metadata{"page": int64(7)}, 7, true},
		{"json number", Metadata{"page": float64(2)}, 2, true},
		{"fractional", Metadata{"page": 2.5}, 0, false},
		{"null", Metadata{"page": nil}, 0, false},
		{"missing", Metadata{}, 0, false},
		{"string", Metadata{"page": "3"}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, ok := tt.meta.Page()
			if ok != tt.hasVal || page != tt.page {
				t.Errorf("expected (%d, %v), got (%d, %v)", tt.page, tt.hasVal, page, ok)
			}
		})
	}
}

func TestMetadata_PageAfterJSONRoundTrip(t *testing.T) {
	var meta Metadata
	if err := json.Unmarshal([]byte(`{"source":"syllabus.pdf","page":4}`), &meta); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	page, ok := meta.Page()
	if !ok || page != 4 {
		t.Errorf("expected page 4, got %d (%v)", page, ok)
	}
}

func TestMetadata_Status(t *testing.T) {
	if s := LearnedMetadata().Status(); s != KnowledgeStatusPending {
		t.Errorf("expected pending, got %q", s)
	}
	if s := SyllabusMetadata("a.pdf", 0).Status(); s != "" {
		t.Errorf("expected no status on ingested chunk, got %q", s)
	}
}

func TestLearnedMetadata(t *testing.T) {
	meta := LearnedMetadata()
	if meta.Source() != "OpenAI_Generated_Q&A" {
		t.Errorf("unexpected source %q", meta.Source())
	}
	if meta["status"] != "pending" {
		t.Errorf("unexpected status %v", meta["status"])
	}
}

func TestFallbackSource_SerializesNullPage(t *testing.T) {
	data, err := json.Marshal(FallbackSource())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"page":null,"source":"OpenAI"}` {
		t.Errorf("unexpected JSON %s", data)
	}
}

func TestMetadata_Clone(t *testing.T) {
	orig := Metadata{"source": "a.pdf"}
	clone := orig.Clone()
	clone["source"] = "b.pdf"
	if orig.Source() != "a.pdf" {
		t.Error("clone must not alias the original")
	}
	if Metadata(nil).Clone() != nil {
		t.Error("expected nil clone of nil metadata")
	}
}

func TestKnowledgeStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to KnowledgeStatus
		expected bool
	}{
		{KnowledgeStatusPending, KnowledgeStatusApproved, true},
		{KnowledgeStatusApproved, KnowledgeStatusApproved, false},
		{KnowledgeStatusApproved, KnowledgeStatusPending, false},
		{"", KnowledgeStatusApproved, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.expected {
			t.Errorf("%q -> %q: expected %v, got %v", tt.from, tt.to, tt.expected, got)
		}
	}
}

func TestAnswerEnvelope_IsNotFound(t *testing.T) {
	if !NotFoundEnvelope().IsNotFound() {
		t.Error("expected sentinel envelope to report not found")
	}
	if FallbackEnvelope("Paris").IsNotFound() {
		t.Error("fallback envelope is not a not-found answer")
	}
	if len(NotFoundEnvelope().Sources) != 0 {
		t.Error("sentinel envelope must have no sources")
	}
}

func TestLearnOutcome_Succeeded(t *testing.T) {
	if !(LearnOutcome{ChunkID: "c1"}).Succeeded() {
		t.Error("expected success with chunk ID")
	}
	if (LearnOutcome{}).Succeeded() {
		t.Error("expected failure without chunk ID")
	}
}
