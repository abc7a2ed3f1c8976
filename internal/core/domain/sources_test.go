package domain

import (
	"reflect"
	"testing"
)

func TestGroupSources(t *testing.T) {
	tests := []struct {
		name     string
		sources  []Metadata
		expected []SourceGroup
	}{
		{
			name:     "empty",
			sources:  nil,
			expected: nil,
		},
		{
			name: "syllabus pages are one-based sorted and unique",
			sources: []Metadata{
				{"source": "data/ctfl.pdf", "page": 4},
				{"source": "data/ctfl.pdf", "page": 1},
				{"source": "data/ctfl.pdf", "page": 4},
				{"source": "data/ctal.pdf", "page": float64(0)},
			},
			expected: []SourceGroup{
				{Name: "data/ctfl.pdf", Pages: []int{2, 5}},
				{Name: "data/ctal.pdf", Pages: []int{1}},
			},
		},
		{
			name: "syllabus takes priority over other sources",
			sources: []Metadata{
				{"source": "OpenAI_Generated_Q&A", "status": "approved"},
				{"source": "data/ctfl.pdf", "page": 9},
			},
			expected: []SourceGroup{
				{Name: "data/ctfl.pdf", Pages: []int{10}},
			},
		},
		{
			name:    "fallback source",
			sources: []Metadata{FallbackSource()},
			expected: []SourceGroup{
				{Name: "OpenAI"},
			},
		},
		{
			name: "learned answers are flagged",
			sources: []Metadata{
				{"source": "OpenAI_Generated_Q&A", "status": "approved"},
			},
			expected: []SourceGroup{
				{Name: "OpenAI_Generated_Q&A", Learned: true},
			},
		},
		{
			name:    "missing source defaults to N/A",
			sources: []Metadata{{"page": 3}},
			expected: []SourceGroup{
				{Name: "N/A"},
			},
		},
		{
			name: "other sources are listed per entry",
			sources: []Metadata{
				{"source": "OpenAI_Generated_Q&A", "status": "approved"},
				{"source": "OpenAI_Generated_Q&A", "status": "approved"},
				FallbackSource(),
			},
			expected: []SourceGroup{
				{Name: "OpenAI_Generated_Q&A", Learned: true},
				{Name: "OpenAI_Generated_Q&A", Learned: true},
				{Name: "OpenAI"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GroupSources(tt.sources)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("expected %+v, got %+v", tt.expected, got)
			}
		})
	}
}

func TestIsSyllabusSource(t *testing.T) {
	for _, name := range []string{"OpenAI", "OpenAI_Generated_Q&A", "N/A", ""} {
		if IsSyllabusSource(name) {
			t.Errorf("%q should not be a syllabus source", name)
		}
	}
	if !IsSyllabusSource("data/ctfl.pdf") {
		t.Error("expected file path to be a syllabus source")
	}
}
