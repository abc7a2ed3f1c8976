package services

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/istqb-chatbot/syllabus-core/internal/core/domain"
	"github.com/istqb-chatbot/syllabus-core/internal/core/ports/driven/mocks"
)

type engineFixture struct {
	index    *mocks.MockVectorIndex
	grounded *mocks.MockGroundedGenerator
	general  *mocks.MockGeneralGenerator
}

func newEngineFixture() *engineFixture {
	return &engineFixture{
		index:    mocks.NewMockVectorIndex(),
		grounded: mocks.NewMockGroundedGenerator("grounded answer"),
		general:  mocks.NewMockGeneralGenerator("general answer"),
	}
}

func (f *engineFixture) engine(opts ...EngineOption) *engine {
	return NewEngine(f.index, f.grounded, f.general, nil, opts...).(*engine)
}

func TestEngine_Answer_RelevantUsesRetrievedSources(t *testing.T) {
	f := newEngineFixture()
	f.index.Seed("A test case is a set of preconditions...", domain.SyllabusMetadata("syllabus.pdf", 3), 0.2)
	f.index.Seed("Test basis is the body of knowledge...", domain.SyllabusMetadata("syllabus.pdf", 7), 0.5)

	env, err := f.engine().Answer(context.Background(), "What is a test case?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Answer != "grounded answer" {
		t.Errorf("expected grounded answer, got %q", env.Answer)
	}

	want := []domain.Metadata{
		domain.SyllabusMetadata("syllabus.pdf", 3),
		domain.SyllabusMetadata("syllabus.pdf", 7),
	}
	if !reflect.DeepEqual(env.Sources, want) {
		t.Errorf("expected sources %v, got %v", want, env.Sources)
	}

	calls := f.grounded.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 grounded call, got %d", len(calls))
	}
	wantContext := "A test case is a set of preconditions...\n\nTest basis is the body of knowledge..."
	if calls[0].Context != wantContext {
		t.Errorf("expected context %q, got %q", wantContext, calls[0].Context)
	}
	if len(f.general.Questions()) != 0 {
		t.Error("general generator should not be called")
	}
	if len(f.index.Inserted()) != 0 {
		t.Error("Answer must not write to the index")
	}
}

func TestEngine_Answer_EmptyIndexFallsBack(t *testing.T) {
	f := newEngineFixture()

	env, err := f.engine().Answer(context.Background(), "What is the capital of France?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Answer != "general answer" {
		t.Errorf("expected general answer, got %q", env.Answer)
	}
	if !reflect.DeepEqual(env.Sources, []domain.Metadata{domain.FallbackSource()}) {
		t.Errorf("expected fallback source, got %v", env.Sources)
	}
	if len(f.grounded.Calls()) != 0 {
		t.Error("grounded generator should not be called")
	}
	if len(f.index.Inserted()) != 0 {
		t.Error("Answer must not write to the index")
	}
}

func TestEngine_Answer_ThresholdBoundary(t *testing.T) {
	tests := []struct {
		name     string
		score    float64
		grounded bool
	}{
		{"well below", 0.2, true},
		{"just below", 0.899, true},
		{"equal", 0.9, false},
		{"above", 0.95, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngineFixture()
			f.index.Seed("content", domain.SyllabusMetadata("syllabus.pdf", 1), tt.score)

			env, err := f.engine().Answer(context.Background(), "q")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			gotGrounded := len(f.grounded.Calls()) == 1
			if gotGrounded != tt.grounded {
				t.Errorf("grounded = %v, want %v", gotGrounded, tt.grounded)
			}
			if !tt.grounded && env.Sources[0].Source() != domain.SourceOpenAI {
				t.Errorf("expected OpenAI source, got %v", env.Sources)
			}
		})
	}
}

func TestEngine_Answer_SentinelYieldsEmptySources(t *testing.T) {
	f := newEngineFixture()
	f.index.Seed("unrelated", domain.SyllabusMetadata("syllabus.pdf", 0), 0.1)
	f.grounded.Reply = "Sorry. " + domain.NotFoundSentinel

	env, err := f.engine().Answer(context.Background(), "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Answer != domain.NotFoundSentinel {
		t.Errorf("expected sentinel answer, got %q", env.Answer)
	}
	if env.Sources == nil || len(env.Sources) != 0 {
		t.Errorf("expected empty non-nil sources, got %v", env.Sources)
	}
	if !env.IsNotFound() {
		t.Error("expected IsNotFound")
	}
}

func TestEngine_Answer_CustomThreshold(t *testing.T) {
	f := newEngineFixture()
	f.index.Seed("content", domain.SyllabusMetadata("syllabus.pdf", 1), 0.95)

	_, err := f.engine(WithAnswerPolicy(ThresholdPolicy{Threshold: 1.0})).Answer(context.Background(), "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.grounded.Calls()) != 1 {
		t.Error("expected grounded generation with raised threshold")
	}
}

func TestEngine_Answer_Errors(t *testing.T) {
	t.Run("retrieval", func(t *testing.T) {
		f := newEngineFixture()
		f.index.SetSearchError(errors.New("connection refused"))

		_, err := f.engine().Answer(context.Background(), "q")
		if !errors.Is(err, domain.ErrRetrievalFailed) {
			t.Errorf("expected ErrRetrievalFailed, got %v", err)
		}
		if len(f.general.Questions()) != 0 {
			t.Error("no fallback on retrieval failure")
		}
	})

	t.Run("grounded generation", func(t *testing.T) {
		f := newEngineFixture()
		f.index.Seed("content", domain.SyllabusMetadata("syllabus.pdf", 1), 0.1)
		f.grounded.Err = errors.New("rate limited")

		_, err := f.engine().Answer(context.Background(), "q")
		if !errors.Is(err, domain.ErrGenerationFailed) {
			t.Errorf("expected ErrGenerationFailed, got %v", err)
		}
	})

	t.Run("general generation", func(t *testing.T) {
		f := newEngineFixture()
		f.general.Err = errors.New("timeout")

		_, err := f.engine().Answer(context.Background(), "q")
		if !errors.Is(err, domain.ErrGenerationFailed) {
			t.Errorf("expected ErrGenerationFailed, got %v", err)
		}
	})

	t.Run("empty question", func(t *testing.T) {
		f := newEngineFixture()

		_, err := f.engine().Answer(context.Background(), "   ")
		if !errors.Is(err, domain.ErrEmptyQuestion) {
			t.Errorf("expected ErrEmptyQuestion, got %v", err)
		}
		if f.index.SearchCalls() != 0 {
			t.Error("index should not be searched for a blank question")
		}
	})
}

func TestEngine_TopK(t *testing.T) {
	f := newEngineFixture()
	for i := 0; i < 8; i++ {
		f.index.Seed("content", domain.SyllabusMetadata("syllabus.pdf", i), 0.1+float64(i)/100)
	}

	env, err := f.engine().Answer(context.Background(), "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.index.LastK() != 5 {
		t.Errorf("expected k=5, got %d", f.index.LastK())
	}
	if len(env.Sources) != 5 {
		t.Errorf("expected 5 sources, got %d", len(env.Sources))
	}

	f.engine(WithTopK(3)).Answer(context.Background(), "q")
	if f.index.LastK() != 3 {
		t.Errorf("expected k=3, got %d", f.index.LastK())
	}
}

func TestEngine_SearchInSyllabus(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		f := newEngineFixture()
		f.index.Seed("A test case is...", domain.SyllabusMetadata("syllabus.pdf", 3), 0.2)

		env, err := f.engine().SearchInSyllabus(context.Background(), "What is a test case?")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(env.Sources, []domain.Metadata{domain.SyllabusMetadata("syllabus.pdf", 3)}) {
			t.Errorf("unexpected sources %v", env.Sources)
		}
	})

	t.Run("poor score still grounded", func(t *testing.T) {
		f := newEngineFixture()
		f.index.Seed("loosely related", domain.SyllabusMetadata("syllabus.pdf", 9), 1.4)

		if _, err := f.engine().SearchInSyllabus(context.Background(), "q"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(f.grounded.Calls()) != 1 {
			t.Error("sentinel policy should ground on any result")
		}
	})

	t.Run("empty index", func(t *testing.T) {
		f := newEngineFixture()

		_, err := f.engine().SearchInSyllabus(context.Background(), "q")
		if !errors.Is(err, domain.ErrNotInSyllabus) {
			t.Errorf("expected ErrNotInSyllabus, got %v", err)
		}
		if len(f.grounded.Calls()) != 0 {
			t.Error("grounded generator should not be called on empty retrieval")
		}
	})

	t.Run("sentinel", func(t *testing.T) {
		f := newEngineFixture()
		f.index.Seed("unrelated", domain.SyllabusMetadata("syllabus.pdf", 1), 0.3)
		f.grounded.Reply = domain.NotFoundSentinel

		_, err := f.engine().SearchInSyllabus(context.Background(), "q")
		if !errors.Is(err, domain.ErrNotInSyllabus) {
			t.Errorf("expected ErrNotInSyllabus, got %v", err)
		}
	})

	t.Run("threshold policy", func(t *testing.T) {
		f := newEngineFixture()
		f.index.Seed("far away", domain.SyllabusMetadata("syllabus.pdf", 1), 0.95)

		_, err := f.engine(WithSyllabusPolicy(ThresholdPolicy{Threshold: 0.9})).SearchInSyllabus(context.Background(), "q")
		if !errors.Is(err, domain.ErrNotInSyllabus) {
			t.Errorf("expected ErrNotInSyllabus, got %v", err)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		f := newEngineFixture()
		f.index.Seed("a", domain.SyllabusMetadata("syllabus.pdf", 1), 0.3)
		f.index.Seed("b", domain.SyllabusMetadata("other.pdf", 2), 0.4)
		e := f.engine()

		first, err := e.SearchInSyllabus(context.Background(), "q")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := e.SearchInSyllabus(context.Background(), "q")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(first, second) {
			t.Errorf("expected identical envelopes, got %v and %v", first, second)
		}
	})
}

func TestEngine_SearchWithFallbackAndLearn(t *testing.T) {
	f := newEngineFixture()
	f.general.Reply = "Paris"

	env, err := f.engine().SearchWithFallbackAndLearn(context.Background(), "Capital of France?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Answer != "Paris" {
		t.Errorf("expected Paris, got %q", env.Answer)
	}
	if !reflect.DeepEqual(env.Sources, []domain.Metadata{domain.FallbackSource()}) {
		t.Errorf("expected fallback source, got %v", env.Sources)
	}

	inserted := f.index.Inserted()
	if len(inserted) != 1 {
		t.Fatalf("expected 1 insert, got %d", len(inserted))
	}
	if inserted[0].Content != "Question: Capital of France?\nAnswer: Paris" {
		t.Errorf("unexpected learned content %q", inserted[0].Content)
	}
	if inserted[0].Metadata.Status() != domain.KnowledgeStatusPending {
		t.Errorf("expected pending status, got %q", inserted[0].Metadata.Status())
	}
	if inserted[0].Metadata.Source() != domain.SourceGeneratedQA {
		t.Errorf("expected generated Q&A source, got %q", inserted[0].Metadata.Source())
	}
	if f.index.SearchCalls() != 0 {
		t.Error("fallback path should not search")
	}
}

func TestEngine_SearchWithFallbackAndLearn_InsertFailureIsSwallowed(t *testing.T) {
	f := newEngineFixture()
	f.index.SetInsertError(errors.New("disk full"))

	env, err := f.engine().SearchWithFallbackAndLearn(context.Background(), "q")
	if err != nil {
		t.Fatalf("insert failure must not surface, got %v", err)
	}
	if env.Answer != "general answer" {
		t.Errorf("expected general answer, got %q", env.Answer)
	}
}

func TestEngine_SearchWithFallbackAndLearn_GenerationFailureSkipsLearn(t *testing.T) {
	f := newEngineFixture()
	f.general.Err = errors.New("boom")

	_, err := f.engine().SearchWithFallbackAndLearn(context.Background(), "q")
	if !errors.Is(err, domain.ErrGenerationFailed) {
		t.Errorf("expected ErrGenerationFailed, got %v", err)
	}
	if len(f.index.Inserted()) != 0 {
		t.Error("nothing should be learned when generation fails")
	}
}

func TestEngineOptionsFromConfig(t *testing.T) {
	opts, err := EngineOptionsFromConfig(domain.EngineConfig{
		TopK:           3,
		ScoreThreshold: 0.5,
		AnswerPolicy:   domain.PolicySentinel,
		SyllabusPolicy: domain.PolicyThreshold,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e := newEngineFixture().engine(opts...)
	if e.topK != 3 {
		t.Errorf("expected topK 3, got %d", e.topK)
	}
	if e.answerPolicy.Name() != domain.PolicySentinel {
		t.Errorf("expected sentinel answer policy, got %s", e.answerPolicy.Name())
	}
	if p, ok := e.syllabusPolicy.(ThresholdPolicy); !ok || p.Threshold != 0.5 {
		t.Errorf("expected threshold syllabus policy at 0.5, got %#v", e.syllabusPolicy)
	}

	_, err = EngineOptionsFromConfig(domain.EngineConfig{AnswerPolicy: "bogus", SyllabusPolicy: domain.PolicySentinel})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestGenerators_Prompts(t *testing.T) {
	llm := mocks.NewMockLLMService("  an answer \n")

	got, err := NewGroundedGenerator(llm).Generate(context.Background(), "ctx text", "why?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "an answer" {
		t.Errorf("expected trimmed reply, got %q", got)
	}

	got, err = NewGeneralGenerator(llm).Generate(context.Background(), "who?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "an answer" {
		t.Errorf("expected trimmed reply, got %q", got)
	}

	calls := llm.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	grounded := calls[0].Prompt
	for _, want := range []string{"ONLY on the context", "'" + domain.NotFoundSentinel + "'", "Context: ctx text", "Question: why?", "Helpful Answer:"} {
		if !strings.Contains(grounded, want) {
			t.Errorf("grounded prompt missing %q:\n%s", want, grounded)
		}
	}
	if calls[1].Prompt != "Answer the following question concisely: who?" {
		t.Errorf("unexpected general prompt %q", calls[1].Prompt)
	}
}

func TestLLMTranslator(t *testing.T) {
	llm := mocks.NewMockLLMService("'Kiểm thử là gì?'")
	tr := NewLLMTranslator(llm)

	got, err := tr.Translate(context.Background(), "What is testing?", "Vietnamese")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Kiểm thử là gì?" {
		t.Errorf("expected quotes stripped, got %q", got)
	}
	if llm.Calls()[0].Prompt != "Translate the following text to Vietnamese: 'What is testing?'" {
		t.Errorf("unexpected prompt %q", llm.Calls()[0].Prompt)
	}

	llm.Err = errors.New("down")
	if _, err := tr.Translate(context.Background(), "x", "English"); err == nil {
		t.Error("expected error")
	}
}
