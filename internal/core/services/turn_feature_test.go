package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/cucumber/godog"

	"github.com/istqb-chatbot/syllabus-core/internal/core/domain"
	"github.com/istqb-chatbot/syllabus-core/internal/core/ports/driving"
)

// turnWorld holds the state of one scenario
type turnWorld struct {
	chat     *chatFixture
	response *domain.ChatResponse
	err      error
}

func (w *turnWorld) syllabusContains(content, source string, page int, distance float64) error {
	w.chat.index.Seed(content, domain.SyllabusMetadata(source, page), distance)
	return nil
}

func (w *turnWorld) syllabusIsEmpty() error {
	w.chat.index.Reset()
	return nil
}

func (w *turnWorld) groundedCannotAnswer() error {
	w.chat.grounded.Reply = domain.NotFoundSentinel
	return nil
}

func (w *turnWorld) indexUnavailable() error {
	w.chat.index.SetSearchError(errors.New("connection refused"))
	return nil
}

func (w *turnWorld) userAsks(question string) error {
	return w.userAsksInMode(question, string(domain.ChatModeStaged))
}

func (w *turnWorld) userAsksInMode(question, mode string) error {
	w.response, w.err = w.chat.service().Ask(context.Background(), driving.ChatRequest{
		SessionID: "feature",
		Message:   question,
		Mode:      domain.ChatMode(mode),
	})
	return nil
}

func (w *turnWorld) turnEndsOnPath(path string) error {
	if w.err != nil {
		return fmt.Errorf("turn failed: %w", w.err)
	}
	if string(w.response.Path) != path {
		return fmt.Errorf("expected path %s, got %s", path, w.response.Path)
	}
	return nil
}

func (w *turnWorld) sourcesAreExactly(source string, page int) error {
	if len(w.response.Sources) != 1 {
		return fmt.Errorf("expected 1 source, got %v", w.response.Sources)
	}
	got := w.response.Sources[0]
	p, ok := got.Page()
	if got.Source() != source || !ok || p != page {
		return fmt.Errorf("expected %s page %d, got %v", source, page, got)
	}
	return nil
}

func (w *turnWorld) onlySourceWithoutPage(source string) error {
	if len(w.response.Sources) != 1 {
		return fmt.Errorf("expected 1 source, got %v", w.response.Sources)
	}
	got := w.response.Sources[0]
	if got.Source() != source {
		return fmt.Errorf("expected source %s, got %s", source, got.Source())
	}
	if v, present := got[domain.MetaPage]; !present || v != nil {
		return fmt.Errorf("expected explicit null page, got %v", got)
	}
	return nil
}

func (w *turnWorld) pendingCount(n int) error {
	pending := 0
	for _, c := range w.chat.index.Inserted() {
		if c.Metadata.Status() == domain.KnowledgeStatusPending {
			pending++
		}
	}
	if pending != n {
		return fmt.Errorf("expected %d pending chunks, got %d", n, pending)
	}
	return nil
}

func (w *turnWorld) pendingChunkReads(content string) error {
	inserted := w.chat.index.Inserted()
	if len(inserted) == 0 {
		return errors.New("nothing was learned")
	}
	want := strings.ReplaceAll(content, `\n`, "\n")
	if inserted[0].Content != want {
		return fmt.Errorf("expected %q, got %q", want, inserted[0].Content)
	}
	return nil
}

func (w *turnWorld) turnFailsWithRetrievalError() error {
	if !errors.Is(w.err, domain.ErrRetrievalFailed) {
		return fmt.Errorf("expected retrieval failure, got %v", w.err)
	}
	if w.response != nil {
		return errors.New("a failed turn must not produce an answer")
	}
	return nil
}

func initializeTurnScenario(sc *godog.ScenarioContext) {
	w := &turnWorld{}

	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		*w = turnWorld{chat: newChatFixture(domain.LanguageEnglish)}
		return ctx, nil
	})

	sc.Step(`^the syllabus contains "([^"]*)" from "([^"]*)" page (\d+) at distance ([\d.]+)$`, w.syllabusContains)
	sc.Step(`^the syllabus is empty$`, w.syllabusIsEmpty)
	sc.Step(`^the grounded generator cannot answer from the context$`, w.groundedCannotAnswer)
	sc.Step(`^the vector index is unavailable$`, w.indexUnavailable)
	sc.Step(`^the user asks "([^"]*)"$`, w.userAsks)
	sc.Step(`^the user asks "([^"]*)" in "([^"]*)" mode$`, w.userAsksInMode)
	sc.Step(`^the turn ends on the "([^"]*)" path$`, w.turnEndsOnPath)
	sc.Step(`^the sources are exactly "([^"]*)" page (\d+)$`, w.sourcesAreExactly)
	sc.Step(`^the only source is "([^"]*)" without a page$`, w.onlySourceWithoutPage)
	sc.Step(`^(\d+) chunks are pending review$`, w.pendingCount)
	sc.Step(`^the pending chunk reads "([^"]*)"$`, w.pendingChunkReads)
	sc.Step(`^the turn fails with a retrieval error$`, w.turnFailsWithRetrievalError)
}

func TestTurnFeature(t *testing.T) {
	suite := godog.TestSuite{
		Name:                "turn",
		ScenarioInitializer: initializeTurnScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
			Strict:   true,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
