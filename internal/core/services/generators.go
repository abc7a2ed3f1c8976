package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/istqb-chatbot/syllabus-core/internal/core/domain"
	"github.com/istqb-chatbot/syllabus-core/internal/core/ports/driven"
)

var (
	_ driven.GroundedGenerator = (*groundedGenerator)(nil)
	_ driven.GeneralGenerator  = (*generalGenerator)(nil)
	_ driven.Translator        = (*llmTranslator)(nil)
)

const groundedPromptTemplate = `You are an AI assistant for answering questions about the ISTQB syllabus.
Answer the question based ONLY on the context provided below.
If the context does not contain the answer, reply with exactly this phrase: '%s'

Context: %s

Question: %s

Helpful Answer:`

const generalPromptTemplate = "Answer the following question concisely: %s"

const translatePromptTemplate = "Translate the following text to %s: '%s'"

// groundedGenerator prompts the LLM to answer from context or reply with the sentinel
type groundedGenerator struct {
	llm driven.LLMService
}

// NewGroundedGenerator creates a GroundedGenerator backed by llm
func NewGroundedGenerator(llm driven.LLMService) driven.GroundedGenerator {
	return &groundedGenerator{llm: llm}
}

func (g *groundedGenerator) Generate(ctx context.Context, contextText, question string) (string, error) {
	prompt := fmt.Sprintf(groundedPromptTemplate, domain.NotFoundSentinel, contextText, question)
	reply, err := g.llm.Complete(ctx, "", prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

// generalGenerator answers from the model's general knowledge
type generalGenerator struct {
	llm driven.LLMService
}

// NewGeneralGenerator creates a GeneralGenerator backed by llm
func NewGeneralGenerator(llm driven.LLMService) driven.GeneralGenerator {
	return &generalGenerator{llm: llm}
}

func (g *generalGenerator) Generate(ctx context.Context, question string) (string, error) {
	reply, err := g.llm.Complete(ctx, "", fmt.Sprintf(generalPromptTemplate, question))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

// llmTranslator translates through the chat model
type llmTranslator struct {
	llm driven.LLMService
}

// NewLLMTranslator creates a Translator backed by llm
func NewLLMTranslator(llm driven.LLMService) driven.Translator {
	return &llmTranslator{llm: llm}
}

func (t *llmTranslator) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	reply, err := t.llm.Complete(ctx, "", fmt.Sprintf(translatePromptTemplate, targetLanguage, text))
	if err != nil {
		return "", err
	}
	return strings.Trim(strings.TrimSpace(reply), "'"), nil
}
