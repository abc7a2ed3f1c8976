package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/istqb-chatbot/syllabus-core/internal/core/ports/driven"
)

var (
	_ driven.LLMService       = (*GeminiLLM)(nil)
	_ driven.EmbeddingService = (*GeminiEmbedding)(nil)
)

// maxGeminiBatch is the most contents BatchEmbedContents accepts per call
const maxGeminiBatch = 100

// Model dimensions for Gemini embedding models
var geminiModelDimensions = map[string]int{
	"text-embedding-004": 768,
	"embedding-001":      768,
}

func newGeminiClient(apiKey, baseURL string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithEndpoint(baseURL))
	}

	client, err := genai.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// GeminiLLM implements LLMService using Google's Gemini models
type GeminiLLM struct {
	client      *genai.Client
	model       string
	temperature float32
	closeOnce   sync.Once
}

// NewGeminiLLM creates a new Gemini text generation service
func NewGeminiLLM(apiKey, model, baseURL string, temperature float64) (driven.LLMService, error) {
	client, err := newGeminiClient(apiKey, baseURL)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}

	return &GeminiLLM{
		client:      client,
		model:       model,
		temperature: float32(temperature),
	}, nil
}

// Complete generates content for the prompt and joins the text parts
func (g *GeminiLLM) Complete(ctx context.Context, system, prompt string) (string, error) {
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(g.temperature)
	if system != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(system))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}

	text, ok := responseText(resp)
	if !ok {
		return "", fmt.Errorf("gemini returned no text candidates")
	}
	return text, nil
}

// responseText joins the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) (string, bool) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", false
	}

	var b strings.Builder
	found := false
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
			found = true
		}
	}
	return b.String(), found
}

// Model returns the model name being used
func (g *GeminiLLM) Model() string {
	return g.model
}

// Ping sends a tiny prompt to verify credentials and connectivity
func (g *GeminiLLM) Ping(ctx context.Context) error {
	_, err := g.Complete(ctx, "", "Hello world")
	return err
}

// Close releases the underlying client
func (g *GeminiLLM) Close() error {
	var err error
	g.closeOnce.Do(func() { err = g.client.Close() })
	return err
}

// GeminiEmbedding implements EmbeddingService using Gemini embedding models
type GeminiEmbedding struct {
	client     *genai.Client
	model      string
	dimensions int
	closeOnce  sync.Once
}

// NewGeminiEmbedding creates a new Gemini embedding service
func NewGeminiEmbedding(apiKey, model, baseURL string) (driven.EmbeddingService, error) {
	client, err := newGeminiClient(apiKey, baseURL)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = "text-embedding-004"
	}

	dims, ok := geminiModelDimensions[model]
	if !ok {
		dims = 768
	}

	return &GeminiEmbedding{
		client:     client,
		model:      model,
		dimensions: dims,
	}, nil
}

// Embed generates embeddings for multiple texts
func (g *GeminiEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	em := g.client.EmbeddingModel(g.model)
	embeddings := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += maxGeminiBatch {
		end := min(start+maxGeminiBatch, len(texts))

		batch := em.NewBatch()
		for _, t := range texts[start:end] {
			batch.AddContent(genai.Text(t))
		}

		resp, err := em.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("gemini embedding failed: %w", err)
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("gemini returned %d embeddings for %d inputs", len(resp.Embeddings), end-start)
		}
		for _, e := range resp.Embeddings {
			embeddings = append(embeddings, e.Values)
		}
	}

	return embeddings, nil
}

// EmbedQuery generates an embedding for a search query
func (g *GeminiEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	resp, err := g.client.EmbeddingModel(g.model).EmbedContent(ctx, genai.Text(query))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding failed: %w", err)
	}
	if resp.Embedding == nil {
		return nil, fmt.Errorf("no embedding returned for query")
	}
	return resp.Embedding.Values, nil
}

// Dimensions returns the embedding dimension size
func (g *GeminiEmbedding) Dimensions() int {
	return g.dimensions
}

// Model returns the model name being used
func (g *GeminiEmbedding) Model() string {
	return g.model
}

// HealthCheck verifies the embedding service is available
func (g *GeminiEmbedding) HealthCheck(ctx context.Context) error {
	_, err := g.EmbedQuery(ctx, "health check")
	return err
}

// Close releases the underlying client
func (g *GeminiEmbedding) Close() error {
	var err error
	g.closeOnce.Do(func() { err = g.client.Close() })
	return err
}
