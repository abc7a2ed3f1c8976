package ai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knights-analytics/hugot"

	"github.com/istqb-chatbot/syllabus-core/internal/core/ports/driven"
)

// Ensure LocalEmbedding implements EmbeddingService
var _ driven.EmbeddingService = (*LocalEmbedding)(nil)

const (
	defaultLocalModel    = "sentence-transformers/all-MiniLM-L6-v2"
	defaultLocalModelDir = "./models"
)

// Model dimensions for the sentence-transformer models we ship with
var localModelDimensions = map[string]int{
	"sentence-transformers/all-MiniLM-L6-v2":                      384,
	"sentence-transformers/all-mpnet-base-v2":                     768,
	"sentence-transformers/paraphrase-multilingual-MiniLM-L12-v2": 384,
}

// LocalEmbedding runs a sentence-transformer ONNX model in-process
type LocalEmbedding struct {
	mu         sync.Mutex
	session    *hugot.Session
	run        func([]string) ([][]float32, error)
	model      string
	dimensions int
	closed     bool
}

// NewLocalEmbedding loads (downloading on first use) a feature extraction model
func NewLocalEmbedding(model, modelDir string) (driven.EmbeddingService, error) {
	if model == "" {
		model = defaultLocalModel
	}
	if modelDir == "" {
		modelDir = defaultLocalModelDir
	}

	modelPath, err := prepareModel(model, modelDir)
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "syllabus-embedder",
	}
	pipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create embedding pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create embedding pipeline: %w", err)
	}

	dims, ok := localModelDimensions[model]
	if !ok {
		dims = 384
	}

	return &LocalEmbedding{
		session: session,
		run: func(texts []string) ([][]float32, error) {
			result, err := pipeline.RunPipeline(texts)
			if err != nil {
				return nil, err
			}
			return result.Embeddings, nil
		},
		model:      model,
		dimensions: dims,
	}, nil
}

// prepareModel returns the local model path, downloading it if missing
func prepareModel(model, modelDir string) (string, error) {
	modelPath := filepath.Join(modelDir, strings.ReplaceAll(model, "/", "_"))
	if _, err := os.Stat(modelPath); err == nil {
		return modelPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to stat model directory: %w", err)
	}

	if err := os.MkdirAll(modelDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create model directory: %w", err)
	}
	downloadOptions := hugot.NewDownloadOptions()
	downloadOptions.OnnxFilePath = "onnx/model.onnx"
	downloadedPath, err := hugot.DownloadModel(model, modelDir, downloadOptions)
	if err != nil {
		return "", fmt.Errorf("failed to download model: %w", err)
	}
	return downloadedPath, nil
}

// Embed generates embeddings for multiple texts
func (l *LocalEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, errors.New("local embedding service is closed")
	}

	embeddings, err := l.run(texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("model returned %d embeddings for %d inputs", len(embeddings), len(texts))
	}
	return embeddings, nil
}

// EmbedQuery generates an embedding for a search query
func (l *LocalEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	embeddings, err := l.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// Dimensions returns the embedding dimension size
func (l *LocalEmbedding) Dimensions() int {
	return l.dimensions
}

// Model returns the model name being used
func (l *LocalEmbedding) Model() string {
	return l.model
}

// HealthCheck runs one embedding through the model
func (l *LocalEmbedding) HealthCheck(ctx context.Context) error {
	_, err := l.EmbedQuery(ctx, "health check")
	return err
}

// Close destroys the hugot session
func (l *LocalEmbedding) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if l.session == nil {
		return nil
	}
	return l.session.Destroy()
}
