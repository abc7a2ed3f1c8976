package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/istqb-chatbot/syllabus-core/internal/core/domain"
	"github.com/istqb-chatbot/syllabus-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorIndex = (*VectorIndex)(nil)

// Distance selects the pgvector distance operator used for search
type Distance string

const (
	// DistanceL2 is Euclidean distance (<->)
	DistanceL2 Distance = "l2"
	// DistanceCosine is cosine distance (<=>)
	DistanceCosine Distance = "cosine"
)

// ParseDistance maps a configuration value to a Distance
func ParseDistance(s string) (Distance, error) {
	switch Distance(s) {
	case "", DistanceL2:
		return DistanceL2, nil
	case DistanceCosine:
		return DistanceCosine, nil
	default:
		return "", fmt.Errorf("%w: unknown vector distance %q", domain.ErrInvalidInput, s)
	}
}

func (d Distance) operator() string {
	if d == DistanceCosine {
		return "<=>"
	}
	return "<->"
}

// VectorIndex implements driven.VectorIndex over the documents table.
// Text is embedded with the configured EmbeddingService before it reaches SQL.
type VectorIndex struct {
	db       *DB
	embedder driven.EmbeddingService
	distance Distance
	logger   *zap.Logger
}

// NewVectorIndex creates a VectorIndex
func NewVectorIndex(db *DB, embedder driven.EmbeddingService, distance Distance, logger *zap.Logger) *VectorIndex {
	if logger == nil {
		logger = zap.NewNop()
	}
	if distance == "" {
		distance = DistanceL2
	}
	return &VectorIndex{db: db, embedder: embedder, distance: distance, logger: logger}
}

// Search returns the k nearest chunks, ties broken by id
func (v *VectorIndex) Search(ctx context.Context, query string, k int) ([]*domain.ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}

	embedding, err := v.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	q := `
		SELECT id, content, metadata, created_at, embedding ` + v.distance.operator() + ` $1 AS distance
		FROM documents
		ORDER BY distance ASC, id ASC
		LIMIT $2
	`

	rows, err := v.db.QueryContext(ctx, q, pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}
	defer rows.Close()

	var results []*domain.ScoredChunk
	for rows.Next() {
		var (
			chunk    domain.Chunk
			raw      []byte
			distance float64
		)
		if err := rows.Scan(&chunk.ID, &chunk.Content, &raw, &chunk.CreatedAt, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		if chunk.Metadata, err = decodeMetadata(raw); err != nil {
			return nil, err
		}
		results = append(results, &domain.ScoredChunk{Chunk: &chunk, Score: distance})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search results: %w", err)
	}

	v.logger.Debug("vector search",
		zap.Int("k", k),
		zap.Int("results", len(results)),
		zap.String("distance", string(v.distance)),
	)
	return results, nil
}

// Insert embeds content and appends a new row
func (v *VectorIndex) Insert(ctx context.Context, content string, metadata domain.Metadata) (string, error) {
	vectors, err := v.embedder.Embed(ctx, []string{content})
	if err != nil {
		return "", fmt.Errorf("failed to embed content: %w", err)
	}
	if len(vectors) != 1 {
		return "", fmt.Errorf("expected 1 embedding, got %d", len(vectors))
	}

	raw, err := encodeMetadata(metadata)
	if err != nil {
		return "", err
	}

	id := domain.GenerateID()
	_, err = v.db.ExecContext(ctx, `
		INSERT INTO documents (id, content, metadata, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, id, content, raw, pgvector.NewVector(vectors[0]), time.Now())
	if err != nil {
		return "", fmt.Errorf("failed to insert document: %w", err)
	}

	return id, nil
}

func encodeMetadata(m domain.Metadata) ([]byte, error) {
	if m == nil {
		m = domain.Metadata{}
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return raw, nil
}

func decodeMetadata(raw []byte) (domain.Metadata, error) {
	m := domain.Metadata{}
	if len(raw) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return m, nil
}
