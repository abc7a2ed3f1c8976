package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/istqb-chatbot/syllabus-core/internal/core/domain"
	"github.com/istqb-chatbot/syllabus-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.KnowledgeStore = (*KnowledgeStore)(nil)

// KnowledgeStore implements driven.KnowledgeStore using PostgreSQL
type KnowledgeStore struct {
	db *DB
}

// NewKnowledgeStore creates a new KnowledgeStore
func NewKnowledgeStore(db *DB) *KnowledgeStore {
	return &KnowledgeStore{db: db}
}

// ListByStatus returns chunks with the given status, oldest first
func (s *KnowledgeStore) ListByStatus(ctx context.Context, status domain.KnowledgeStatus, limit, offset int) ([]*domain.Chunk, error) {
	query := `
		SELECT id, content, metadata, created_at
		FROM documents
		WHERE metadata->>'status' = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.db.QueryContext(ctx, query, string(status), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*domain.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return chunks, nil
}

// CountByStatus returns the number of chunks with the given status
func (s *KnowledgeStore) CountByStatus(ctx context.Context, status domain.KnowledgeStatus) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE metadata->>'status' = $1`,
		string(status),
	).Scan(&count)
	return count, err
}

// Get retrieves a chunk by ID
func (s *KnowledgeStore) Get(ctx context.Context, id string) (*domain.Chunk, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, content, metadata, created_at FROM documents WHERE id = $1`,
		id,
	)

	chunk, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return chunk, nil
}

// UpdateStatus rewrites the status key of a chunk's metadata
func (s *KnowledgeStore) UpdateStatus(ctx context.Context, id string, status domain.KnowledgeStatus) error {
	query := `
		UPDATE documents
		SET metadata = jsonb_set(metadata, '{status}', to_jsonb($2::text), true)
		WHERE id = $1
	`

	result, err := s.db.ExecContext(ctx, query, id, string(status))
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

// Delete removes a chunk
func (s *KnowledgeStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

// ReplaceSyllabus swaps the ingested chunks and refreshes learned vectors in one transaction
func (s *KnowledgeStore) ReplaceSyllabus(ctx context.Context, chunks, reembedded []*domain.Chunk) (int, error) {
	removed := 0
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE NOT (metadata ? 'status')`)
		if err != nil {
			return fmt.Errorf("failed to remove syllabus chunks: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		removed = int(n)

		if err := insertChunks(ctx, tx, chunks); err != nil {
			return err
		}
		return updateEmbeddings(ctx, tx, reembedded)
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func insertChunks(ctx context.Context, tx *sql.Tx, chunks []*domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (id, content, metadata, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			return fmt.Errorf("chunk %s has no embedding", chunk.ID)
		}
		raw, err := encodeMetadata(chunk.Metadata)
		if err != nil {
			return err
		}
		createdAt := chunk.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}

		if _, err := stmt.ExecContext(ctx,
			chunk.ID,
			chunk.Content,
			raw,
			pgvector.NewVector(chunk.Embedding),
			createdAt,
		); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", chunk.ID, err)
		}
	}
	return nil
}

// updateEmbeddings rewrites vectors of learned chunks. Rows deleted meanwhile are skipped.
func updateEmbeddings(ctx context.Context, tx *sql.Tx, chunks []*domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE documents SET embedding = $2
		WHERE id = $1 AND metadata ? 'status'
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			return fmt.Errorf("chunk %s has no embedding", chunk.ID)
		}
		if _, err := stmt.ExecContext(ctx, chunk.ID, pgvector.NewVector(chunk.Embedding)); err != nil {
			return fmt.Errorf("failed to refresh embedding of %s: %w", chunk.ID, err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(row rowScanner) (*domain.Chunk, error) {
	var (
		chunk domain.Chunk
		raw   []byte
	)
	if err := row.Scan(&chunk.ID, &chunk.Content, &raw, &chunk.CreatedAt); err != nil {
		return nil, err
	}

	m, err := decodeMetadata(raw)
	if err != nil {
		return nil, err
	}
	chunk.Metadata = m
	return &chunk, nil
}

func expectOneRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
