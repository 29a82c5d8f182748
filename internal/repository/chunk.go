package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/wildguard-ai/wildguard/internal/domain"
)

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ChunkRepository persists the knowledge base in Postgres with pgvector
// embeddings. Chunk order is significant, so rows carry an explicit position.
type ChunkRepository struct {
	pool *pgxpool.Pool
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{pool: pool}
}

// LoadAll returns every chunk in stored order. A NULL embedding column maps
// to nil; a chunk persisted after embedding skipped it (blank content) maps
// to the zero-length slice.
func (r *ChunkRepository) LoadAll(ctx context.Context) ([]domain.KnowledgeChunk, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT topic, region, knot_name, description, use_cases, instructions, body, embedding, embedding_skipped
		 FROM knowledge_chunks ORDER BY position`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []domain.KnowledgeChunk
	for rows.Next() {
		var c domain.KnowledgeChunk
		var embedding *pgvector.Vector
		var skipped bool
		if err := rows.Scan(
			&c.Topic, &c.Region, &c.KnotName, &c.Description,
			&c.UseCases, &c.Instructions, &c.Text, &embedding, &skipped,
		); err != nil {
			return nil, err
		}
		switch {
		case embedding != nil:
			c.Embedding = embedding.Slice()
		case skipped:
			c.Embedding = []float32{}
		}
		chunks = append(chunks, c)
	}

	return chunks, rows.Err()
}

// ReplaceAll swaps the entire knowledge base in one transaction.
func (r *ChunkRepository) ReplaceAll(ctx context.Context, chunks []domain.KnowledgeChunk) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM knowledge_chunks`); err != nil {
		return err
	}

	for i, c := range chunks {
		if err := insertChunk(ctx, tx, i, c); err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", i, err)
		}
	}

	return tx.Commit(ctx)
}

func insertChunk(ctx context.Context, db dbtx, position int, c domain.KnowledgeChunk) error {
	var embedding any
	skipped := false
	switch {
	case len(c.Embedding) > 0:
		embedding = pgvector.NewVector(c.Embedding)
	case c.Embedding != nil:
		skipped = true
	}

	_, err := db.Exec(ctx,
		`INSERT INTO knowledge_chunks
			(position, topic, region, knot_name, description, use_cases, instructions, body, embedding, embedding_skipped)
		 VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		position, c.Topic, c.Region, c.KnotName, c.Description,
		c.UseCases, c.Instructions, c.Text, embedding, skipped,
	)
	return err
}

// UpdateEmbedding persists a precomputed embedding for the chunk at the
// given position. A zero-length slice records a skipped (blank) chunk.
func (r *ChunkRepository) UpdateEmbedding(ctx context.Context, position int, embedding []float32) error {
	var value any
	skipped := false
	if len(embedding) > 0 {
		value = pgvector.NewVector(embedding)
	} else {
		skipped = true
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE knowledge_chunks SET embedding = $1, embedding_skipped = $2 WHERE position = $3`,
		value, skipped, position,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no chunk at position %d", position)
	}
	return nil
}

// Count returns the number of stored chunks.
func (r *ChunkRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM knowledge_chunks`).Scan(&count)
	return count, err
}
