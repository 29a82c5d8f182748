package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/wildguard-ai/wildguard/internal/domain"
)

// EmbeddingClient defines the backend boundary for generating embeddings.
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// ChunkSource is the read-only view of the knowledge store.
type ChunkSource interface {
	Count() int
	At(i int) *domain.KnowledgeChunk
}

// ChunkIndex extends ChunkSource with the embedding cache used by the
// startup precompute pass.
type ChunkIndex interface {
	ChunkSource
	SetEmbedding(i int, embedding []float32)
}

// EmbedTextMaxChars bounds the text handed to the embedding backend;
// oversized inputs are truncated, not rejected.
const EmbedTextMaxChars = 600

// Embedder converts text into fixed-length, L2-normalized vectors so that
// cosine similarity reduces to a dot product. A nil client means the
// backend failed to initialize; callers fall back to keyword search.
type Embedder struct {
	client   EmbeddingClient
	maxChars int
}

// NewEmbedder creates an Embedder over the given backend client.
// client may be nil when the backend is unavailable.
func NewEmbedder(client EmbeddingClient) *Embedder {
	return &Embedder{client: client, maxChars: EmbedTextMaxChars}
}

// Available reports whether the embedding backend is usable.
func (e *Embedder) Available() bool {
	return e != nil && e.client != nil
}

// Embed returns the normalized embedding of text, truncated to the
// configured maximum length first. Returns domain.ErrEmbedderUnavailable
// when the backend was never initialized.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if !e.Available() {
		return nil, domain.ErrEmbedderUnavailable
	}

	text = truncateRunes(strings.TrimSpace(text), e.maxChars)
	if text == "" {
		return nil, nil
	}

	vec, err := e.client.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}

	// Backends are not trusted to return unit-length vectors; normalize
	// explicitly so downstream similarity is a plain dot product.
	domain.L2Normalize(vec)
	return vec, nil
}

// Precompute fills the embedding cache for every chunk whose context text is
// non-empty. Blank chunks receive the zero-length sentinel and are never
// similarity-matched. Chunks that already carry a precomputed embedding are
// left untouched. Stops at the first backend error; retrieval then degrades
// to the chunks embedded so far.
func (e *Embedder) Precompute(ctx context.Context, index ChunkIndex) error {
	if !e.Available() {
		return domain.ErrEmbedderUnavailable
	}

	for i := 0; i < index.Count(); i++ {
		chunk := index.At(i)
		if chunk == nil || chunk.HasEmbedding() {
			continue
		}

		text := chunk.ContextText()
		if strings.TrimSpace(text) == "" {
			index.SetEmbedding(i, []float32{})
			continue
		}

		vec, err := e.Embed(ctx, text)
		if err != nil {
			return fmt.Errorf("failed to embed chunk %d: %w", i, err)
		}
		index.SetEmbedding(i, vec)
	}

	return nil
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
