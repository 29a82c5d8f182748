// Package knowledge loads and holds the immutable knowledge base the
// retriever ranks against.
package knowledge

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/wildguard-ai/wildguard/internal/domain"
)

// Store holds the loaded knowledge chunks. Chunks are immutable after
// startup; only their cached embeddings are filled in once by the
// precompute pass.
type Store struct {
	chunks []domain.KnowledgeChunk
}

// NewStore creates a Store over an already-loaded chunk list.
func NewStore(chunks []domain.KnowledgeChunk) *Store {
	return &Store{chunks: chunks}
}

// LoadFile parses a JSON knowledge source into a Store. On any read or
// parse failure it returns an empty, usable Store together with the error:
// RAG degrades to keyword-only or plain model answers, chat keeps working.
func LoadFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return NewStore(nil), fmt.Errorf("failed to read knowledge base: %w", err)
	}

	var chunks []domain.KnowledgeChunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return NewStore(nil), fmt.Errorf("failed to parse knowledge base: %w", err)
	}

	return NewStore(chunks), nil
}

// Count returns the number of loaded chunks.
func (s *Store) Count() int {
	return len(s.chunks)
}

// At returns the chunk at index i, or nil when out of range.
func (s *Store) At(i int) *domain.KnowledgeChunk {
	if i < 0 || i >= len(s.chunks) {
		return nil
	}
	return &s.chunks[i]
}

// Chunks returns the backing chunk slice. Callers must treat it as
// read-only.
func (s *Store) Chunks() []domain.KnowledgeChunk {
	return s.chunks
}

// SetEmbedding caches a computed embedding on the chunk at index i.
// Only the startup precompute pass calls this.
func (s *Store) SetEmbedding(i int, embedding []float32) {
	if i < 0 || i >= len(s.chunks) {
		return
	}
	s.chunks[i].Embedding = embedding
}

// Empty reports whether the store holds no chunks at all.
func (s *Store) Empty() bool {
	return len(s.chunks) == 0
}
