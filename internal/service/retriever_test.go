package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildguard-ai/wildguard/internal/domain"
	"github.com/wildguard-ai/wildguard/internal/knowledge"
)

func hybridRetriever(chunks []domain.KnowledgeChunk, queryVec []float32) *Retriever {
	store := knowledge.NewStore(chunks)
	client := &fakeEmbeddingClient{vector: queryVec}
	return NewRetriever(store, NewEmbedder(client))
}

func keywordRetriever(chunks []domain.KnowledgeChunk) *Retriever {
	return NewRetriever(knowledge.NewStore(chunks), NewEmbedder(nil))
}

func TestRetrieve_EmptyKnowledgeBase(t *testing.T) {
	r := hybridRetriever(nil, []float32{1, 0})
	assert.Empty(t, r.Retrieve(context.Background(), "fire", 3))
}

func TestRetrieve_KBound(t *testing.T) {
	chunks := []domain.KnowledgeChunk{
		{Topic: "Fire", Text: "tinder", Embedding: []float32{1, 0}},
		{Topic: "Fire pit", Text: "stones", Embedding: []float32{0.9, 0.1}},
		{Topic: "Fire bow", Text: "drill", Embedding: []float32{0.8, 0.2}},
	}
	r := hybridRetriever(chunks, []float32{1, 0})

	got := r.Retrieve(context.Background(), "fire", 2)
	assert.Len(t, got, 2)

	got = r.Retrieve(context.Background(), "fire", 10)
	assert.Len(t, got, 3)

	assert.Empty(t, r.Retrieve(context.Background(), "fire", 0))
}

func TestRetrieve_TitleMatchDominatesSimilarity(t *testing.T) {
	// Title-matching chunk with low similarity must outrank a
	// non-title-matching chunk with high similarity.
	chunks := []domain.KnowledgeChunk{
		{Topic: "Navigation", Text: "Follow the stars.", Embedding: []float32{0.9, 0.436}},
		{Topic: "Fire", Text: "Use dry tinder.", Embedding: []float32{0.1, 0.995}},
	}
	r := hybridRetriever(chunks, []float32{1, 0})

	got := r.Retrieve(context.Background(), "How do I start a fire?", 2)
	require.NotEmpty(t, got)
	assert.Equal(t, "Fire", got[0].Topic)
	// The title-overlap filter restricts the candidate set entirely.
	assert.Len(t, got, 1)
}

func TestRetrieve_NoTitleMatchesKeepsAllCandidates(t *testing.T) {
	chunks := []domain.KnowledgeChunk{
		{Topic: "Navigation", Text: "stars", Embedding: []float32{0.2, 0.98}},
		{Topic: "Shelter", Text: "branches", Embedding: []float32{0.9, 0.436}},
	}
	r := hybridRetriever(chunks, []float32{1, 0})

	got := r.Retrieve(context.Background(), "hypothermia", 2)
	require.Len(t, got, 2)
	// Ordered by cosine similarity when overlaps are all zero.
	assert.Equal(t, "Shelter", got[0].Topic)
}

func TestRetrieve_StableOrderOnTies(t *testing.T) {
	// Identical overlap and similarity: input order must be preserved
	// across repeated calls.
	chunks := []domain.KnowledgeChunk{
		{Topic: "Fire A", Text: "same", Embedding: []float32{1, 0}},
		{Topic: "Fire B", Text: "same", Embedding: []float32{1, 0}},
	}
	r := hybridRetriever(chunks, []float32{1, 0})

	for i := 0; i < 5; i++ {
		got := r.Retrieve(context.Background(), "fire", 2)
		require.Len(t, got, 2)
		assert.Equal(t, "Fire A", got[0].Topic)
		assert.Equal(t, "Fire B", got[1].Topic)
	}
}

func TestRetrieve_MismatchedDimensionSkipped(t *testing.T) {
	chunks := []domain.KnowledgeChunk{
		{Topic: "Fire", Text: "tinder", Embedding: []float32{1, 0, 0}}, // wrong dim
		{Topic: "Fire pit", Text: "stones", Embedding: []float32{1, 0}},
	}
	r := hybridRetriever(chunks, []float32{1, 0})

	got := r.Retrieve(context.Background(), "fire", 2)
	require.Len(t, got, 1)
	assert.Equal(t, "Fire pit", got[0].Topic)
}

func TestRetrieve_SentinelEmbeddingNeverMatched(t *testing.T) {
	chunks := []domain.KnowledgeChunk{
		{Topic: "Fire", Embedding: []float32{}}, // blank context sentinel
		{Topic: "Fire pit", Text: "stones", Embedding: []float32{1, 0}},
	}
	r := hybridRetriever(chunks, []float32{1, 0})

	got := r.Retrieve(context.Background(), "fire", 2)
	require.Len(t, got, 1)
	assert.Equal(t, "Fire pit", got[0].Topic)
}

func TestRetrieve_NoEmbeddedChunksFallsBackToKeyword(t *testing.T) {
	// Client alive but no chunk carries an embedding, the state left behind
	// when precompute fails at startup. Keyword scoring must take over.
	chunks := []domain.KnowledgeChunk{
		{Topic: "Fire", Text: "start a fire with dry tinder"},
		{Topic: "Water", Text: "boil for one minute"},
	}
	r := hybridRetriever(chunks, []float32{1, 0})

	got := r.Retrieve(context.Background(), "fire tinder", 1)
	require.Len(t, got, 1)
	assert.Equal(t, "Fire", got[0].Topic)
}

func TestRetrieve_EmbedErrorFallsBackToKeyword(t *testing.T) {
	store := knowledge.NewStore([]domain.KnowledgeChunk{
		{Topic: "Fire", Text: "dry tinder", Embedding: []float32{1, 0}},
		{Topic: "Water", Text: "boil", Embedding: []float32{0, 1}},
	})
	client := &fakeEmbeddingClient{err: errors.New("backend down")}
	r := NewRetriever(store, NewEmbedder(client))

	got := r.Retrieve(context.Background(), "fire tinder", 1)
	require.Len(t, got, 1)
	assert.Equal(t, "Fire", got[0].Topic)
}

func TestRetrieve_KeywordFallbackOrdering(t *testing.T) {
	chunks := []domain.KnowledgeChunk{
		{Topic: "Navigation", Text: "stars and moss"},
		{Topic: "Shelter", Text: "build a fire shelter from branches"},
		{Topic: "Fire", Text: "start a fire with tinder"},
	}
	r := keywordRetriever(chunks)

	// "fire shelter": Shelter hits both tokens, Fire hits one, Navigation none.
	got := r.Retrieve(context.Background(), "fire shelter", 2)
	require.Len(t, got, 2)
	assert.Equal(t, "Shelter", got[0].Topic)
	assert.Equal(t, "Fire", got[1].Topic)
}

func TestRetrieve_EndToEndScenario(t *testing.T) {
	chunks := []domain.KnowledgeChunk{
		{Topic: "Fire", Text: "Use dry tinder.", Embedding: []float32{0.5, 0.5}},
		{Topic: "Water", Text: "Boil for one minute.", Embedding: []float32{0.5, -0.5}},
	}
	r := hybridRetriever(chunks, []float32{1, 0})

	got := r.Retrieve(context.Background(), "How do I start a fire?", 1)
	require.Len(t, got, 1)
	assert.Equal(t, "Fire", got[0].Topic)
	assert.Equal(t, "Use dry tinder.", got[0].Text)
}

func TestContentWords_UnionFallback(t *testing.T) {
	// A query made entirely of stopwords keeps the unfiltered tokens.
	words := contentWords(tokenize("How do I start?"))
	assert.NotEmpty(t, words)
	_, ok := words["start"]
	assert.True(t, ok)
}

func TestTokenize(t *testing.T) {
	tokens := tokenize("How, do I.start\na FIRE?!")
	assert.Equal(t, []string{"how", "do", "i", "start", "a", "fire"}, tokens)
}
