package service

import (
	"context"
	"log"
	"sort"
	"strings"

	"github.com/wildguard-ai/wildguard/internal/domain"
)

// stopwords are dropped from the query before keyword-overlap scoring.
// Tuned empirically; the ordering contract does not depend on the exact set.
var stopwords = map[string]struct{}{
	"how": {}, "what": {}, "when": {}, "where": {}, "why": {}, "who": {},
	"to": {}, "a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "do": {}, "i": {},
	"you": {}, "in": {}, "of": {}, "for": {}, "on": {}, "and": {}, "or": {},
	"start": {}, "make": {},
}

func isTokenSeparator(r rune) bool {
	switch r {
	case ' ', '\n', '\t', ',', '.', '?', '!', ':', ';':
		return true
	}
	return false
}

func tokenize(query string) []string {
	return strings.FieldsFunc(strings.ToLower(query), isTokenSeparator)
}

// contentWords returns the stopword-filtered query tokens. When filtering
// removes everything, the unfiltered token set is used instead so short
// queries still match something.
func contentWords(tokens []string) map[string]struct{} {
	words := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		if _, stop := stopwords[tok]; !stop {
			words[tok] = struct{}{}
		}
	}
	if len(words) == 0 {
		for _, tok := range tokens {
			words[tok] = struct{}{}
		}
	}
	return words
}

func overlapCount(words map[string]struct{}, text string) int {
	count := 0
	for word := range words {
		if strings.Contains(text, word) {
			count++
		}
	}
	return count
}

// Retriever ranks knowledge chunks against a query with a hybrid score:
// title keyword overlap, then body keyword overlap, then embedding cosine
// similarity. It degrades to pure keyword scoring when the embedder is
// unavailable or fails.
type Retriever struct {
	source   ChunkSource
	embedder *Embedder
}

// NewRetriever creates a Retriever over the given store and embedder.
func NewRetriever(source ChunkSource, embedder *Embedder) *Retriever {
	return &Retriever{source: source, embedder: embedder}
}

// Retrieve returns the best-first top-k chunks for the query. An empty
// result is a valid "no context" state, never an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) []domain.KnowledgeChunk {
	if r.source == nil || r.source.Count() == 0 || k <= 0 {
		return nil
	}

	if r.embedder.Available() {
		chunks, ok := r.retrieveHybrid(ctx, query, k)
		if ok {
			return chunks
		}
		log.Printf("retriever: embedding path failed, falling back to keyword search")
	}

	return r.retrieveByKeyword(query, k)
}

type scoredChunk struct {
	chunk      *domain.KnowledgeChunk
	similarity float64
	titleScore int
	bodyScore  int
}

// retrieveHybrid runs the embedding-based ranking. The second return value
// is false when the embedding call failed or when no chunk carries a
// comparable embedding; the caller falls back to keyword scoring.
func (r *Retriever) retrieveHybrid(ctx context.Context, query string, k int) ([]domain.KnowledgeChunk, bool) {
	qVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, false
	}
	if len(qVec) == 0 {
		// Blank query embedding: "no context" is the expected outcome.
		return nil, true
	}

	words := contentWords(tokenize(query))

	scored := make([]scoredChunk, 0, r.source.Count())
	for i := 0; i < r.source.Count(); i++ {
		chunk := r.source.At(i)
		if chunk == nil || !chunk.HasEmbedding() || len(chunk.Embedding) != len(qVec) {
			continue
		}
		scored = append(scored, scoredChunk{
			chunk:      chunk,
			similarity: domain.Cosine(qVec, chunk.Embedding),
			titleScore: overlapCount(words, chunk.TitleText()),
			bodyScore:  overlapCount(words, chunk.BodyText()),
		})
	}
	if len(scored) == 0 {
		// Nothing to rank by similarity, e.g. precompute failed at startup.
		return nil, false
	}

	// Chunks whose title matches a content word dominate as a group; only
	// when no title matches at all does the full candidate set survive.
	withTitle := make([]scoredChunk, 0, len(scored))
	for _, s := range scored {
		if s.titleScore > 0 {
			withTitle = append(withTitle, s)
		}
	}
	candidates := scored
	if len(withTitle) > 0 {
		candidates = withTitle
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].titleScore != candidates[j].titleScore {
			return candidates[i].titleScore > candidates[j].titleScore
		}
		if candidates[i].bodyScore != candidates[j].bodyScore {
			return candidates[i].bodyScore > candidates[j].bodyScore
		}
		return candidates[i].similarity > candidates[j].similarity
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	out := make([]domain.KnowledgeChunk, 0, k)
	for _, s := range candidates[:k] {
		out = append(out, *s.chunk)
	}
	return out, true
}

// retrieveByKeyword scores every chunk by raw substring hits of the query
// tokens across all text fields. Sole retrieval path when the embedder was
// never initialized.
func (r *Retriever) retrieveByKeyword(query string, k int) []domain.KnowledgeChunk {
	tokens := tokenize(query)

	type keywordScored struct {
		chunk *domain.KnowledgeChunk
		score int
	}

	scored := make([]keywordScored, 0, r.source.Count())
	for i := 0; i < r.source.Count(); i++ {
		chunk := r.source.At(i)
		if chunk == nil {
			continue
		}
		all := chunk.AllText()
		score := 0
		for _, tok := range tokens {
			if strings.Contains(all, tok) {
				score++
			}
		}
		scored = append(scored, keywordScored{chunk: chunk, score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	if k > len(scored) {
		k = len(scored)
	}
	out := make([]domain.KnowledgeChunk, 0, k)
	for _, s := range scored[:k] {
		out = append(out, *s.chunk)
	}
	return out
}
