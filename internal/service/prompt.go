package service

import (
	"fmt"
	"strings"

	"github.com/wildguard-ai/wildguard/internal/domain"
)

const (
	// ContextCharsPerChunk caps each rendered context passage (~100-150 tokens).
	ContextCharsPerChunk = 400

	// MaxPromptChars is the hard ceiling on the composed prompt, keeping it
	// safely under the engine's token limit.
	MaxPromptChars = 7000

	// RefusalAnswer is the exact string the model must reply with when the
	// knowledge base cannot answer the question safely.
	RefusalAnswer = "I’m not sure based on the current knowledge base."

	// TruncationMarker tells the model its view of the prompt is partial
	// rather than silently cut.
	TruncationMarker = "\n\n[Context truncated for size; answer based on the visible part only.]"

	noContextText = "No specific survival notes were found for this question in the knowledge base."
)

const promptTemplate = `You are WildGuard AI, an offline wilderness survival assistant running entirely on the user's device.

You will receive:
- A curated wilderness survival knowledge base ("Knowledge base")
- A user question ("Question")

Rules:
1. Use ONLY information from the Knowledge base to generate the best answer for the question. If the information from the knowledge base seems out of context, ignore it.
2. If the Knowledge base does not clearly contain the information needed for a safe and specific answer, reply exactly: "%[1]s" Do not add anything else before or after this sentence.
3. Do not invent or guess new survival techniques, numbers, medical advice, or facts that are not supported by the Knowledge base.
4. If parts of the Knowledge base are unrelated to the Question, ignore them completely.
5. Prefer information that directly matches the Question's topic (e.g. "fire", "shelter", "hypothermia") over more generic or less relevant notes.
6. If the question is related to knots, mention the name of the knot first.
7. Avoid repeating the same answers many times.

Knowledge base: %[2]s

Question: %[3]s

Answer format:
- Be precise and direct.
- Start with ONE short sentence summarising the key idea (max 20 words).
- Then give 3-6 numbered steps.
- Do NOT repeat the same idea in multiple steps.
- After writing the information from the Knowledge base, include a final line for important cautions if needed: "Caution:" followed by a suitable caution for the user depending on the context of the answer.
- If the Question is outside wilderness survival, about general chit-chat, or cannot be answered safely from the Knowledge base, reply exactly: "%[1]s"

Now write the answer following all the rules above.
Answer: `

// PromptConfig controls prompt assembly limits.
type PromptConfig struct {
	PerChunkChars int
	MaxChars      int
}

// DefaultPromptConfig provides the tuned defaults.
func DefaultPromptConfig() PromptConfig {
	return PromptConfig{
		PerChunkChars: ContextCharsPerChunk,
		MaxChars:      MaxPromptChars,
	}
}

// PromptBuilder assembles the bounded instruction prompt from retrieved
// context and the user question.
type PromptBuilder struct {
	cfg PromptConfig
}

// NewPromptBuilder creates a PromptBuilder with the given limits; zero
// values fall back to the defaults.
func NewPromptBuilder(cfg PromptConfig) *PromptBuilder {
	def := DefaultPromptConfig()
	if cfg.PerChunkChars <= 0 {
		cfg.PerChunkChars = def.PerChunkChars
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = def.MaxChars
	}
	return &PromptBuilder{cfg: cfg}
}

// Build composes the final prompt. The output never exceeds the configured
// character ceiling; an oversized prompt is truncated as a whole and ends
// with the truncation marker.
func (b *PromptBuilder) Build(query string, chunks []domain.KnowledgeChunk) string {
	context := b.renderContext(chunks)
	prompt := fmt.Sprintf(promptTemplate, RefusalAnswer, context, query)

	runes := []rune(prompt)
	if len(runes) <= b.cfg.MaxChars {
		return prompt
	}

	marker := []rune(TruncationMarker)
	cut := b.cfg.MaxChars - len(marker)
	if cut < 0 {
		cut = 0
	}
	return string(runes[:cut]) + TruncationMarker
}

func (b *PromptBuilder) renderContext(chunks []domain.KnowledgeChunk) string {
	if len(chunks) == 0 {
		return noContextText
	}

	passages := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		snippet := truncateRunes(chunk.ContextText(), b.cfg.PerChunkChars)
		passages = append(passages, "- "+snippet)
	}
	return strings.Join(passages, "\n\n")
}
