package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildguard-ai/wildguard/internal/domain"
)

func TestPromptBuilder_ContainsContextAndQuestion(t *testing.T) {
	b := NewPromptBuilder(DefaultPromptConfig())
	chunks := []domain.KnowledgeChunk{
		{Topic: "Fire", Text: "Use dry tinder."},
	}

	prompt := b.Build("How do I start a fire?", chunks)
	assert.Contains(t, prompt, "Use dry tinder.")
	assert.Contains(t, prompt, "How do I start a fire?")
	assert.Contains(t, prompt, RefusalAnswer)
}

func TestPromptBuilder_EmptyContext(t *testing.T) {
	b := NewPromptBuilder(DefaultPromptConfig())

	prompt := b.Build("How do I start a fire?", nil)
	assert.Contains(t, prompt, "No specific survival notes were found")
}

func TestPromptBuilder_PerChunkCap(t *testing.T) {
	b := NewPromptBuilder(PromptConfig{PerChunkChars: 10, MaxChars: MaxPromptChars})
	chunks := []domain.KnowledgeChunk{
		{Topic: "Fire", Text: strings.Repeat("tinder ", 50)},
	}

	prompt := b.Build("fire", chunks)
	assert.Contains(t, prompt, "- tinder tin")
	assert.NotContains(t, prompt, strings.Repeat("tinder ", 3))
}

func TestPromptBuilder_CeilingNeverExceeded(t *testing.T) {
	b := NewPromptBuilder(DefaultPromptConfig())
	chunks := make([]domain.KnowledgeChunk, 0, 40)
	for i := 0; i < 40; i++ {
		chunks = append(chunks, domain.KnowledgeChunk{
			Topic: "Fire",
			Text:  strings.Repeat("very long survival passage ", 30),
		})
	}

	prompt := b.Build("fire", chunks)
	assert.LessOrEqual(t, len([]rune(prompt)), MaxPromptChars)
	assert.True(t, strings.HasSuffix(prompt, TruncationMarker))
}

func TestPromptBuilder_NoMarkerWhenWithinBudget(t *testing.T) {
	b := NewPromptBuilder(DefaultPromptConfig())

	prompt := b.Build("fire", []domain.KnowledgeChunk{{Topic: "Fire", Text: "Use dry tinder."}})
	assert.False(t, strings.HasSuffix(prompt, TruncationMarker))
}

func TestPromptBuilder_StructuredChunkRoundTrip(t *testing.T) {
	// A chunk with only description/use_cases/instructions still renders a
	// non-empty passage carrying the title, description and instructions.
	b := NewPromptBuilder(DefaultPromptConfig())
	chunk := domain.KnowledgeChunk{
		KnotName:     "Bowline",
		Description:  "A fixed loop that holds under load.",
		UseCases:     []string{"rescue", "mooring"},
		Instructions: "Form a small loop and pass the working end through.",
	}

	prompt := b.Build("How do I tie a bowline?", []domain.KnowledgeChunk{chunk})
	assert.Contains(t, prompt, "Bowline")
	assert.Contains(t, prompt, "A fixed loop that holds under load.")
	assert.Contains(t, prompt, "Form a small loop and pass the working end through.")
}

func TestPromptBuilder_ZeroConfigUsesDefaults(t *testing.T) {
	b := NewPromptBuilder(PromptConfig{})
	require.Equal(t, ContextCharsPerChunk, b.cfg.PerChunkChars)
	require.Equal(t, MaxPromptChars, b.cfg.MaxChars)
}
