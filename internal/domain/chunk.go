package domain

import "strings"

// KnowledgeChunk represents one retrievable survival fact or procedure.
// Every text field is optional; a chunk is only useful when at least one of
// Text or Description is non-empty.
type KnowledgeChunk struct {
	Topic        string    `json:"topic,omitempty"`
	Region       string    `json:"region,omitempty"`
	KnotName     string    `json:"knot_name,omitempty"`
	Description  string    `json:"description,omitempty"`
	UseCases     []string  `json:"use_cases,omitempty"`
	Instructions string    `json:"instructions,omitempty"`
	Text         string    `json:"text,omitempty"`
	Embedding    []float32 `json:"embedding,omitempty"`
}

// Title returns the display title for the chunk: topic first, then knot name.
func (c *KnowledgeChunk) Title() string {
	if c.Topic != "" {
		return c.Topic
	}
	if c.KnotName != "" {
		return c.KnotName
	}
	return ""
}

// ContextText renders the chunk as a human-readable context passage.
// Explicit body text wins; otherwise a structured rendering of the
// title/description/use-cases/instructions fields. Chunks with neither
// render empty and are effectively never surfaced.
func (c *KnowledgeChunk) ContextText() string {
	if c.Text != "" {
		return c.Text
	}
	if c.Description == "" {
		return ""
	}

	title := c.Title()
	if title == "" {
		title = "Knot"
	}

	var b strings.Builder
	b.WriteString(title)
	b.WriteString(".\nDescription: ")
	b.WriteString(c.Description)
	b.WriteString("\nUses: ")
	b.WriteString(strings.Join(c.UseCases, ", "))
	b.WriteString("\nInstructions: ")
	b.WriteString(c.Instructions)
	return b.String()
}

// TitleText returns the lowercased title-level fields used for
// keyword-overlap scoring.
func (c *KnowledgeChunk) TitleText() string {
	return strings.ToLower(c.Topic + " " + c.KnotName)
}

// BodyText returns the lowercased body-level fields used for
// keyword-overlap scoring.
func (c *KnowledgeChunk) BodyText() string {
	return strings.ToLower(c.Region + " " + c.Text + " " + c.Description)
}

// AllText returns every text field concatenated and lowercased, for the
// keyword-only fallback scorer.
func (c *KnowledgeChunk) AllText() string {
	return strings.ToLower(
		c.Topic + " " + c.Region + " " + c.Text + " " + c.KnotName + " " + c.Description,
	)
}

// HasEmbedding reports whether the chunk carries a usable embedding.
// A zero-length vector is the sentinel for "never similarity-matched".
func (c *KnowledgeChunk) HasEmbedding() bool {
	return len(c.Embedding) > 0
}
