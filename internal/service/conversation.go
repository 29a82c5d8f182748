package service

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/wildguard-ai/wildguard/internal/domain"
	"github.com/wildguard-ai/wildguard/internal/telemetry"
)

// Canned assistant messages. Every failure mode surfaces as one of these so
// a user turn is never left without an outcome.
const (
	GreetingText = "Hi! I'm WildGuard AI. How can I help you?"

	modelNotLoadedText = "AI model is not loaded or failed to respond. Check the inference backend configuration."

	sessionNotReadyText = "AI model session is not ready. Please restart the service."

	clarificationText = "I couldn't generate a clear answer from the current knowledge base. " +
		`Try asking in a simpler way, like: "What are the steps to treat hypothermia?"`

	embedderWarningText  = "Warning: embedding model not loaded, using keyword-only retrieval."
	emptyStoreWarningText = "Warning: knowledge base is empty or failed to load."
)

// minAnswerRunes is the threshold below which a generated response is
// treated as a non-answer.
const minAnswerRunes = 10

// ContextRetriever produces top-k context chunks for a query.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string, k int) []domain.KnowledgeChunk
}

// SessionProvider owns the engine session lifecycle for the conversation.
type SessionProvider interface {
	Available() bool
	Fresh() (Session, error)
}

// TaskRunner executes one background turn at a time; submission fails while
// a turn is in flight.
type TaskRunner interface {
	TrySubmit(task func(ctx context.Context)) bool
}

// ConversationConfig wires a Conversation's collaborators.
type ConversationConfig struct {
	Retriever ContextRetriever
	Prompts   *PromptBuilder
	Sessions  SessionProvider
	Runner    TaskRunner
	TopK      int

	// Degraded-mode flags, reported in the initial greeting.
	EmbedderReady  bool
	KnowledgeEmpty bool
}

// Conversation orchestrates the request/response cycle: retrieval, prompt
// assembly, generation, and the append-only message history. One instance
// per conversation; all exported methods are safe for concurrent use.
type Conversation struct {
	mu       sync.Mutex
	cfg      ConversationConfig
	messages []domain.ChatMessage
	loading  bool
	typing   bool
}

// NewConversation creates a Conversation in the loading state. Call Start
// once wiring is complete to append the greeting and open for messages.
func NewConversation(cfg ConversationConfig) *Conversation {
	if cfg.TopK <= 0 {
		cfg.TopK = 1
	}
	if cfg.Prompts == nil {
		cfg.Prompts = NewPromptBuilder(DefaultPromptConfig())
	}
	return &Conversation{cfg: cfg, loading: true}
}

// Start appends the initial greeting, composed from component availability,
// and clears the loading flag.
func (c *Conversation) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	var b strings.Builder
	if c.cfg.Sessions != nil && c.cfg.Sessions.Available() {
		b.WriteString(GreetingText)
	} else {
		b.WriteString(modelNotLoadedText)
	}
	if !c.cfg.EmbedderReady {
		b.WriteString("\n")
		b.WriteString(embedderWarningText)
	}
	if c.cfg.KnowledgeEmpty {
		b.WriteString("\n")
		b.WriteString(emptyStoreWarningText)
	}

	c.messages = []domain.ChatMessage{
		domain.NewChatMessage(0, strings.TrimSpace(b.String()), domain.AuthorAssistant),
	}
	c.loading = false
}

// SendMessage appends the user message and schedules the generation turn.
// It returns domain.ErrConversationBusy while a turn is in flight and
// domain.ErrBlankMessage for blank input; both leave the history unchanged.
func (c *Conversation) SendMessage(text string) error {
	if strings.TrimSpace(text) == "" {
		return domain.ErrBlankMessage
	}

	c.mu.Lock()
	if c.typing {
		c.mu.Unlock()
		return domain.ErrConversationBusy
	}

	c.appendLocked(text, domain.AuthorUser)

	if c.cfg.Sessions == nil || !c.cfg.Sessions.Available() {
		c.appendLocked(modelNotLoadedText, domain.AuthorAssistant)
		c.mu.Unlock()
		return nil
	}

	c.typing = true
	c.mu.Unlock()

	if !c.cfg.Runner.TrySubmit(func(ctx context.Context) { c.runTurn(ctx, text) }) {
		// The typing gate should make this unreachable; recover anyway so
		// the busy flag can never stick.
		c.mu.Lock()
		c.typing = false
		c.mu.Unlock()
		return domain.ErrConversationBusy
	}

	return nil
}

// runTurn executes one full generation sequence. Every failure is converted
// into an assistant message; the typing flag always clears.
func (c *Conversation) runTurn(ctx context.Context, text string) {
	ctx, span := telemetry.StartSpan(ctx, "Conversation.runTurn", telemetry.SpanAttributes{
		Operation: "generate",
	})
	defer span.End()

	defer func() {
		c.mu.Lock()
		c.typing = false
		c.mu.Unlock()
	}()

	chunks := c.cfg.Retriever.Retrieve(ctx, text, c.cfg.TopK)

	_, promptSpan := telemetry.StartSpan(ctx, "Conversation.buildPrompt", telemetry.SpanAttributes{
		Operation:  "prompt",
		ChunkCount: len(chunks),
	})
	prompt := c.cfg.Prompts.Build(text, chunks)
	promptSpan.End()

	session, err := c.cfg.Sessions.Fresh()
	if err != nil {
		log.Printf("conversation: session creation failed: %v", err)
		span.SetError(err)
		c.append(sessionNotReadyText, domain.AuthorAssistant)
		return
	}

	raw, err := session.Generate(ctx, prompt)
	if err != nil {
		log.Printf("conversation: generation failed: %v", err)
		span.SetError(err)
		c.append("Error: "+err.Error(), domain.AuthorAssistant)
		return
	}

	c.append(normalizeAnswer(raw), domain.AuthorAssistant)
}

// normalizeAnswer replaces blank, placeholder, or too-short responses with
// a canned clarification request.
func normalizeAnswer(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" || cleaned == "..." || len([]rune(cleaned)) < minAnswerRunes {
		return clarificationText
	}
	return cleaned
}

// Reset recreates the inference session and replaces the entire history
// with a single fresh greeting. A full conversation reset, not an
// incremental clear.
func (c *Conversation) Reset() {
	if c.cfg.Sessions != nil && c.cfg.Sessions.Available() {
		if _, err := c.cfg.Sessions.Fresh(); err != nil {
			log.Printf("conversation: reset session failed: %v", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = []domain.ChatMessage{
		domain.NewChatMessage(0, GreetingText, domain.AuthorAssistant),
	}
}

// Snapshot returns the observable conversation state: the loading flag, a
// copy of the ordered history, and the typing flag.
func (c *Conversation) Snapshot() (loading bool, messages []domain.ChatMessage, typing bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.ChatMessage, len(c.messages))
	copy(out, c.messages)
	return c.loading, out, c.typing
}

// Typing reports whether a generation is in flight.
func (c *Conversation) Typing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.typing
}

func (c *Conversation) append(text string, author domain.Author) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.appendLocked(text, author)
}

// appendLocked assigns the id from the current history length. History is
// append-only here; if pruning is ever added this scheme would produce
// duplicate ids.
func (c *Conversation) appendLocked(text string, author domain.Author) {
	c.messages = append(c.messages, domain.NewChatMessage(len(c.messages), text, author))
}
