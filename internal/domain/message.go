package domain

import "time"

// Author identifies who wrote a chat message.
type Author string

const (
	AuthorUser      Author = "user"
	AuthorAssistant Author = "assistant"
)

// ChatMessage represents one turn in a conversation. Messages are
// append-only; the ID is the history position at insertion time.
type ChatMessage struct {
	ID        int       `json:"id"`
	Text      string    `json:"text"`
	Author    Author    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

// NewChatMessage creates a ChatMessage stamped with the current time.
func NewChatMessage(id int, text string, author Author) ChatMessage {
	return ChatMessage{
		ID:        id,
		Text:      text,
		Author:    author,
		CreatedAt: time.Now().UTC(),
	}
}
