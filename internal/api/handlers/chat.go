package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/wildguard-ai/wildguard/internal/api"
	"github.com/wildguard-ai/wildguard/internal/domain"
	"github.com/wildguard-ai/wildguard/internal/pagination"
)

// ChatService exposes the conversation operations the HTTP surface needs.
type ChatService interface {
	Snapshot() (loading bool, messages []domain.ChatMessage, typing bool)
	SendMessage(text string) error
	Reset()
}

type ChatHandler struct {
	svc ChatService
}

func NewChatHandler(svc ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type SendMessageRequest struct {
	Text string `json:"text"`
}

type MessageResponse struct {
	ID        int    `json:"id"`
	Text      string `json:"text"`
	Author    string `json:"author"`
	CreatedAt string `json:"created_at"`
}

type ChatStateResponse struct {
	Loading      bool `json:"loading"`
	Typing       bool `json:"typing"`
	MessageCount int  `json:"message_count"`
}

func messageToResponse(m domain.ChatMessage) MessageResponse {
	return MessageResponse{
		ID:        m.ID,
		Text:      m.Text,
		Author:    string(m.Author),
		CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// State reports the conversation flags and history length.
func (h *ChatHandler) State(w http.ResponseWriter, r *http.Request) {
	loading, messages, typing := h.svc.Snapshot()
	api.Success(w, http.StatusOK, ChatStateResponse{
		Loading:      loading,
		Typing:       typing,
		MessageCount: len(messages),
	})
}

// ListMessages returns the ordered history, paginated by message id.
func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	cursor, err := pagination.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid cursor")
		return
	}

	_, messages, _ := h.svc.Snapshot()

	// Message ids are dense and ascending, so the cursor's LastID marks
	// the offset directly.
	start := 0
	if cursor != nil {
		start = cursor.LastID + 1
	}
	if start > len(messages) {
		start = len(messages)
	}

	page := messages[start:]
	hasMore := len(page) > limit
	if hasMore {
		page = page[:limit]
	}

	items := make([]MessageResponse, len(page))
	for i, m := range page {
		items[i] = messageToResponse(m)
	}

	next := ""
	if hasMore {
		next = pagination.EncodeCursor(page[len(page)-1].ID, page[len(page)-1].CreatedAt)
	}

	api.Success(w, http.StatusOK, pagination.PageResult[MessageResponse]{
		Items:   items,
		Cursor:  next,
		HasMore: hasMore,
	})
}

// SendMessage accepts a user turn. Generation runs in the background, so a
// successful submit returns 202 and the client polls for the answer.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.SendMessage(req.Text); err != nil {
		api.HandleError(w, err)
		return
	}

	_, messages, typing := h.svc.Snapshot()
	var last *MessageResponse
	if len(messages) > 0 {
		m := messageToResponse(messages[len(messages)-1])
		last = &m
	}

	api.Success(w, http.StatusAccepted, struct {
		Typing  bool             `json:"typing"`
		Message *MessageResponse `json:"message,omitempty"`
	}{Typing: typing, Message: last})
}

// Reset replaces the history with a fresh greeting and a new session.
func (h *ChatHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.svc.Reset()

	_, messages, _ := h.svc.Snapshot()
	items := make([]MessageResponse, len(messages))
	for i, m := range messages {
		items[i] = messageToResponse(m)
	}

	api.Success(w, http.StatusOK, struct {
		Messages []MessageResponse `json:"messages"`
	}{Messages: items})
}
