package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildguard-ai/wildguard/internal/domain"
	"github.com/wildguard-ai/wildguard/internal/pagination"
)

type fakeChatService struct {
	loading    bool
	typing     bool
	messages   []domain.ChatMessage
	sendErr    error
	sentTexts  []string
	resetCalls int
}

func (f *fakeChatService) Snapshot() (bool, []domain.ChatMessage, bool) {
	out := make([]domain.ChatMessage, len(f.messages))
	copy(out, f.messages)
	return f.loading, out, f.typing
}

func (f *fakeChatService) SendMessage(text string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sentTexts = append(f.sentTexts, text)
	f.messages = append(f.messages, domain.NewChatMessage(len(f.messages), text, domain.AuthorUser))
	f.typing = true
	return nil
}

func (f *fakeChatService) Reset() {
	f.resetCalls++
	f.messages = []domain.ChatMessage{
		domain.NewChatMessage(0, "Hi! I'm WildGuard AI. How can I help you?", domain.AuthorAssistant),
	}
	f.typing = false
}

func historyOf(texts ...string) []domain.ChatMessage {
	messages := make([]domain.ChatMessage, len(texts))
	for i, text := range texts {
		author := domain.AuthorAssistant
		if i%2 == 1 {
			author = domain.AuthorUser
		}
		messages[i] = domain.NewChatMessage(i, text, author)
	}
	return messages
}

func TestChatState(t *testing.T) {
	svc := &fakeChatService{
		typing:   true,
		messages: historyOf("greeting", "question", "answer"),
	}
	handler := NewChatHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/chat/state", nil)
	rec := httptest.NewRecorder()
	handler.State(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data ChatStateResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Data.Loading)
	assert.True(t, body.Data.Typing)
	assert.Equal(t, 3, body.Data.MessageCount)
}

func TestChatListMessages(t *testing.T) {
	svc := &fakeChatService{
		messages: historyOf("greeting", "question", "answer", "followup", "reply"),
	}
	handler := NewChatHandler(svc)

	t.Run("returns full history in order", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/chat/messages", nil)
		rec := httptest.NewRecorder()
		handler.ListMessages(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Data pagination.PageResult[MessageResponse] `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Data.Items, 5)
		assert.False(t, body.Data.HasMore)
		assert.Equal(t, "greeting", body.Data.Items[0].Text)
		assert.Equal(t, "assistant", body.Data.Items[0].Author)
		assert.Equal(t, "question", body.Data.Items[1].Text)
		assert.Equal(t, "user", body.Data.Items[1].Author)
		for i, item := range body.Data.Items {
			assert.Equal(t, i, item.ID)
		}
	})

	t.Run("paginates with cursor", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/chat/messages?limit=2", nil)
		rec := httptest.NewRecorder()
		handler.ListMessages(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var first struct {
			Data pagination.PageResult[MessageResponse] `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
		require.Len(t, first.Data.Items, 2)
		require.True(t, first.Data.HasMore)
		require.NotEmpty(t, first.Data.Cursor)

		req = httptest.NewRequest(http.MethodGet, "/chat/messages?limit=2&cursor="+first.Data.Cursor, nil)
		rec = httptest.NewRecorder()
		handler.ListMessages(rec, req)

		var second struct {
			Data pagination.PageResult[MessageResponse] `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
		require.Len(t, second.Data.Items, 2)
		assert.Equal(t, 2, second.Data.Items[0].ID)
		assert.Equal(t, 3, second.Data.Items[1].ID)
		assert.True(t, second.Data.HasMore)
	})

	t.Run("rejects malformed cursor", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/chat/messages?cursor=garbage!!!", nil)
		rec := httptest.NewRecorder()
		handler.ListMessages(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("cursor past the end returns empty page", func(t *testing.T) {
		cursor := pagination.EncodeCursor(99, time.Now())
		req := httptest.NewRequest(http.MethodGet, "/chat/messages?cursor="+cursor, nil)
		rec := httptest.NewRecorder()
		handler.ListMessages(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Data pagination.PageResult[MessageResponse] `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Empty(t, body.Data.Items)
		assert.False(t, body.Data.HasMore)
	})
}

func TestChatSendMessage(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		svc := &fakeChatService{messages: historyOf("greeting")}
		handler := NewChatHandler(svc)

		req := httptest.NewRequest(http.MethodPost, "/chat/messages",
			strings.NewReader(`{"text":"How do I purify water?"}`))
		rec := httptest.NewRecorder()
		handler.SendMessage(rec, req)

		require.Equal(t, http.StatusAccepted, rec.Code)
		require.Equal(t, []string{"How do I purify water?"}, svc.sentTexts)

		var body struct {
			Data struct {
				Typing  bool             `json:"typing"`
				Message *MessageResponse `json:"message"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.True(t, body.Data.Typing)
		require.NotNil(t, body.Data.Message)
		assert.Equal(t, "How do I purify water?", body.Data.Message.Text)
	})

	t.Run("invalid body", func(t *testing.T) {
		handler := NewChatHandler(&fakeChatService{})

		req := httptest.NewRequest(http.MethodPost, "/chat/messages", strings.NewReader("{not json"))
		rec := httptest.NewRecorder()
		handler.SendMessage(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("blank message", func(t *testing.T) {
		svc := &fakeChatService{sendErr: domain.ErrBlankMessage}
		handler := NewChatHandler(svc)

		req := httptest.NewRequest(http.MethodPost, "/chat/messages", strings.NewReader(`{"text":"   "}`))
		rec := httptest.NewRecorder()
		handler.SendMessage(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("busy conversation", func(t *testing.T) {
		svc := &fakeChatService{sendErr: domain.ErrConversationBusy}
		handler := NewChatHandler(svc)

		req := httptest.NewRequest(http.MethodPost, "/chat/messages", strings.NewReader(`{"text":"hello"}`))
		rec := httptest.NewRecorder()
		handler.SendMessage(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestChatReset(t *testing.T) {
	svc := &fakeChatService{messages: historyOf("greeting", "question", "answer")}
	handler := NewChatHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/chat/reset", nil)
	rec := httptest.NewRecorder()
	handler.Reset(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, svc.resetCalls)

	var body struct {
		Data struct {
			Messages []MessageResponse `json:"messages"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data.Messages, 1)
	assert.Equal(t, "assistant", body.Data.Messages[0].Author)
}
