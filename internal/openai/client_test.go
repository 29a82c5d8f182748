package openai

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	embedding  []float32
	embedErr   error
	completion string
	completeErr error
	lastReq    CompletionRequest
}

func (f *fakeAPI) CreateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return f.embedding, nil
}

func (f *fakeAPI) CreateCompletion(ctx context.Context, req CompletionRequest) (string, error) {
	f.lastReq = req
	if f.completeErr != nil {
		return "", f.completeErr
	}
	return f.completion, nil
}

func newTestClient(api API, dims int) *Client {
	return &Client{api: api, dimensions: dims}
}

func TestGenerateEmbedding_Success(t *testing.T) {
	api := &fakeAPI{embedding: []float32{0.1, 0.2, 0.3}}
	client := newTestClient(api, 3)

	embedding, err := client.GenerateEmbedding(context.Background(), "fire starting")
	require.NoError(t, err)
	assert.Len(t, embedding, 3)
}

func TestGenerateEmbedding_EmptyText(t *testing.T) {
	client := newTestClient(&fakeAPI{}, 3)

	_, err := client.GenerateEmbedding(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestGenerateEmbedding_WrongDimensions(t *testing.T) {
	api := &fakeAPI{embedding: []float32{0.1, 0.2}}
	client := newTestClient(api, 3)

	_, err := client.GenerateEmbedding(context.Background(), "fire")
	assert.ErrorIs(t, err, ErrWrongDimensions)
}

func TestGenerateEmbedding_BackendError(t *testing.T) {
	api := &fakeAPI{embedErr: errors.New("connection refused")}
	client := newTestClient(api, 3)

	_, err := client.GenerateEmbedding(context.Background(), "fire")
	assert.ErrorContains(t, err, "failed to create embedding")
}

func TestGenerate_PassesSamplingParams(t *testing.T) {
	api := &fakeAPI{completion: "1. Gather dry tinder."}
	client := newTestClient(api, 3)

	out, err := client.Generate(context.Background(), CompletionRequest{
		Prompt:      "How do I start a fire?",
		MaxTokens:   800,
		Temperature: 0.2,
		TopP:        0.8,
		TopK:        20,
	})
	require.NoError(t, err)
	assert.Equal(t, "1. Gather dry tinder.", out)
	assert.Equal(t, 800, api.lastReq.MaxTokens)
	assert.InDelta(t, 0.2, api.lastReq.Temperature, 1e-6)
	assert.InDelta(t, 0.8, api.lastReq.TopP, 1e-6)
}

func TestGenerate_EmptyPrompt(t *testing.T) {
	client := newTestClient(&fakeAPI{}, 3)

	_, err := client.Generate(context.Background(), CompletionRequest{})
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestNewClientFromEnv_NoKey(t *testing.T) {
	old := os.Getenv("OPENAI_API_KEY")
	os.Unsetenv("OPENAI_API_KEY")
	defer os.Setenv("OPENAI_API_KEY", old)

	_, err := NewClientFromEnv()
	assert.ErrorIs(t, err, ErrNoAPIKey)
}
