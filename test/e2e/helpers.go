//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/wildguard-ai/wildguard/internal/api/handlers"
	"github.com/wildguard-ai/wildguard/internal/jobs"
	"github.com/wildguard-ai/wildguard/internal/knowledge"
	"github.com/wildguard-ai/wildguard/internal/server"
	"github.com/wildguard-ai/wildguard/internal/service"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	Engine       *ScriptedEngine
	ServerURL    string
	ServerCloser func()
	HTTPClient   *http.Client
	runnerCancel context.CancelFunc
}

// ScriptedEngine is an in-process engine whose replies are driven by the
// test. Delay simulates generation latency so busy-rejection is observable.
type ScriptedEngine struct {
	mu    sync.Mutex
	Reply func(prompt string) string
	Delay time.Duration

	prompts []string
}

func (e *ScriptedEngine) NewSession(params service.SamplingParams) (service.Session, error) {
	return &scriptedSession{engine: e}, nil
}

// Prompts returns every prompt generated so far.
func (e *ScriptedEngine) Prompts() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.prompts))
	copy(out, e.prompts)
	return out
}

type scriptedSession struct {
	engine *ScriptedEngine
}

func (s *scriptedSession) Generate(ctx context.Context, prompt string) (string, error) {
	s.engine.mu.Lock()
	s.engine.prompts = append(s.engine.prompts, prompt)
	reply := "This is a scripted answer with enough length."
	if s.engine.Reply != nil {
		reply = s.engine.Reply(prompt)
	}
	delay := s.engine.Delay
	s.engine.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return reply, nil
}

func (s *scriptedSession) Close() error { return nil }

// DefaultKnowledgeBase is the chunk set served by SetupE2EEnv.
const DefaultKnowledgeBase = `[
  {
    "topic": "Water purification",
    "region": "global",
    "text": "Boil water for at least one minute. At high altitude, boil for three minutes."
  },
  {
    "knot_name": "Bowline",
    "description": "A loop knot that holds under load and unties easily.",
    "use_cases": ["Rescue loops", "Anchoring shelter lines"],
    "instructions": "Make a small loop, pass the working end up through it, behind the standing part, and back down the loop."
  }
]`

// SetupE2EEnv starts an in-process chat server over a temp knowledge file
// and a scripted engine. No embedding backend is configured, so retrieval
// runs in keyword mode.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	kbPath := filepath.Join(t.TempDir(), "knowledge_base.json")
	if err := os.WriteFile(kbPath, []byte(DefaultKnowledgeBase), 0o644); err != nil {
		t.Fatalf("failed to write knowledge base: %v", err)
	}

	store, err := knowledge.LoadFile(kbPath)
	if err != nil {
		t.Fatalf("failed to load knowledge base: %v", err)
	}

	engine := &ScriptedEngine{}
	embedder := service.NewEmbedder(nil)
	retriever := service.NewRetriever(store, embedder)
	sessions := service.NewSessionManager(engine, service.DefaultSamplingParams())

	runnerCtx, runnerCancel := context.WithCancel(ctx)
	runner := jobs.NewRunner()
	go runner.Start(runnerCtx)

	conversation := service.NewConversation(service.ConversationConfig{
		Retriever:      retriever,
		Sessions:       sessions,
		Runner:         runner,
		TopK:           1,
		EmbedderReady:  false,
		KnowledgeEmpty: store.Empty(),
	})
	conversation.Start()

	router := server.NewRouter(server.RouterConfig{
		ChatHandler: handlers.NewChatHandler(conversation),
	})

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return &E2ETestEnv{
		T:         t,
		Ctx:       ctx,
		Engine:    engine,
		ServerURL: serverURL,
		ServerCloser: func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		},
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
		runnerCancel: runnerCancel,
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.runnerCancel != nil {
		e.runnerCancel()
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path string) (*APIResponse, int, error) {
	return e.doRequest("GET", path, nil)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, int, error) {
	return e.doRequest("POST", path, body)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}) (*APIResponse, int, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to parse response: %w", err)
	}

	return &apiResp, resp.StatusCode, nil
}

// Message mirrors the server's chat message payload
type Message struct {
	ID     int    `json:"id"`
	Text   string `json:"text"`
	Author string `json:"author"`
}

// ChatState mirrors the server's conversation state payload
type ChatState struct {
	Loading      bool `json:"loading"`
	Typing       bool `json:"typing"`
	MessageCount int  `json:"message_count"`
}

// State fetches the current conversation state
func (e *E2ETestEnv) State() ChatState {
	resp, status, err := e.Get("/chat/state")
	if err != nil || status != http.StatusOK {
		e.T.Fatalf("failed to get state (status %d): %v", status, err)
	}
	var state ChatState
	if err := json.Unmarshal(resp.Data, &state); err != nil {
		e.T.Fatalf("failed to parse state: %v", err)
	}
	return state
}

// Messages fetches the full history in one page
func (e *E2ETestEnv) Messages() []Message {
	resp, status, err := e.Get("/chat/messages?limit=100")
	if err != nil || status != http.StatusOK {
		e.T.Fatalf("failed to get messages (status %d): %v", status, err)
	}
	var page struct {
		Items []Message `json:"items"`
	}
	if err := json.Unmarshal(resp.Data, &page); err != nil {
		e.T.Fatalf("failed to parse messages: %v", err)
	}
	return page.Items
}

// WaitIdle polls until the assistant finishes typing
func (e *E2ETestEnv) WaitIdle(timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !e.State().Typing {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	e.T.Fatalf("conversation still typing after %v", timeout)
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
