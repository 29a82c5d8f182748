package service

import (
	"context"
	"log"
	"sync"

	"github.com/wildguard-ai/wildguard/internal/domain"
)

// SamplingParams carry the per-session generation controls.
type SamplingParams struct {
	Temperature float32
	TopP        float32
	TopK        int
}

// DefaultSamplingParams keeps generation deterministic and grounded.
func DefaultSamplingParams() SamplingParams {
	return SamplingParams{
		Temperature: 0.2,
		TopP:        0.8,
		TopK:        20,
	}
}

// Session is one generation scope against the engine.
type Session interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Close() error
}

// Engine is the black-box language-model boundary.
type Engine interface {
	NewSession(params SamplingParams) (Session, error)
}

// SessionManager owns the single mutable current-session slot for a
// conversation. Replacement is a guarded two-step: attempt to close the old
// session, then create and assign the new one. A close failure is logged
// and swallowed; it never blocks creation of the new session.
type SessionManager struct {
	mu      sync.Mutex
	engine  Engine
	params  SamplingParams
	current Session
}

// NewSessionManager creates a SessionManager. engine may be nil when the
// model failed to load; every Fresh call then reports the model as
// unavailable for the rest of the process lifetime.
func NewSessionManager(engine Engine, params SamplingParams) *SessionManager {
	return &SessionManager{engine: engine, params: params}
}

// Available reports whether the engine loaded at all.
func (m *SessionManager) Available() bool {
	return m != nil && m.engine != nil
}

// Fresh closes the previous session (if any) and creates a new one with the
// configured sampling parameters.
func (m *SessionManager) Fresh() (Session, error) {
	if !m.Available() {
		return nil, domain.ErrModelNotLoaded
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		if err := m.current.Close(); err != nil {
			log.Printf("session: error closing old session: %v", err)
		}
		m.current = nil
	}

	session, err := m.engine.NewSession(m.params)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeSession, "failed to create inference session", err)
	}

	m.current = session
	return session, nil
}

// Close releases the current session, if any.
func (m *SessionManager) Close() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		if err := m.current.Close(); err != nil {
			log.Printf("session: error closing session: %v", err)
		}
		m.current = nil
	}
}
