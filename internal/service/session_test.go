package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildguard-ai/wildguard/internal/domain"
)

type fakeSession struct {
	response    string
	generateErr error
	closeErr    error
	closed      int
	lastPrompt  string
}

func (s *fakeSession) Generate(ctx context.Context, prompt string) (string, error) {
	s.lastPrompt = prompt
	if s.generateErr != nil {
		return "", s.generateErr
	}
	return s.response, nil
}

func (s *fakeSession) Close() error {
	s.closed++
	return s.closeErr
}

type fakeEngine struct {
	sessions   []*fakeSession
	newErr     error
	created    int
	lastParams SamplingParams
}

func (e *fakeEngine) NewSession(params SamplingParams) (Session, error) {
	e.lastParams = params
	if e.newErr != nil {
		return nil, e.newErr
	}
	s := &fakeSession{response: "1. Gather dry tinder and build a small teepee."}
	e.sessions = append(e.sessions, s)
	e.created++
	return s, nil
}

func TestSessionManager_Unavailable(t *testing.T) {
	m := NewSessionManager(nil, DefaultSamplingParams())
	assert.False(t, m.Available())

	_, err := m.Fresh()
	assert.ErrorIs(t, err, domain.ErrModelNotLoaded)
}

func TestSessionManager_FreshReplacesOldSession(t *testing.T) {
	engine := &fakeEngine{}
	m := NewSessionManager(engine, DefaultSamplingParams())

	first, err := m.Fresh()
	require.NoError(t, err)

	_, err = m.Fresh()
	require.NoError(t, err)

	assert.Equal(t, 2, engine.created)
	assert.Equal(t, 1, first.(*fakeSession).closed)
}

func TestSessionManager_CloseFailureDoesNotBlockReplacement(t *testing.T) {
	engine := &fakeEngine{}
	m := NewSessionManager(engine, DefaultSamplingParams())

	first, err := m.Fresh()
	require.NoError(t, err)
	first.(*fakeSession).closeErr = errors.New("engine hiccup")

	second, err := m.Fresh()
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestSessionManager_CreationFailure(t *testing.T) {
	engine := &fakeEngine{newErr: errors.New("out of memory")}
	m := NewSessionManager(engine, DefaultSamplingParams())

	_, err := m.Fresh()
	require.Error(t, err)
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeSession, domainErr.Code)
}

func TestSessionManager_PassesSamplingParams(t *testing.T) {
	engine := &fakeEngine{}
	params := SamplingParams{Temperature: 0.2, TopP: 0.8, TopK: 20}
	m := NewSessionManager(engine, params)

	_, err := m.Fresh()
	require.NoError(t, err)
	assert.Equal(t, params, engine.lastParams)
}

func TestSessionManager_Close(t *testing.T) {
	engine := &fakeEngine{}
	m := NewSessionManager(engine, DefaultSamplingParams())

	s, err := m.Fresh()
	require.NoError(t, err)

	m.Close()
	assert.Equal(t, 1, s.(*fakeSession).closed)

	// Idempotent.
	m.Close()
	assert.Equal(t, 1, s.(*fakeSession).closed)
}

func TestDefaultSamplingParams(t *testing.T) {
	params := DefaultSamplingParams()
	assert.InDelta(t, 0.2, params.Temperature, 1e-6)
	assert.InDelta(t, 0.8, params.TopP, 1e-6)
	assert.Equal(t, 20, params.TopK)
}
