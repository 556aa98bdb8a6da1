package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"virtual-secretary/internal/models"
	"virtual-secretary/internal/observability/metrics"
	"virtual-secretary/internal/service/audio"
	"virtual-secretary/internal/service/history"
	"virtual-secretary/internal/service/llm"
)

// ErrSessionNotFound is returned for unknown or expired session IDs.
var ErrSessionNotFound = errors.New("conversation: session not found")

// Session owns one history and the orchestrator using it. Turns and
// history access are serialized by mu.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu           sync.Mutex
	history      *history.History
	generator    *llm.Generator
	orchestrator *Orchestrator
	lastActive   time.Time
}

// ManagerConfig holds settings shared by every session.
type ManagerConfig struct {
	Persona       string
	ContextWindow int
	Language      string
	IdleTimeout   time.Duration // 0 disables expiry
	Logger        zerolog.Logger
	Metrics       *metrics.Metrics
	Events        EventSink
}

// Manager creates sessions on top of backends loaded once and shared.
type Manager struct {
	transcriber Transcriber
	backend     llm.Backend
	speaker     Speaker
	cfg         ManagerConfig
	log         zerolog.Logger
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager.
func NewManager(transcriber Transcriber, backend llm.Backend, speaker Speaker, cfg ManagerConfig) *Manager {
	return &Manager{
		transcriber: transcriber,
		backend:     backend,
		speaker:     speaker,
		cfg:         cfg,
		log:         cfg.Logger.With().Str("component", "sessions").Logger(),
		now:         time.Now,
		sessions:    make(map[string]*Session),
	}
}

// Create opens a new session with an empty history.
func (m *Manager) Create() *Session {
	id := uuid.NewString()
	h := history.New()
	gen := llm.NewGenerator(m.backend, h, llm.Config{
		Persona:       m.cfg.Persona,
		ContextWindow: m.cfg.ContextWindow,
		Logger:        m.cfg.Logger.With().Str("sessionId", id).Logger(),
		Metrics:       m.cfg.Metrics,
	})
	now := m.now()
	s := &Session{
		ID:        id,
		CreatedAt: now,
		history:   h,
		generator: gen,
		orchestrator: NewOrchestrator(id, m.transcriber, gen, m.speaker, Config{
			Language: m.cfg.Language,
			Logger:   m.cfg.Logger,
			Metrics:  m.cfg.Metrics,
			Events:   m.cfg.Events,
		}),
		lastActive: now,
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	if m.cfg.Metrics != nil {
		m.cfg.Metrics.RecordSessionStart()
	}
	m.log.Info().Str("sessionId", id).Msg("Session created")
	return s
}

// Get returns the session with id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// HandleTurn runs one turn in session id. Turns of the same session run
// one at a time; different sessions run in parallel.
func (m *Manager) HandleTurn(ctx context.Context, id string, src audio.Source, opts TurnOptions) (*TurnResult, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	defer m.touch(s)
	return s.orchestrator.HandleTurn(ctx, src, opts)
}

// History returns a copy of the session history.
func (m *Manager) History(id string) ([]models.Turn, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Turns(), nil
}

// ResetHistory clears the session history.
func (m *Manager) ResetHistory(id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generator.Reset()
	m.touch(s)
	return nil
}

// Close removes the session.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	if m.cfg.Metrics != nil {
		m.cfg.Metrics.RecordSessionEnd(false)
	}
	m.log.Info().Str("sessionId", id).Msg("Session closed")
	return nil
}

// ExpireIdle closes sessions idle for longer than the configured timeout and
// returns how many were closed. Sessions in the middle of a turn are kept.
func (m *Manager) ExpireIdle() int {
	if m.cfg.IdleTimeout <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.cfg.IdleTimeout)

	m.mu.Lock()
	var expired []string
	for id, s := range m.sessions {
		if !s.mu.TryLock() {
			continue
		}
		if s.lastActive.Before(cutoff) {
			expired = append(expired, id)
			delete(m.sessions, id)
		}
		s.mu.Unlock()
	}
	m.mu.Unlock()

	for _, id := range expired {
		if m.cfg.Metrics != nil {
			m.cfg.Metrics.RecordSessionEnd(true)
		}
		m.log.Info().Str("sessionId", id).Msg("Session expired")
	}
	return len(expired)
}

// Run expires idle sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if m.cfg.IdleTimeout <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ExpireIdle()
		}
	}
}

// touch must be called with s.mu held.
func (m *Manager) touch(s *Session) {
	s.lastActive = m.now()
}
