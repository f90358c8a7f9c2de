package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/jsvm/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/jsvm/internal/sandbox"
	"github.com/GriffinCanCode/jsvm/internal/shared/id"
)

var (
	ErrNotFound        = errors.New("session not found")
	ErrTooManySessions = errors.New("session limit reached")
	ErrClosed          = errors.New("session manager is closed")
)

// Config bounds the sessions a Manager keeps.
type Config struct {
	MaxSessions int           // zero means unlimited
	IdleTimeout time.Duration // zero disables expiry
	Sandbox     sandbox.Config
}

// Info describes a session without exposing its runtime.
type Info struct {
	ID          id.SessionID `json:"id"`
	CreatedAt   time.Time    `json:"created_at"`
	LastUsedAt  time.Time    `json:"last_used_at"`
	Evaluations int64        `json:"evaluations"`
}

// Stats summarizes manager activity.
type Stats struct {
	Active  int    `json:"active"`
	Created uint64 `json:"created"`
	Expired uint64 `json:"expired"`
}

// Session is a runtime whose globals persist between evaluations.
type Session struct {
	id          id.SessionID
	createdAt   time.Time
	lastUsed    atomic.Int64
	evaluations atomic.Int64
	runtime     *sandbox.Runtime
}

func (s *Session) touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}

func (s *Session) info() Info {
	return Info{
		ID:          s.id,
		CreatedAt:   s.createdAt,
		LastUsedAt:  time.Unix(0, s.lastUsed.Load()),
		Evaluations: s.evaluations.Load(),
	}
}

// Manager owns the live sessions.
type Manager struct {
	config  Config
	logger  *zap.Logger
	metrics *monitoring.Metrics

	mu       sync.RWMutex
	sessions map[id.SessionID]*Session
	closed   bool

	created atomic.Uint64
	expired atomic.Uint64
}

// NewManager creates a new session manager
func NewManager(config Config, logger *zap.Logger, metrics *monitoring.Metrics) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.Sandbox.Source = "session"
	if config.Sandbox.Logger == nil {
		config.Sandbox.Logger = logger
	}
	if config.Sandbox.Metrics == nil {
		config.Sandbox.Metrics = metrics
	}
	return &Manager{
		config:   config,
		logger:   logger.Named("session"),
		metrics:  metrics,
		sessions: make(map[id.SessionID]*Session),
	}
}

// Create starts a new session with a fresh runtime.
func (m *Manager) Create() (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Info{}, ErrClosed
	}
	if m.config.MaxSessions > 0 && len(m.sessions) >= m.config.MaxSessions {
		return Info{}, ErrTooManySessions
	}

	runtime, err := sandbox.New(m.config.Sandbox)
	if err != nil {
		return Info{}, fmt.Errorf("failed to create runtime: %w", err)
	}

	s := &Session{
		id:        id.NewSessionID(),
		createdAt: time.Now(),
		runtime:   runtime,
	}
	s.touch()
	m.sessions[s.id] = s

	m.created.Add(1)
	m.metrics.IncSessionsCreated()
	m.metrics.SetSessionsActive(len(m.sessions))
	m.logger.Info("Session created", zap.String("session_id", string(s.id)))
	return s.info(), nil
}

// Get returns the session info for sid.
func (m *Manager) Get(sid id.SessionID) (Info, error) {
	s, err := m.lookup(sid)
	if err != nil {
		return Info{}, err
	}
	return s.info(), nil
}

// Eval runs script in the session. Declarations persist for later calls.
func (m *Manager) Eval(ctx context.Context, sid id.SessionID, script string) (*sandbox.Result, error) {
	s, err := m.lookup(sid)
	if err != nil {
		return nil, err
	}
	defer s.touch()
	s.evaluations.Add(1)
	return s.runtime.Execute(ctx, script)
}

// Call invokes a global function defined in the session.
func (m *Manager) Call(ctx context.Context, sid id.SessionID, fn string, args ...any) (*sandbox.Result, error) {
	s, err := m.lookup(sid)
	if err != nil {
		return nil, err
	}
	defer s.touch()
	s.evaluations.Add(1)
	return s.runtime.Call(ctx, fn, args...)
}

// SetGlobal stores a Go value as a global of the session.
func (m *Manager) SetGlobal(sid id.SessionID, name string, value any) error {
	s, err := m.lookup(sid)
	if err != nil {
		return err
	}
	defer s.touch()
	return s.runtime.SetGlobal(name, value)
}

// Delete closes and removes a session
func (m *Manager) Delete(sid id.SessionID) error {
	m.mu.Lock()
	s, ok := m.sessions[sid]
	if ok {
		delete(m.sessions, sid)
		m.metrics.SetSessionsActive(len(m.sessions))
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, sid)
	}
	m.logger.Info("Session deleted", zap.String("session_id", string(sid)))
	return s.runtime.Close()
}

// List returns all sessions, oldest first
func (m *Manager) List() []Info {
	m.mu.RLock()
	infos := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		infos = append(infos, s.info())
	}
	m.mu.RUnlock()

	// ULIDs sort by creation time
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Stats returns session manager statistics
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	active := len(m.sessions)
	m.mu.RUnlock()

	return Stats{
		Active:  active,
		Created: m.created.Load(),
		Expired: m.expired.Load(),
	}
}

// Sweep closes sessions idle since before now minus the idle timeout and
// returns how many it removed.
func (m *Manager) Sweep(now time.Time) int {
	if m.config.IdleTimeout <= 0 {
		return 0
	}
	cutoff := now.Add(-m.config.IdleTimeout).UnixNano()

	m.mu.Lock()
	var stale []*Session
	for sid, s := range m.sessions {
		if s.lastUsed.Load() < cutoff {
			stale = append(stale, s)
			delete(m.sessions, sid)
		}
	}
	if len(stale) > 0 {
		m.metrics.SetSessionsActive(len(m.sessions))
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.runtime.Close()
		m.expired.Add(1)
		m.metrics.IncSessionsExpired()
		m.logger.Info("Session expired", zap.String("session_id", string(s.id)))
	}
	return len(stale)
}

// Run sweeps idle sessions until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	if m.config.IdleTimeout <= 0 {
		return
	}
	interval := m.config.IdleTimeout / 2
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.Sweep(now)
		}
	}
}

// Close closes every session. The manager rejects new sessions afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[id.SessionID]*Session)
	m.closed = true
	m.metrics.SetSessionsActive(0)
	m.mu.Unlock()

	for _, s := range sessions {
		s.runtime.Close()
	}
	return nil
}

func (m *Manager) lookup(sid id.SessionID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sid)
	}
	return s, nil
}
