package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mockflow-core-poc-v1/server/internal/interview/model"
)

// DefaultEndedRetention applies when Options.EndedRetention is not set.
const DefaultEndedRetention = 10 * time.Minute

// Manager owns the set of live sessions. Sessions are independent; the manager only
// registers them, enforces the concurrency cap and tears them down. Finished sessions stay
// readable through Lookup for the retention window, then are dropped.
type Manager struct {
	opts          Options
	maxConcurrent int

	mu       sync.RWMutex
	sessions map[string]*Session
	ended    map[string]endedSession

	root   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type endedSession struct {
	session *Session
	at      time.Time
}

func NewManager(opts Options, maxConcurrent int) *Manager {
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if opts.EndedRetention <= 0 {
		opts.EndedRetention = DefaultEndedRetention
	}
	root, cancel := context.WithCancel(context.Background())
	return &Manager{
		opts:          opts,
		maxConcurrent: maxConcurrent,
		sessions:      make(map[string]*Session),
		ended:         make(map[string]endedSession),
		root:          root,
		cancel:        cancel,
	}
}

// Start creates and launches a session for profile. Sessions are not bound to ctx;
// they live until they end or the manager shuts down.
func (m *Manager) Start(ctx context.Context, profile model.Profile) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.evictLocked(m.opts.Clock.Now())
	if m.maxConcurrent > 0 && len(m.sessions) >= m.maxConcurrent {
		m.mu.Unlock()
		return nil, ErrTooManySessions
	}
	s := New(uuid.NewString(), profile, m.opts)
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	s.Start(m.root)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		<-s.Done()
		s.Wait()
		now := m.opts.Clock.Now()
		m.mu.Lock()
		delete(m.sessions, s.ID())
		m.ended[s.ID()] = endedSession{session: s, at: now}
		m.evictLocked(now)
		m.mu.Unlock()
	}()
	return s, nil
}

// Get returns a live session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Lookup returns a live session, or a finished one still inside the retention window.
func (m *Manager) Lookup(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	m.evictLocked(m.opts.Clock.Now())
	if e, ok := m.ended[id]; ok {
		return e.session, nil
	}
	return nil, ErrSessionNotFound
}

// EndedLen is the number of finished sessions still retained.
func (m *Manager) EndedLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked(m.opts.Clock.Now())
	return len(m.ended)
}

func (m *Manager) evictLocked(now time.Time) {
	for id, e := range m.ended {
		if now.Sub(e.at) >= m.opts.EndedRetention {
			delete(m.ended, id)
		}
	}
}

// End stops a live session.
func (m *Manager) End(id, reason string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	return s.End(reason)
}

// Len is the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown ends every live session and waits for their side effects, or until ctx is done.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()
	finished := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
