// Package session keeps one conversation per browser session.
//
// A Session bundles the conversation store and the submission controller
// that writes to it. Sessions live only in memory: they are dropped after a
// period of inactivity, when the session limit forces out the least recently
// used one, or when the user resets the chat.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hurricanerix/signchat/internal/conversation"
	"github.com/hurricanerix/signchat/internal/logging"
	"github.com/hurricanerix/signchat/internal/submission"
)

const (
	// DefaultInactivityTimeout is how long a session can be inactive before cleanup.
	DefaultInactivityTimeout = 24 * time.Hour

	// DefaultCleanupInterval is how often to run cleanup.
	DefaultCleanupInterval = 1 * time.Hour

	// DefaultMaxSessions is the maximum number of sessions before LRU eviction.
	DefaultMaxSessions = 1000
)

// Session is one user's chat state.
type Session struct {
	ID         string
	Store      *conversation.Store
	Controller *submission.Controller
	CreatedAt  time.Time

	closed atomic.Bool
}

// Close tears the session down. The conversation is discarded and Closed
// reports true from then on, even for a submission still in flight.
func (s *Session) Close() {
	s.closed.Store(true)
	s.Store.Reset()
}

// Closed reports whether the session has been torn down. A new session may
// since have been created under the same ID.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// Factory builds the session for a new ID.
type Factory func(id string) *Session

// Options configures a Manager. Zero values select defaults.
type Options struct {
	InactivityTimeout time.Duration
	CleanupInterval   time.Duration
	MaxSessions       int
	Logger            *logging.Logger

	// OnRemove is called after a session has been removed and closed,
	// without the manager lock held.
	OnRemove func(*Session)
}

type entry struct {
	session      *Session
	lastActivity time.Time
}

// Manager provides thread-safe management of sessions keyed by ID.
//
// Manager uses a read-write mutex so lookups of existing sessions do not
// serialize behind creation. A background goroutine removes sessions that
// have been inactive for longer than the configured timeout.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	factory     Factory
	timeout     time.Duration
	interval    time.Duration
	maxSessions int
	logger      *logging.Logger
	onRemove    func(*Session)
	now         func() time.Time

	cancelCleanup context.CancelFunc
	cleanupDone   chan struct{}
}

// NewManager creates a manager that builds sessions with factory and starts
// the background cleanup goroutine. Call Shutdown to stop it.
func NewManager(factory Factory, opts Options) *Manager {
	m := &Manager{
		sessions:    make(map[string]*entry),
		factory:     factory,
		timeout:     opts.InactivityTimeout,
		interval:    opts.CleanupInterval,
		maxSessions: opts.MaxSessions,
		logger:      opts.Logger,
		onRemove:    opts.OnRemove,
		now:         time.Now,
		cleanupDone: make(chan struct{}),
	}
	if m.timeout <= 0 {
		m.timeout = DefaultInactivityTimeout
	}
	if m.interval <= 0 {
		m.interval = DefaultCleanupInterval
	}
	if m.maxSessions <= 0 {
		m.maxSessions = DefaultMaxSessions
	}
	if m.logger == nil {
		m.logger = logging.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelCleanup = cancel
	go m.cleanupLoop(ctx)

	return m
}

// GetOrCreate returns the session for id, creating it if needed, and marks
// it as active.
func (m *Manager) GetOrCreate(id string) *Session {
	now := m.now()

	m.mu.RLock()
	if e, ok := m.sessions[id]; ok {
		m.mu.RUnlock()
		m.mu.Lock()
		e.lastActivity = now
		m.mu.Unlock()
		return e.session
	}
	m.mu.RUnlock()

	m.mu.Lock()
	// Another goroutine may have created it while we waited.
	if e, ok := m.sessions[id]; ok {
		e.lastActivity = now
		m.mu.Unlock()
		return e.session
	}

	var evicted *Session
	if len(m.sessions) >= m.maxSessions {
		evicted = m.evictLRU(now)
	}

	s := m.factory(id)
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	m.sessions[id] = &entry{session: s, lastActivity: now}
	m.mu.Unlock()

	if evicted != nil {
		m.closeSession(evicted)
	}
	m.logger.Debug("Created session %s", id)
	return s
}

// Get returns the session for id, or nil if it does not exist.
func (m *Manager) Get(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.sessions[id]; ok {
		return e.session
	}
	return nil
}

// Delete removes and closes the session with the given ID. Deleting an
// unknown ID is a no-op.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if ok {
		m.closeSession(e.session)
	}
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown stops the cleanup goroutine and waits for it to finish.
func (m *Manager) Shutdown() {
	if m.cancelCleanup != nil {
		m.cancelCleanup()
		<-m.cleanupDone
	}
}

func (m *Manager) cleanupLoop(ctx context.Context) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.cleanupInactive()
		}
	}
}

// cleanupInactive removes sessions idle for longer than the timeout.
func (m *Manager) cleanupInactive() int {
	now := m.now()

	m.mu.Lock()
	var stale []*Session
	for id, e := range m.sessions {
		if now.Sub(e.lastActivity) > m.timeout {
			delete(m.sessions, id)
			stale = append(stale, e.session)
		}
	}
	remaining := len(m.sessions)
	m.mu.Unlock()

	for _, s := range stale {
		m.closeSession(s)
	}
	if len(stale) > 0 {
		m.logger.Info("Cleaned up %d inactive sessions (total: %d)", len(stale), remaining)
	}
	return len(stale)
}

// evictLRU removes the least recently used session and returns it.
// Must be called with m.mu held for writing.
func (m *Manager) evictLRU(now time.Time) *Session {
	var oldestID string
	var oldest *entry
	for id, e := range m.sessions {
		if oldest == nil || e.lastActivity.Before(oldest.lastActivity) {
			oldestID, oldest = id, e
		}
	}
	if oldest == nil {
		return nil
	}

	delete(m.sessions, oldestID)
	m.logger.Info("Evicted LRU session %s (was inactive for %v)", oldestID, now.Sub(oldest.lastActivity))
	return oldest.session
}

func (m *Manager) closeSession(s *Session) {
	s.Close()
	if m.onRemove != nil {
		m.onRemove(s)
	}
}
