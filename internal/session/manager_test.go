package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hurricanerix/signchat/internal/conversation"
	"github.com/hurricanerix/signchat/internal/generation"
	"github.com/hurricanerix/signchat/internal/submission"
)

func testFactory(id string) *Session {
	store := conversation.NewStore()
	return &Session{
		ID:         id,
		Store:      store,
		Controller: submission.New(store, generation.NewMock(0), submission.Options{}),
	}
}

func newTestManager(t *testing.T, opts Options) *Manager {
	t.Helper()
	m := NewManager(testFactory, opts)
	t.Cleanup(m.Shutdown)
	return m
}

func TestNewManager(t *testing.T) {
	m := newTestManager(t, Options{})

	if m.Count() != 0 {
		t.Errorf("new manager should have 0 sessions, got %d", m.Count())
	}
	if m.timeout != DefaultInactivityTimeout || m.maxSessions != DefaultMaxSessions {
		t.Errorf("defaults not applied: timeout %v, max %d", m.timeout, m.maxSessions)
	}
}

func TestGetOrCreateNewSession(t *testing.T) {
	m := newTestManager(t, Options{})

	s := m.GetOrCreate("session-1")
	if s == nil {
		t.Fatal("GetOrCreate returned nil")
	}
	if s.ID != "session-1" {
		t.Errorf("ID = %q, want session-1", s.ID)
	}
	if s.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
	if m.Count() != 1 {
		t.Errorf("expected 1 session, got %d", m.Count())
	}
}

func TestGetOrCreateExistingSession(t *testing.T) {
	m := newTestManager(t, Options{})

	first := m.GetOrCreate("session-1")
	first.Store.Append(conversation.NewUserMessage("hello"))

	second := m.GetOrCreate("session-1")
	if first != second {
		t.Error("GetOrCreate should return the same session for the same ID")
	}
	if second.Store.Len() != 1 {
		t.Errorf("expected 1 message, got %d", second.Store.Len())
	}
}

func TestGet(t *testing.T) {
	m := newTestManager(t, Options{})

	if m.Get("unknown") != nil {
		t.Error("Get should return nil for unknown session")
	}

	created := m.GetOrCreate("session-1")
	if m.Get("session-1") != created {
		t.Error("Get should return the session created by GetOrCreate")
	}
	if m.Count() != 1 {
		t.Errorf("Get created a session: count %d", m.Count())
	}
}

func TestDeleteClosesSession(t *testing.T) {
	var removed []string
	m := newTestManager(t, Options{OnRemove: func(s *Session) { removed = append(removed, s.ID) }})

	s := m.GetOrCreate("session-1")
	s.Store.Append(conversation.NewUserMessage("hello"))
	m.GetOrCreate("session-2")

	m.Delete("session-1")

	if m.Count() != 1 {
		t.Errorf("expected 1 session, got %d", m.Count())
	}
	if m.Get("session-1") != nil {
		t.Error("deleted session still retrievable")
	}
	if s.Store.Len() != 0 {
		t.Error("deleted session's conversation was not discarded")
	}
	if !s.Closed() {
		t.Error("deleted session does not report Closed")
	}
	if len(removed) != 1 || removed[0] != "session-1" {
		t.Errorf("OnRemove calls = %v", removed)
	}

	// unknown ID is a no-op
	m.Delete("session-1")
	if len(removed) != 1 {
		t.Errorf("OnRemove called for unknown ID: %v", removed)
	}

	fresh := m.GetOrCreate("session-1")
	if fresh == s || fresh.Store.Len() != 0 || fresh.Closed() {
		t.Error("recreated session should be new, empty and open")
	}
}

func TestEvictLRU(t *testing.T) {
	var removed []string
	m := newTestManager(t, Options{MaxSessions: 2, OnRemove: func(s *Session) { removed = append(removed, s.ID) }})

	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	m.GetOrCreate("a")
	clock = clock.Add(time.Minute)
	b := m.GetOrCreate("b")
	clock = clock.Add(time.Minute)
	m.GetOrCreate("a") // touch a, so b is now least recently used
	clock = clock.Add(time.Minute)
	m.GetOrCreate("c")

	if m.Count() != 2 {
		t.Fatalf("expected 2 sessions, got %d", m.Count())
	}
	if m.Get("b") != nil {
		t.Error("least recently used session b was not evicted")
	}
	if !b.Closed() {
		t.Error("evicted session does not report Closed")
	}
	if m.Get("a") == nil || m.Get("c") == nil {
		t.Error("wrong session evicted")
	}
	if len(removed) != 1 || removed[0] != "b" {
		t.Errorf("OnRemove calls = %v", removed)
	}
}

func TestCleanupInactive(t *testing.T) {
	m := newTestManager(t, Options{InactivityTimeout: time.Hour})

	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	m.GetOrCreate("old")
	clock = clock.Add(50 * time.Minute)
	m.GetOrCreate("recent")
	clock = clock.Add(20 * time.Minute)

	if n := m.cleanupInactive(); n != 1 {
		t.Errorf("cleanupInactive() removed %d, want 1", n)
	}
	if m.Get("old") != nil {
		t.Error("inactive session survived cleanup")
	}
	if m.Get("recent") == nil {
		t.Error("active session removed")
	}
}

func TestConcurrentGetOrCreate(t *testing.T) {
	m := newTestManager(t, Options{})
	var wg sync.WaitGroup

	results := make([]*Session, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = m.GetOrCreate("shared")
			m.GetOrCreate(fmt.Sprintf("own-%d", i))
		}(i)
	}
	wg.Wait()

	for i, s := range results {
		if s != results[0] {
			t.Fatalf("goroutine %d got a different session", i)
		}
	}
	if m.Count() != 51 {
		t.Errorf("expected 51 sessions, got %d", m.Count())
	}
}

func TestShutdownStopsCleanup(t *testing.T) {
	m := NewManager(testFactory, Options{CleanupInterval: time.Millisecond})

	done := make(chan struct{})
	go func() {
		m.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not return")
	}
}
