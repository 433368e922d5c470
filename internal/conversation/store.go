package conversation

import "sync"

// Store holds the ordered message sequence for one session.
//
// Append is the only mutation during a session's lifetime; Reset exists for
// session teardown. Store is safe for concurrent use: the submission
// controller is the single writer, while front ends may read from other
// goroutines.
type Store struct {
	mu       sync.RWMutex
	messages []Message
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		messages: make([]Message, 0),
	}
}

// Append adds msg to the end of the sequence.
func (s *Store) Append(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

// List returns a copy of the ordered message sequence.
// The returned slice is safe to modify without affecting the store.
func (s *Store) List() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Reset drops every message. Only used when the owning session ends.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = make([]Message, 0)
}
