package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Event types that can be sent via SSE.
const (
	// EventConnected is sent once when the stream opens.
	// Data schema: {"session": string}
	EventConnected = "connected"

	// EventMessage is sent for each message appended to the conversation.
	// Data schema: messageView
	// Example: {"id": "0190...", "author": "user", "text": "Hello", "createdAt": "..."}
	EventMessage = "message"

	// EventState is sent when a submission starts or settles. The client
	// shows the loading indicator while submitting is true.
	// Data schema: {"submitting": bool}
	EventState = "state"

	// EventNotice carries a user-visible notification.
	// Data schema: {"kind": string, "message": string}
	// Example: {"kind": "transport_error", "message": "Failed to generate sign language. Please try again."}
	EventNotice = "notice"

	// MaxConnections is the maximum number of concurrent SSE connections.
	MaxConnections = 1000
)

// ErrNotConnected is returned by SendEvent when the session has no stream.
var ErrNotConnected = errors.New("session not connected")

// Event represents a Server-Sent Event with a named type and JSON data.
type Event struct {
	Type string
	Data interface{}
}

// connection is a single SSE stream. Writes are serialized because events
// for a session may be produced by several request goroutines.
type connection struct {
	sessionID string

	mu      sync.Mutex
	writer  http.ResponseWriter
	flusher http.Flusher

	done chan struct{}
	once sync.Once
}

// close marks the stream finished. Holding mu guarantees no write is in
// progress once close returns, so the handler may exit safely.
func (c *connection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.once.Do(func() { close(c.done) })
}

// Broker manages SSE connections and routes events to sessions. Each session
// has at most one stream; a newer one replaces the old.
type Broker struct {
	mu          sync.RWMutex
	connections map[string]*connection
}

// NewBroker creates a new SSE broker.
func NewBroker() *Broker {
	return &Broker{
		connections: make(map[string]*connection),
	}
}

// ServeHTTP opens an event stream for the request's session and holds it
// until the client goes away or the broker closes it.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if b.ConnectionCount() >= MaxConnections {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	sessionID := GetSessionID(r.Context())
	if sessionID == "" {
		http.Error(w, "session required", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// The server WriteTimeout would otherwise cut the stream. Recorders
	// used in tests don't support this.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	conn := &connection{
		sessionID: sessionID,
		writer:    w,
		flusher:   flusher,
		done:      make(chan struct{}),
	}

	b.addConnection(conn)
	defer func() {
		b.removeConnection(conn)
		conn.close()
	}()

	_ = conn.send(Event{
		Type: EventConnected,
		Data: map[string]string{"session": sessionID},
	})

	select {
	case <-r.Context().Done():
	case <-conn.done:
	}
}

// SendEvent sends an event to a specific session.
// Returns ErrNotConnected if the session has no open stream.
func (b *Broker) SendEvent(sessionID string, eventType string, data interface{}) error {
	b.mu.RLock()
	conn, ok := b.connections[sessionID]
	b.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotConnected, sessionID)
	}
	return conn.send(Event{Type: eventType, Data: data})
}

// CloseSession closes the stream for a specific session, if any.
func (b *Broker) CloseSession(sessionID string) {
	b.mu.Lock()
	conn, ok := b.connections[sessionID]
	if ok {
		delete(b.connections, sessionID)
	}
	b.mu.Unlock()

	if ok {
		conn.close()
	}
}

// ConnectionCount returns the number of active connections.
func (b *Broker) ConnectionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.connections)
}

// addConnection registers conn, closing any stream it replaces.
func (b *Broker) addConnection(conn *connection) {
	b.mu.Lock()
	existing, ok := b.connections[conn.sessionID]
	b.connections[conn.sessionID] = conn
	b.mu.Unlock()

	if ok {
		existing.close()
	}
}

// removeConnection unregisters conn if it is still the session's current
// stream. A replaced stream must not remove its replacement.
func (b *Broker) removeConnection(conn *connection) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if current, ok := b.connections[conn.sessionID]; ok && current == conn {
		delete(b.connections, conn.sessionID)
	}
}

// send writes one event in SSE wire format:
//
//	event: <type>
//	data: <json>
//	<blank line>
func (c *connection) send(event Event) error {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return fmt.Errorf("%w: %s", ErrNotConnected, c.sessionID)
	default:
	}

	if _, err := fmt.Fprintf(c.writer, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	c.flusher.Flush()
	return nil
}

// Shutdown closes all connections.
func (b *Broker) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	conns := make([]*connection, 0, len(b.connections))
	for id, conn := range b.connections {
		conns = append(conns, conn)
		delete(b.connections, id)
	}
	b.mu.Unlock()

	for _, conn := range conns {
		conn.close()
	}
	return nil
}
