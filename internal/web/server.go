// Package web serves the browser chat UI: a single page, a JSON API for
// drafting and submitting messages, and a Server-Sent Events stream that
// pushes conversation updates to the page.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hurricanerix/signchat/internal/conversation"
	"github.com/hurricanerix/signchat/internal/generation"
	"github.com/hurricanerix/signchat/internal/image"
	"github.com/hurricanerix/signchat/internal/logging"
	"github.com/hurricanerix/signchat/internal/metrics"
	"github.com/hurricanerix/signchat/internal/session"
	"github.com/hurricanerix/signchat/internal/submission"
)

//go:embed templates/* static/*
var embeddedFS embed.FS

const (
	// DefaultAddr is the default address the server listens on.
	DefaultAddr = "localhost:8080"

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 15 * time.Second

	// DefaultWriteTimeout bounds a whole response. POST /chat waits on the
	// generation service, so this must exceed its timeout.
	DefaultWriteTimeout = 90 * time.Second

	// IdleTimeout is the maximum amount of time to wait for the next request.
	IdleTimeout = 60 * time.Second

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 30 * time.Second

	// MaxRequestBodySize is the maximum size of POST request bodies (64KB).
	MaxRequestBodySize = 64 * 1024
)

// Options configures a Server. Zero values select defaults.
type Options struct {
	Addr          string
	Generator     generation.Generator
	Images        *image.Storage
	Metrics       *metrics.Collector
	Logger        *logging.Logger
	MaxChars      int
	WarnThreshold int
	WriteTimeout  time.Duration

	SessionTimeout time.Duration
	MaxSessions    int
}

// Server provides HTTP serving for the web UI.
type Server struct {
	addr      string
	server    *http.Server
	handler   http.Handler
	broker    *Broker
	templates *template.Template

	generator generation.Generator
	sessions  *session.Manager
	images    *image.Storage
	metrics   *metrics.Collector
	logger    *logging.Logger

	maxChars      int
	warnThreshold int
}

// NewServer creates a Server. A nil Generator selects an in-process mock.
// Returns an error if templates cannot be parsed.
func NewServer(opts Options) (*Server, error) {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.Generator == nil {
		opts.Generator = generation.NewMock(0)
	}
	if opts.Images == nil {
		opts.Images = image.NewStorage()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}

	tmpl, err := template.New("").Funcs(template.FuncMap{
		"ago": humanize.Time,
	}).ParseFS(embeddedFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s := &Server{
		addr:          opts.Addr,
		broker:        NewBroker(),
		templates:     tmpl,
		generator:     opts.Generator,
		images:        opts.Images,
		metrics:       opts.Metrics,
		logger:        opts.Logger,
		maxChars:      opts.MaxChars,
		warnThreshold: opts.WarnThreshold,
	}
	s.sessions = session.NewManager(s.newSession, session.Options{
		InactivityTimeout: opts.SessionTimeout,
		MaxSessions:       opts.MaxSessions,
		Logger:            opts.Logger,
		OnRemove: func(sess *session.Session) {
			s.broker.CloseSession(sess.ID)
			s.images.DeleteOwner(sess.ID)
		},
	})

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	// Every request gets a session ID
	s.handler = SessionMiddleware(mux)

	s.server = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.handler,
		ReadTimeout:  ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  IdleTimeout,
	}

	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Broker returns the SSE broker.
func (s *Server) Broker() *Broker {
	return s.broker
}

// Sessions returns the session manager.
func (s *Server) Sessions() *session.Manager {
	return s.sessions
}

// newSession builds the conversation for a new session ID. Controller
// updates are pushed to that session's event stream until it is closed.
func (s *Server) newSession(id string) *session.Session {
	store := conversation.NewStore()
	sess := &session.Session{ID: id, Store: store}
	sess.Controller = submission.New(store, s.generator, submission.Options{
		MaxChars:      s.maxChars,
		WarnThreshold: s.warnThreshold,
		Logger:        s.logger.With("session", id),
		Recorder:      s.metrics,
		Observer: func(u submission.Update) {
			s.publish(sess, u)
		},
	})
	return sess
}

// publish forwards a controller update to the session's stream. A session
// without an open stream simply misses the event. Updates from a closed
// session are dropped: its ID may already belong to a fresh conversation.
func (s *Server) publish(sess *session.Session, u submission.Update) {
	if sess.Closed() {
		return
	}
	sessionID := sess.ID

	var err error
	switch u.Kind {
	case submission.UpdateAppended:
		err = s.broker.SendEvent(sessionID, EventMessage, s.present(sess, u.Message))
	case submission.UpdateState:
		err = s.broker.SendEvent(sessionID, EventState, map[string]bool{"submitting": u.Submitting})
	case submission.UpdateSettled:
		if u.Result.Notice == "" {
			return
		}
		err = s.broker.SendEvent(sessionID, EventNotice, noticeView{Kind: u.Result.Kind, Message: u.Result.Notice})
	}
	if err != nil && !errors.Is(err, ErrNotConnected) {
		s.logger.Warn("Failed to send event to session %s: %v", sessionID, err)
	}
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.Handle("GET /static/", http.FileServer(http.FS(embeddedFS)))
	mux.HandleFunc("GET /events", s.handleEvents)

	mux.HandleFunc("GET /conversation", s.handleConversation)
	mux.HandleFunc("POST /draft", s.handleDraft)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /reset", s.handleReset)

	mux.HandleFunc("GET /images/{id}", s.handleImage)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /healthz", s.handleHealth)
}

// ListenAndServe starts the HTTP server and blocks until the context is
// cancelled. Returns an error if the server fails to start or does not shut
// down cleanly.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.images.StartCleanup(ctx, s.logger)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting web server on http://%s", s.addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down web server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		// Open event streams would keep Shutdown waiting
		if err := s.broker.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("broker shutdown failed: %w", err)
		}
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		s.sessions.Shutdown()

		s.logger.Info("Web server stopped")
		return nil

	case err := <-errCh:
		s.sessions.Shutdown()
		return fmt.Errorf("server error: %w", err)
	}
}

// messageView is a message as the browser sees it. Inline data-URL images
// are replaced by a link to /images/{id}.
type messageView struct {
	ID        string              `json:"id"`
	Author    conversation.Author `json:"author"`
	Text      string              `json:"text"`
	ImageURL  string              `json:"imageUrl,omitempty"`
	CreatedAt time.Time           `json:"createdAt"`
	Ago       string              `json:"ago"`
}

type noticeView struct {
	Kind    submission.Kind `json:"kind"`
	Message string          `json:"message"`
}

// conversationView is the body of GET /conversation.
type conversationView struct {
	Messages       []messageView `json:"messages"`
	Submitting     bool          `json:"submitting"`
	CharsRemaining int           `json:"charsRemaining"`
	NearLimit      bool          `json:"nearLimit"`
	MaxChars       int           `json:"maxChars"`
}

// cacheImage moves an inline image into image storage so the page can load
// it by URL. Images belong to the session and go when it does. Failures
// leave the data URL in place.
func (s *Server) cacheImage(sess *session.Session, msg conversation.Message) {
	if sess.Closed() || !image.IsDataURL(msg.ImageURL) || s.images.Has(msg.ID) {
		return
	}
	mediaType, data, err := image.ParseDataURL(msg.ImageURL)
	if err != nil {
		s.logger.Warn("Message %s carries an undecodable data URL: %v", msg.ID, err)
		return
	}
	if err := s.images.Put(sess.ID, msg.ID, data, mediaType); err != nil {
		s.logger.Warn("Failed to store image for message %s: %v", msg.ID, err)
		return
	}
	// Close is marked before the owner's images are dropped, so a Put
	// racing the teardown is undone here.
	if sess.Closed() {
		s.images.Delete(msg.ID)
	}
}

func (s *Server) present(sess *session.Session, msg conversation.Message) messageView {
	v := messageView{
		ID:        msg.ID,
		Author:    msg.Author,
		Text:      msg.Text,
		ImageURL:  msg.ImageURL,
		CreatedAt: msg.CreatedAt,
		Ago:       humanize.Time(msg.CreatedAt),
	}
	if image.IsDataURL(msg.ImageURL) {
		s.cacheImage(sess, msg)
		if s.images.Has(msg.ID) {
			v.ImageURL = "/images/" + msg.ID
		}
	}
	return v
}

func (s *Server) conversationView(sess *session.Session) conversationView {
	view := sess.Controller.View()
	msgs := make([]messageView, len(view.Messages))
	for i, m := range view.Messages {
		msgs[i] = s.present(sess, m)
	}
	return conversationView{
		Messages:       msgs,
		Submitting:     view.Submitting,
		CharsRemaining: view.CharsRemaining,
		NearLimit:      view.NearLimit,
		MaxChars:       view.MaxChars,
	}
}

// handleIndex serves the chat page with the session's current conversation.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.GetOrCreate(GetSessionID(r.Context()))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.html", s.conversationView(sess)); err != nil {
		s.logger.Error("Failed to execute template: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// handleEvents serves the SSE endpoint. The session is created first so
// events produced before the first POST are not lost.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.sessions.GetOrCreate(GetSessionID(r.Context()))
	s.broker.ServeHTTP(w, r)
}

// handleConversation returns the conversation and composition state.
func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.GetOrCreate(GetSessionID(r.Context()))
	s.writeJSON(w, http.StatusOK, s.conversationView(sess))
}

// handleDraft updates the draft so the page can show the character budget.
func (s *Server) handleDraft(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := r.ParseForm(); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": "failed to parse form"})
		return
	}

	sess := s.sessions.GetOrCreate(GetSessionID(r.Context()))
	ctrl := sess.Controller
	accepted := ctrl.SetDraft(r.FormValue("message"))

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"accepted":       accepted,
		"charsRemaining": ctrl.CharsRemaining(),
		"nearLimit":      ctrl.NearLimit(),
		"overLimit":      ctrl.OverLimit(),
	})
}

// handleChat submits a message and waits for it to settle. Updates are also
// pushed over SSE; the JSON body carries the same outcome for clients that
// are not listening.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	sessionID := GetSessionID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := r.ParseForm(); err != nil {
		s.logger.Debug("Failed to parse form for session %s: %v", sessionID, err)
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": "failed to parse form"})
		return
	}

	sess := s.sessions.GetOrCreate(sessionID)

	// A closed tab must not abandon a call that already has its user
	// message committed.
	ctx := context.WithoutCancel(r.Context())
	res := sess.Controller.SubmitText(ctx, r.FormValue("message"))

	body := map[string]interface{}{
		"status": "ok",
		"kind":   res.Kind,
	}
	if res.Notice != "" {
		body["notice"] = res.Notice
	}
	if res.Message != nil {
		body["message"] = s.present(sess, *res.Message)
	}

	status := http.StatusOK
	if res.Kind == submission.KindValidationError {
		status = http.StatusRequestEntityTooLarge
		body["status"] = "error"
	}
	s.writeJSON(w, status, body)
}

// handleReset tears down the session's conversation. The next request
// starts a fresh one under the same cookie.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sessionID := GetSessionID(r.Context())
	s.sessions.Delete(sessionID)
	s.logger.Debug("Reset session %s", sessionID)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleImage serves a stored image by message ID.
// GET /images/{id}
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(r.PathValue("id"), ".png")
	if id == "" {
		http.Error(w, "Missing image ID", http.StatusBadRequest)
		return
	}

	data, contentType, err := s.images.Get(id)
	if err != nil {
		switch {
		case errors.Is(err, image.ErrNotFound):
			http.Error(w, "Image not found", http.StatusNotFound)
		case errors.Is(err, image.ErrInvalidID):
			http.Error(w, "Invalid image ID", http.StatusBadRequest)
		default:
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Debug("Failed to write image data for %s: %v", id, err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"sessions": s.sessions.Count(),
		"streams":  s.broker.ConnectionCount(),
		"images":   s.images.Count(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("Failed to write JSON response: %v", err)
	}
}
