// Package submission drives one user submission from the composition field
// to a reconciled conversation: entry guard, length validation, optimistic
// append, a single generation call, and reconciliation of its outcome.
//
// A Controller owns the composition state (draft text and in-flight flag)
// of a single session. Only one submission may be in flight at a time; any
// request made while one is outstanding is ignored. Every outcome is reported
// as a Result value and the controller is back in StateIdle before the
// Result is returned.
package submission

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/hurricanerix/signchat/internal/conversation"
	"github.com/hurricanerix/signchat/internal/generation"
	"github.com/hurricanerix/signchat/internal/logging"
)

// Composition defaults.
const (
	DefaultMaxChars      = 100
	DefaultWarnThreshold = 20
)

// Recorder receives submission metrics. *metrics.Collector satisfies it.
type Recorder interface {
	Outcome(kind string)
	GenerationStarted()
	GenerationFinished(elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) Outcome(string)                   {}
func (nopRecorder) GenerationStarted()               {}
func (nopRecorder) GenerationFinished(time.Duration) {}

// UpdateKind identifies what an Update reports.
type UpdateKind int

const (
	// UpdateAppended reports a message appended to the store.
	UpdateAppended UpdateKind = iota
	// UpdateState reports a change of the in-flight flag.
	UpdateState
	// UpdateSettled reports the Result of a submission that got past the
	// entry guard.
	UpdateSettled
)

// Update is delivered to the Observer as the conversation changes.
type Update struct {
	Kind       UpdateKind
	Message    conversation.Message // UpdateAppended
	Submitting bool                 // UpdateState
	Result     Result               // UpdateSettled
}

// Observer is called synchronously after the controller has released its
// lock, so it may read back from the controller.
type Observer func(Update)

// Options configures a Controller. Zero values select defaults.
type Options struct {
	// MaxChars limits the draft length in characters, counted as runes so
	// an emoji counts once.
	MaxChars      int
	WarnThreshold int
	Logger        *logging.Logger
	Recorder      Recorder
	Observer      Observer
}

// Controller runs the submission lifecycle for one conversation.
type Controller struct {
	mu    sync.Mutex
	state State
	draft string

	store     *conversation.Store
	generator generation.Generator

	maxChars      int
	warnThreshold int
	logger        *logging.Logger
	recorder      Recorder
	observer      Observer
}

// Submission is an accepted request whose generation call has not yet been
// made. It is returned by Begin and consumed by Complete.
type Submission struct {
	text    string
	message conversation.Message
	used    atomic.Bool
}

// Text returns the original, untrimmed input.
func (s *Submission) Text() string { return s.text }

// UserMessage returns the message appended when the submission was accepted.
func (s *Submission) UserMessage() conversation.Message { return s.message }

// New creates a controller that appends to store and generates with gen.
func New(store *conversation.Store, gen generation.Generator, opts Options) *Controller {
	c := &Controller{
		state:         StateIdle,
		store:         store,
		generator:     gen,
		maxChars:      opts.MaxChars,
		warnThreshold: opts.WarnThreshold,
		logger:        opts.Logger,
		recorder:      opts.Recorder,
		observer:      opts.Observer,
	}
	if c.maxChars <= 0 {
		c.maxChars = DefaultMaxChars
	}
	if c.warnThreshold <= 0 {
		c.warnThreshold = DefaultWarnThreshold
	}
	if c.logger == nil {
		c.logger = logging.Nop()
	}
	if c.recorder == nil {
		c.recorder = nopRecorder{}
	}
	return c
}

// Store returns the conversation the controller appends to.
func (c *Controller) Store() *conversation.Store {
	return c.store
}

// MaxChars returns the configured draft length limit.
func (c *Controller) MaxChars() int {
	return c.maxChars
}

// SetDraft replaces the draft text. The composition field is disabled while
// a submission is in flight, so the call is ignored and false is returned.
func (c *Controller) SetDraft(text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return false
	}
	c.draft = text
	return true
}

// Draft returns the current draft text.
func (c *Controller) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Submitting reports whether a submission is in flight.
func (c *Controller) Submitting() bool {
	return c.State() != StateIdle
}

// CharsRemaining returns how many characters the draft may still grow by.
// It is negative once the draft is over the limit.
func (c *Controller) CharsRemaining() int {
	return c.maxChars - utf8.RuneCountInString(c.Draft())
}

// NearLimit reports whether the remaining budget is below the warning
// threshold.
func (c *Controller) NearLimit() bool {
	return c.CharsRemaining() < c.warnThreshold
}

// OverLimit reports whether submitting the current draft would be rejected.
func (c *Controller) OverLimit() bool {
	return c.CharsRemaining() < 0
}

// View is a consistent snapshot of everything a front end renders.
type View struct {
	Messages       []conversation.Message `json:"messages"`
	Draft          string                 `json:"draft"`
	Submitting     bool                   `json:"submitting"`
	CharsRemaining int                    `json:"charsRemaining"`
	NearLimit      bool                   `json:"nearLimit"`
	MaxChars       int                    `json:"maxChars"`
}

// View returns a snapshot of the conversation and composition state.
func (c *Controller) View() View {
	c.mu.Lock()
	draft, state := c.draft, c.state
	c.mu.Unlock()

	remaining := c.maxChars - utf8.RuneCountInString(draft)
	return View{
		Messages:       c.store.List(),
		Draft:          draft,
		Submitting:     state != StateIdle,
		CharsRemaining: remaining,
		NearLimit:      remaining < c.warnThreshold,
		MaxChars:       c.maxChars,
	}
}

// Submit runs a whole submission of the current draft and blocks until it
// has settled.
func (c *Controller) Submit(ctx context.Context) Result {
	sub, res := c.Begin()
	if sub == nil {
		return res
	}
	return c.Complete(ctx, sub)
}

// SubmitText sets the draft to text and submits it.
func (c *Controller) SubmitText(ctx context.Context, text string) Result {
	if !c.SetDraft(text) {
		c.recorder.Outcome(KindIgnored.String())
		return Result{Kind: KindIgnored}
	}
	return c.Submit(ctx)
}

// Begin runs the synchronous half of a submission: entry guard, length
// validation and the optimistic append of the user's message.
//
// A nil Submission means the attempt ended here and the returned Result is
// final. Otherwise the controller is in StateSubmitting and the caller must
// pass the Submission to Complete exactly once.
func (c *Controller) Begin() (*Submission, Result) {
	c.mu.Lock()
	draft := c.draft
	if c.state != StateIdle || strings.TrimSpace(draft) == "" {
		c.mu.Unlock()
		c.recorder.Outcome(KindIgnored.String())
		return nil, Result{Kind: KindIgnored}
	}
	c.state = c.step(c.state, InputSubmit)

	if n := utf8.RuneCountInString(draft); n > c.maxChars {
		c.state = c.step(c.state, InputReject)
		c.mu.Unlock()

		c.logger.Debug("Rejected draft of %d characters (limit %d)", n, c.maxChars)
		res := Result{
			Kind:   KindValidationError,
			Notice: fmt.Sprintf(NoticeTooLong, c.maxChars),
		}
		c.recorder.Outcome(res.Kind.String())
		c.emit(Update{Kind: UpdateSettled, Result: res})
		return nil, res
	}

	msg := conversation.NewUserMessage(draft)
	c.store.Append(msg)
	c.draft = ""
	c.state = c.step(c.state, InputAccept)
	c.mu.Unlock()

	c.logger.Debug("Accepted submission %s", msg.ID)
	c.emit(Update{Kind: UpdateAppended, Message: msg})
	c.emit(Update{Kind: UpdateState, Submitting: true})

	return &Submission{text: draft, message: msg}, Result{}
}

// Complete makes the generation call for sub and reconciles its outcome.
// The controller is idle again when Complete returns, whatever happened,
// including a panic in the generator. Calling Complete twice with the same
// Submission, or with nil, is ignored.
func (c *Controller) Complete(ctx context.Context, sub *Submission) (res Result) {
	if sub == nil || !sub.used.CompareAndSwap(false, true) {
		return Result{Kind: KindIgnored}
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Panic during generation for submission %s: %v", sub.message.ID, r)
			res = Result{
				Kind:   KindTransportError,
				Notice: NoticeUnexpected,
				Err:    fmt.Errorf("%w: %v", ErrUnexpected, r),
			}
		}
		c.finish(res)
	}()

	resp, err := c.generate(ctx, sub.text)
	switch {
	case err != nil:
		c.logger.Error("Generation failed for submission %s: %v", sub.message.ID, err)
		return Result{Kind: KindTransportError, Notice: NoticeTransport, Err: err}
	case resp.Failed():
		c.logger.Warn("Generation service reported an error for submission %s: %s", sub.message.ID, resp.Error)
		return Result{Kind: KindApplicationError, Notice: resp.Error}
	}

	reply := conversation.NewAssistantMessage(sub.text, resp.ImageURL)
	c.store.Append(reply)
	if !reply.HasImage() {
		c.logger.Info("Generation for submission %s returned no image", sub.message.ID)
	}
	return Result{Kind: KindSuccess, Notice: NoticeSuccess, Message: &reply}
}

func (c *Controller) generate(ctx context.Context, text string) (generation.Response, error) {
	c.recorder.GenerationStarted()
	start := time.Now()
	defer func() {
		c.recorder.GenerationFinished(time.Since(start))
	}()
	return c.generator.Generate(ctx, text)
}

// finish moves the controller back to idle and reports res.
func (c *Controller) finish(res Result) {
	in := InputFail
	if res.Kind == KindSuccess {
		in = InputResolve
	}

	c.mu.Lock()
	c.state = c.step(c.state, in)
	c.state = c.step(c.state, InputSettle)
	c.mu.Unlock()

	c.recorder.Outcome(res.Kind.String())
	if res.Message != nil {
		c.emit(Update{Kind: UpdateAppended, Message: *res.Message})
	}
	c.emit(Update{Kind: UpdateState, Submitting: false})
	c.emit(Update{Kind: UpdateSettled, Result: res})
}

// step applies a transition. The controller only issues defined inputs, so
// a failure here is a bug; it is logged and the controller falls back to
// idle rather than staying stuck.
func (c *Controller) step(from State, in Input) State {
	next, err := Transition(from, in)
	if err != nil {
		c.logger.Error("%v", err)
		return StateIdle
	}
	return next
}

// emit delivers u to the observer. A panicking observer is logged and
// otherwise ignored.
func (c *Controller) emit(u Update) {
	if c.observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Observer panicked: %v", r)
		}
	}()
	c.observer(u)
}
