// Package tui is the terminal rendition of the chat widget. It drives the
// same submission.Controller as the web front end: the textarea is the
// draft, the spinner is the loading indicator and the viewport shows the
// thread.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/hurricanerix/signchat/internal/conversation"
	"github.com/hurricanerix/signchat/internal/image"
	"github.com/hurricanerix/signchat/internal/submission"
)

// Layout
const (
	headerHeight = 1
	inputHeight  = 3
	footerHeight = 3 // loading/notice line, counter, help
	minViewport  = 3
)

const emptyText = "Type a message below to see it translated into sign language!"

// resultMsg carries the settled Result of a submission back to Update.
type resultMsg struct {
	result submission.Result
}

// Model is the bubbletea model for one conversation.
type Model struct {
	ctx        context.Context
	controller *submission.Controller

	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	notice     string
	noticeKind submission.Kind

	ready  bool
	width  int
	height int
}

// New creates a model driving c. ctx is passed to every generation call.
func New(ctx context.Context, c *submission.Controller) Model {
	ta := textarea.New()
	ta.Placeholder = "Type a message..."
	// No limit here, the controller reports over-long drafts
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.Prompt = "> "
	ta.SetHeight(inputHeight)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = loadingStyle

	return Model{
		ctx:        ctx,
		controller: c,
		textarea:   ta,
		spinner:    s,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		vpHeight := m.height - headerHeight - inputHeight - footerHeight
		if vpHeight < minViewport {
			vpHeight = minViewport
		}
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.textarea.SetWidth(m.width)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			return m.submit()
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

		// Input is disabled while a request is in flight
		if m.controller.Submitting() {
			return m, nil
		}
		var cmd tea.Cmd
		m.textarea, cmd = m.textarea.Update(msg)
		m.controller.SetDraft(m.textarea.Value())
		return m, cmd

	case resultMsg:
		m.setNotice(msg.result)
		m.textarea.Focus()
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.controller.Submitting() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

// submit runs the synchronous half of a submission and schedules the
// generation call as a command.
func (m Model) submit() (tea.Model, tea.Cmd) {
	m.controller.SetDraft(m.textarea.Value())

	sub, res := m.controller.Begin()
	if sub == nil {
		// Validation errors keep the draft so it can be shortened
		m.setNotice(res)
		return m, nil
	}

	m.notice = ""
	m.textarea.Reset()
	m.textarea.Blur()
	m.refresh()

	ctx, c := m.ctx, m.controller
	complete := func() tea.Msg {
		return resultMsg{result: c.Complete(ctx, sub)}
	}
	return m, tea.Batch(complete, m.spinner.Tick)
}

func (m *Model) setNotice(res submission.Result) {
	if res.Kind == submission.KindIgnored {
		return
	}
	m.notice = res.Notice
	m.noticeKind = res.Kind
}

// refresh re-renders the thread into the viewport and scrolls to the end.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(RenderThread(m.controller.Store().List(), time.Now()))
	m.viewport.GotoBottom()
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("signchat"))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(m.textarea.View())
	b.WriteString("\n")
	b.WriteString(m.counter())
	b.WriteString("  ")
	b.WriteString(helpStyle.Render("enter send • esc quit"))
	return b.String()
}

func (m Model) statusLine() string {
	if m.controller.Submitting() {
		return m.spinner.View() + loadingStyle.Render(" Generating sign language...")
	}
	if m.notice == "" {
		return ""
	}
	if m.noticeKind.IsError() {
		return errorStyle.Render(m.notice)
	}
	return successStyle.Render(m.notice)
}

func (m Model) counter() string {
	text := fmt.Sprintf("%d characters remaining", m.controller.CharsRemaining())
	if m.controller.NearLimit() {
		return counterWarnStyle.Render(text)
	}
	return counterStyle.Render(text)
}

// RenderThread renders msgs as plain styled text, timestamps relative to now.
func RenderThread(msgs []conversation.Message, now time.Time) string {
	if len(msgs) == 0 {
		return emptyStyle.Render(emptyText)
	}

	var b strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		name := userStyle.Render("You")
		if !msg.IsUser() {
			name = assistantStyle.Render("Assistant")
		}
		b.WriteString(name)
		b.WriteString(" ")
		b.WriteString(dateStyle.Render(humanize.RelTime(msg.CreatedAt, now, "ago", "from now")))
		b.WriteString("\n")
		b.WriteString(msg.Text)
		if msg.HasImage() {
			b.WriteString("\n")
			b.WriteString(imageStyle.Render(describeImage(msg.ImageURL)))
		}
	}
	return b.String()
}

// describeImage summarises an image reference for a terminal that can't
// show it. Inline data URLs are reduced to their type and size.
func describeImage(ref string) string {
	if image.IsDataURL(ref) {
		mediaType, data, err := image.ParseDataURL(ref)
		if err != nil {
			return "[image: unreadable]"
		}
		return fmt.Sprintf("[image: %s, %s]", mediaType, humanize.Bytes(uint64(len(data))))
	}
	return "[image: " + ref + "]"
}
