// Package conversation holds the message thread shown in the chat widget.
//
// A conversation is an append-only, creation-ordered sequence of messages.
// The user's own message is appended optimistically before the generation
// service answers; the assistant's message follows only on success. Nothing
// is ever edited or retracted. The whole thread is dropped when the owning
// session is torn down.
package conversation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Author identifies who wrote a message.
type Author string

const (
	// AuthorUser marks a message typed by the user.
	AuthorUser Author = "user"
	// AuthorAssistant marks a generated reply.
	AuthorAssistant Author = "assistant"
)

// AssistantTemplate is the fixed text of every assistant reply.
// The single verb receives the user's original input.
const AssistantTemplate = "Sign language for: \"%s\""

// Message is one entry in the conversation. Messages are values and are
// never modified after they are appended.
type Message struct {
	// ID is a UUIDv7, so IDs sort in creation order.
	ID string `json:"id"`

	// Text is the literal text shown for the message.
	Text string `json:"text"`

	// ImageURL references the generated image. Only set on successful
	// assistant messages, and may be empty even then.
	ImageURL string `json:"imageUrl,omitempty"`

	Author    Author    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

// IsUser reports whether the message was written by the user.
func (m Message) IsUser() bool {
	return m.Author == AuthorUser
}

// HasImage reports whether the message carries an image reference.
func (m Message) HasImage() bool {
	return m.ImageURL != ""
}

// NewUserMessage builds a user message holding the raw input text.
func NewUserMessage(text string) Message {
	return Message{
		ID:        newID(),
		Text:      text,
		Author:    AuthorUser,
		CreatedAt: time.Now(),
	}
}

// NewAssistantMessage builds the assistant reply for input. imageURL is
// copied as-is; an empty reference is allowed.
func NewAssistantMessage(input, imageURL string) Message {
	return Message{
		ID:        newID(),
		Text:      fmt.Sprintf(AssistantTemplate, input),
		ImageURL:  imageURL,
		Author:    AuthorAssistant,
		CreatedAt: time.Now(),
	}
}

// newID returns a time-ordered identifier. uuid.NewV7 keeps IDs generated
// within the same millisecond monotonic, so later messages always sort after
// earlier ones.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the random source does
		return uuid.NewString()
	}
	return id.String()
}
