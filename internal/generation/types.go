// Package generation provides clients for the sign-language generation
// service: the remote function that turns a short text into an image
// reference.
//
// The contract is deliberately narrow. A request carries only the input
// text; a response may carry an image reference, an application-level error
// message, both, or neither. Transport problems (connection failures,
// non-2xx statuses, undecodable bodies) are returned as Go errors and are
// distinct from an application-level error carried in a decoded Response.
package generation

import "context"

// Default configuration constants
const (
	DefaultBaseURL  = "http://localhost:54321"
	DefaultFunction = "generate-sign-language"
	DefaultTimeout  = 60 // seconds
)

// FunctionsPath is the path prefix hosted functions are served under.
const FunctionsPath = "/functions/v1/"

// Request is the body sent to the generation service.
type Request struct {
	Text string `json:"text"` // Input text, unmodified
}

// Response is the decoded body of a successful (2xx) call.
type Response struct {
	// ImageURL references the generated image. May be absent.
	ImageURL string `json:"imageUrl,omitempty"`

	// Error is an application-level failure message. When non-empty the
	// call failed even though the transport succeeded.
	Error string `json:"error,omitempty"`
}

// Failed reports whether the service signalled an application-level error.
func (r Response) Failed() bool {
	return r.Error != ""
}

// Generator turns input text into an image reference.
//
// Implementations return a non-nil error only for transport-level failures.
// Application-level failures are reported through Response.Error.
type Generator interface {
	Generate(ctx context.Context, text string) (Response, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, text string) (Response, error)

// Generate calls f(ctx, text).
func (f GeneratorFunc) Generate(ctx context.Context, text string) (Response, error) {
	return f(ctx, text)
}
