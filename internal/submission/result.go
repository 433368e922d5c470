package submission

import (
	"errors"

	"github.com/hurricanerix/signchat/internal/conversation"
)

// User-visible notices.
const (
	// NoticeTooLong is formatted with the character limit.
	NoticeTooLong = "Message too long! Maximum %d characters allowed."
	// NoticeSuccess follows a successful generation.
	NoticeSuccess = "Sign language generated!"
	// NoticeTransport is shown for any transport failure.
	NoticeTransport = "Failed to generate sign language. Please try again."
	// NoticeUnexpected is shown when the generator panics.
	NoticeUnexpected = "An unexpected error occurred. Please try again."
)

// ErrUnexpected wraps a panic recovered while generating.
var ErrUnexpected = errors.New("unexpected failure during generation")

// Kind classifies how a submission attempt ended.
type Kind int

const (
	// KindIgnored means the entry guard dropped the attempt silently.
	KindIgnored Kind = iota
	// KindSuccess means an assistant message was appended.
	KindSuccess
	// KindValidationError means the draft was rejected locally.
	KindValidationError
	// KindApplicationError means the service reported a failure.
	KindApplicationError
	// KindTransportError means the call itself failed.
	KindTransportError
)

// String returns the snake_case kind name used in JSON and metrics.
func (k Kind) String() string {
	switch k {
	case KindIgnored:
		return "ignored"
	case KindSuccess:
		return "success"
	case KindValidationError:
		return "validation_error"
	case KindApplicationError:
		return "application_error"
	case KindTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// IsError reports whether the kind should be shown as an error notice.
func (k Kind) IsError() bool {
	return k == KindValidationError || k == KindApplicationError || k == KindTransportError
}

// Result is what a submission attempt produced. Front ends translate it into
// notifications; the core never shows anything itself.
type Result struct {
	Kind Kind

	// Notice is the user-visible notification text. Empty for KindIgnored.
	Notice string

	// Message is the assistant message appended on KindSuccess.
	Message *conversation.Message

	// Err is the underlying cause of a transport failure. It is for logs
	// only and must not be shown to the user.
	Err error
}
