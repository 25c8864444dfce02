// Package llm wraps the IBM watsonx.ai chat-completion endpoint behind a
// small Client interface: prompt messages in, generated text out. The
// package owns the provider's bespoke wire format and its IAM token
// authentication so callers never see either.
package llm

import (
	"context"
	"fmt"
)

// Message roles understood by the prompt flattener. The provider protocol
// distinguishes only system and user content; anything else is dropped.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is one prompt message handed to the generator.
type Message struct {
	// Role is RoleSystem or RoleUser.
	Role string
	// Content is the message text.
	Content string
}

// Client generates model text from an ordered prompt. Implementations must
// be safe to call from multiple goroutines.
type Client interface {
	// Generate returns the model's completion for the given prompt
	// messages. Failures of any kind (transport, authentication,
	// non-success status, malformed response) surface as a
	// *GenerationError; the client never retries.
	Generate(ctx context.Context, messages []Message) (string, error)
}

// GenerationError reports a failed remote completion call with enough detail
// for diagnostics. The core never retries it; retrying is the caller's
// decision.
type GenerationError struct {
	// Reason is a short description of what failed.
	Reason string
	// Status is the HTTP status code returned by the provider, or 0 for
	// transport-level failures.
	Status int
	// Body is the (truncated) response body, when one was received.
	Body string
	// Timeout marks deadline or network-timeout failures.
	Timeout bool
	// Err is the underlying error, if any.
	Err error
}

func (e *GenerationError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("llm: %s (status %d): %s", e.Reason, e.Status, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("llm: %s: %v", e.Reason, e.Err)
	default:
		return "llm: " + e.Reason
	}
}

// Unwrap returns the underlying error, if any.
func (e *GenerationError) Unwrap() error {
	return e.Err
}
