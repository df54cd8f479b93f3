// Package notify delivers fire-and-forget events to connected recipients.
package notify

import "errors"

var (
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrSlowRecipient     = errors.New("recipient send queue is full")
	ErrClosed            = errors.New("notifier is closed")
)

// Emitter sends one event to one recipient. Implementations must be safe for
// concurrent use and must not block on the recipient.
type Emitter interface {
	Emit(recipientID, event string, payload any) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(recipientID, event string, payload any) error

func (f EmitterFunc) Emit(recipientID, event string, payload any) error {
	return f(recipientID, event, payload)
}

// Message is a queued event.
type Message struct {
	RecipientID string
	Event       string
	Payload     any
}

// Frame is the JSON document written to a recipient's connection.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}
