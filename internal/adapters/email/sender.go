// Package email delivers transactional messages to coaches.
package email

import (
	"context"
	"time"
)

// Message is one outgoing email.
type Message struct {
	To      []string
	Subject string
	HTML    string
	Text    string            // plain-text alternative; optional
	ReplyTo string            // optional; the sender default applies when empty
	Tags    map[string]string // provider tags for delivery analytics
}

// Receipt is the provider's acknowledgement of a send.
type Receipt struct {
	MessageID string
	SentAt    time.Time
}

// Sender delivers messages through an external provider.
type Sender interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}
