// Package mailer delivers rendered invoices by email.
package mailer

import (
	"context"
	"errors"
)

// ErrDisabled is returned by senders that are not configured to send.
var ErrDisabled = errors.New("mail delivery is disabled")

// Attachment is a file carried with a message.
type Attachment struct {
	Name        string
	ContentType string
	Content     []byte
}

// Message is a single outgoing email.
type Message struct {
	To          []string
	CC          []string
	BCC         []string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Sender delivers a Message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Disabled is a Sender that always reports ErrDisabled.
type Disabled struct{}

func (Disabled) Send(context.Context, Message) error { return ErrDisabled }
