// Package mail defines the mailbox contract the ingestion pipeline consumes.
// The concrete transport (IMAP, Graph, a fixture replay) lives behind Client.
package mail

import (
	"context"
	"time"
)

// Address represents a sender or recipient with an address and optional name.
type Address struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// Attachment represents a file attached to an email.
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// IncomingEmail is a raw message pulled from a mailbox. It is transient and
// only lives for the duration of one processing run.
type IncomingEmail struct {
	MessageID   string       `json:"message_id"`
	Subject     string       `json:"subject"`
	Sender      Address      `json:"from"`
	Recipient   Address      `json:"to"`
	ReceivedAt  time.Time    `json:"received_at"`
	BodyText    *string      `json:"body_text"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Client is a live mailbox session.
type Client interface {
	Connect(ctx context.Context) error
	FetchNew(ctx context.Context) ([]IncomingEmail, error)
	Disconnect() error
}

// Dialer opens new mailbox sessions. The connection pool owns the lifecycle
// of everything it dials.
type Dialer interface {
	Dial(ctx context.Context) (Client, error)
}
