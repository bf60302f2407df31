package chathub

import "astrona/backend/internal/models"

// Client is one live connection owned by a user. The registry holds at most
// one Client per user; implementations must make Send safe to call from any
// goroutine and after Close.
type Client interface {
	// GetUserID returns the identifier resolved from the connection's credential.
	GetUserID() string

	// Send queues frame for the connection without blocking. It returns false
	// when the frame was dropped because the connection is closed or its
	// outbound queue is full. Dropped frames are never retried.
	Send(frame models.Envelope) bool

	// Run starts the client's read and write pumps.
	Run()
	// Close stops the connection. It is idempotent.
	Close()
}
