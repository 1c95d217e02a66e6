// Package mailer defines the interface for outbound mail transports.
package mailer

import (
	"context"
	"fmt"
)

// Sender is the interface that outbound transports must implement.
// The destination list is the authoritative envelope; it may differ from
// any address embedded in the message headers.
type Sender interface {
	// Send submits the raw message as-is with the given source identity
	// and envelope destinations. The transport performs no further
	// mutation of the payload.
	Send(ctx context.Context, source string, destinations []string, raw []byte) error

	// Name returns the human-readable name of this transport.
	Name() string
}

// SendError reports that the transport rejected the payload (unverified
// source, malformed MIME, size limit). It is fatal for the invocation and
// never retried.
type SendError struct {
	Source string
	Cause  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send from %q rejected: %v", e.Source, e.Cause)
}

func (e *SendError) Unwrap() error {
	return e.Cause
}
