// Package audit writes a durable trail of authorization decisions,
// separate from the operational logs. Each entry records who asked, via
// which provider, and what the gateway decided.
package audit

import "context"

// Logger is the interface for audit logging
type Logger interface {
	// Log records one audit event.
	Log(ctx context.Context, event Event) error

	// Close flushes and closes the underlying sink.
	Close() error
}

// NopLogger discards all events. Used when no audit log is configured.
type NopLogger struct{}

func (NopLogger) Log(context.Context, Event) error { return nil }
func (NopLogger) Close() error                     { return nil }
