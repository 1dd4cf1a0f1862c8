// Package primary defines the primary ports (driving adapters) for the application.
// These are the interfaces through which the outside world drives the application.
package primary

import "context"

// ConnectionHandle identifies a live connection. It is unique for the
// lifetime of the connection and may be reused after disconnect.
type ConnectionHandle int64

// HostEvents is the narrow interface the host delivers engine events
// through. Implementations must be safe for concurrent calls.
type HostEvents interface {
	// OnPeerConnected starts tracking a connected user.
	OnPeerConnected(ctx context.Context, handle ConnectionHandle, userID, displayName string) error

	// OnPayloadCaptured buffers the latest save payload of a connection.
	OnPayloadCaptured(ctx context.Context, handle ConnectionHandle, blob []byte) error

	// OnPeerDisconnected performs the final flush and forgets the session.
	OnPeerDisconnected(ctx context.Context, handle ConnectionHandle) error

	// OnPeriodicTick flushes every tracked session.
	OnPeriodicTick(ctx context.Context) error

	// OnExplicitSaveRequested flushes every tracked session.
	OnExplicitSaveRequested(ctx context.Context) error
}

// Flush triggers.
const (
	TriggerPeriodic   = "periodic"
	TriggerSave       = "save"
	TriggerDisconnect = "disconnect"
	TriggerAdmin      = "admin"
	TriggerShutdown   = "shutdown"
)

// Flush outcomes.
const (
	OutcomePersisted = "persisted"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)
