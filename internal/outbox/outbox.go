// Package outbox decouples core order transitions from notification delivery.
// Successful transitions enqueue events; a background dispatcher drains the
// queue and hands events to the notifier. A notifier outage never affects the
// transition that produced the event.
package outbox

import (
	"context"
	"time"
)

// Event names emitted by the order core.
const (
	EventOrderCreated    = "order/created"
	EventStatusChanged   = "order/status.changed"
	EventTrackingUpdated = "order/tracking.updated"
	EventReturnProcessed = "order/return.processed"
	EventOrderCancelled  = "order/cancelled"
)

// Event is a pending notification. Payload is template data for the notifier.
type Event struct {
	ID           string
	Name         string
	Recipient    string
	Template     string
	Payload      map[string]any
	CreatedAt    time.Time
	DispatchedAt *time.Time
}

// Queue defines persistence operations for outbox events.
//
// Enqueue inserts a pending row after the mutation that produced the event
// has been persisted. Callers treat enqueue failures as lost notifications
// and log them; delivery of persisted rows is at-least-once, so notifiers
// must tolerate duplicates.
type Queue interface {
	Enqueue(ctx context.Context, e Event) error

	// ListPending returns up to limit undispatched events, oldest first.
	ListPending(ctx context.Context, limit int) ([]Event, error)

	// MarkDispatched stamps the event as delivered.
	MarkDispatched(ctx context.Context, id string) error
}
