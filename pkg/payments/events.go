package payments

import (
	"context"

	"github.com/google/uuid"
)

// EventKind is the provider-neutral meaning of a gateway notification.
type EventKind string

const (
	EventPaymentConfirmed EventKind = "payment.confirmed"
	EventPaymentFailed    EventKind = "payment.failed"
	EventIgnored          EventKind = "ignored"
)

// Event is a gateway notification reduced to what settlement needs.
type Event struct {
	ID            string
	Kind          EventKind
	Reference     string
	OrderID       uuid.UUID
	AmountCents   int64
	FailureReason string
}

// EventParser authenticates and decodes a raw webhook delivery.
type EventParser interface {
	ParseEvent(ctx context.Context, payload []byte, signature string) (*Event, error)
}
