package payment

import (
	"time"

	"github.com/google/uuid"
)

// Event types recorded in the audit trail.
const (
	EventTypeCreated   = "PAYMENT_CREATED"
	EventTypeStatus    = "STATUS_CHANGED"
	EventTypeRefunded  = "PAYMENT_REFUNDED"
	EventTypeCancelled = "PAYMENT_CANCELLED"
)

// Event represents the payment_events table: one immutable row per state
// transition. Rows are appended in the same transaction as the aggregate
// write and never updated or deleted.
type Event struct {
	EventID        uuid.UUID
	PaymentID      uuid.UUID
	EventType      string
	PreviousStatus *Status
	NewStatus      Status
	EventData      map[string]string
	EventTimestamp time.Time
}

// NewEvent builds an audit record for a transition. previous is nil only
// for creation.
func NewEvent(paymentID uuid.UUID, eventType string, previous *Status, newStatus Status, data map[string]string) *Event {
	if data == nil {
		data = map[string]string{}
	}
	return &Event{
		EventID:        uuid.New(),
		PaymentID:      paymentID,
		EventType:      eventType,
		PreviousStatus: previous,
		NewStatus:      newStatus,
		EventData:      data,
		EventTimestamp: time.Now().UTC(),
	}
}
