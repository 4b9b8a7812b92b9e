package events

import (
	"encoding/json"
	"time"
)

// Envelope schema constants. SchemaVersion is bumped whenever the payload
// contract changes; consumers pin the versions they understand.
const (
	EnvelopeSchemaVersion = 1
	EnvelopeSource        = "payflow"
)

// Envelope frames one committed payment transition for bus consumers.
type Envelope struct {
	SchemaVersion int             `json:"schema_version"`
	Source        string          `json:"source"`
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope wraps a marshaled BusRecord for publishing.
func NewEnvelope(eventType, paymentID string, payload json.RawMessage) Envelope {
	return Envelope{
		SchemaVersion: EnvelopeSchemaVersion,
		Source:        EnvelopeSource,
		EventType:     eventType,
		AggregateType: AggregateTypePayment,
		AggregateID:   paymentID,
		OccurredAt:    time.Now().UTC(),
		Payload:       payload,
	}
}
