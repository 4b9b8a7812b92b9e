package services

import (
	"context"
	"encoding/json"
	"time"

	"payflow/internal/domain/payment"
	"payflow/internal/events"
	"payflow/pkg/logger"
)

// BusPublisher is the outbound edge to the message bus.
type BusPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// EventPublisher relays committed state changes to the bus. It runs
// strictly after the mutator's transaction commits, never blocks the
// caller, and swallows every failure: the committed ledger write is the
// source of truth and a lost notification must not affect it.
type EventPublisher struct {
	bus BusPublisher
	log *logger.Logger
}

func NewEventPublisher(bus BusPublisher, log *logger.Logger) *EventPublisher {
	return &EventPublisher{bus: bus, log: log}
}

// PublishPaymentEvent fires one bus record for a committed transition.
func (p *EventPublisher) PublishPaymentEvent(pmt *payment.Payment, eventType string) {
	record := events.BusRecord{
		PaymentID:  pmt.ID.String(),
		MerchantID: pmt.MerchantID,
		CustomerID: pmt.CustomerID,
		Amount:     payment.FormatAmount(pmt.AmountCents),
		Currency:   string(pmt.Currency),
		Status:     string(pmt.Status),
		EventType:  eventType,
		Timestamp:  time.Now().UnixMilli(),
	}

	go p.relay(record)
}

func (p *EventPublisher) relay(record events.BusRecord) {
	// Detached from the request context: the caller's result must not wait
	// on the bus.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	payload, err := json.Marshal(record)
	if err != nil {
		p.log.Errorf("failed to marshal bus record for payment %s: %v", record.PaymentID, err)
		return
	}
	envelope, err := json.Marshal(events.NewEnvelope(record.EventType, record.PaymentID, payload))
	if err != nil {
		p.log.Errorf("failed to marshal envelope for payment %s: %v", record.PaymentID, err)
		return
	}

	for _, channel := range []string{
		events.ChannelPrefixPayment + record.PaymentID,
		events.ChannelSystemPayments,
	} {
		if err := p.bus.Publish(ctx, channel, envelope); err != nil {
			p.log.Errorf("publish to %s failed for payment %s: %v", channel, record.PaymentID, err)
		}
	}
}
