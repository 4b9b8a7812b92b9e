package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"payflow/internal/domain/payment"
	"payflow/internal/events"
)

type capturedPublish struct {
	channel string
	payload []byte
}

// channelBus delivers every publish on a channel so tests can wait for
// the async relay without sleeping.
type channelBus struct {
	published chan capturedPublish
	err       error
}

func newChannelBus() *channelBus {
	return &channelBus{published: make(chan capturedPublish, 8)}
}

func (b *channelBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.published <- capturedPublish{channel: channel, payload: payload}
	return b.err
}

func waitForPublish(t *testing.T, bus *channelBus) capturedPublish {
	t.Helper()
	select {
	case got := <-bus.published:
		return got
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for publish")
		return capturedPublish{}
	}
}

func TestPublishPaymentEventFansOut(t *testing.T) {
	bus := newChannelBus()
	publisher := NewEventPublisher(bus, testLogger())

	p := payment.New("pub-1", 12345, payment.CurrencyUSD, "merchant-1", "customer-1", "card", "", nil)
	p.Status = payment.StatusCompleted

	publisher.PublishPaymentEvent(p, events.EventTypePaymentCompleted)

	first := waitForPublish(t, bus)
	second := waitForPublish(t, bus)

	require.Equal(t, events.ChannelPrefixPayment+p.ID.String(), first.channel)
	require.Equal(t, events.ChannelSystemPayments, second.channel)

	var envelope events.Envelope
	require.NoError(t, json.Unmarshal(first.payload, &envelope))
	require.Equal(t, events.EnvelopeSchemaVersion, envelope.SchemaVersion)
	require.Equal(t, events.EnvelopeSource, envelope.Source)
	require.Equal(t, events.EventTypePaymentCompleted, envelope.EventType)
	require.Equal(t, events.AggregateTypePayment, envelope.AggregateType)
	require.Equal(t, p.ID.String(), envelope.AggregateID)

	var record events.BusRecord
	require.NoError(t, json.Unmarshal(envelope.Payload, &record))
	require.Equal(t, "123.45", record.Amount)
	require.Equal(t, "USD", record.Currency)
	require.Equal(t, string(payment.StatusCompleted), record.Status)
	require.Equal(t, "merchant-1", record.MerchantID)
}

func TestPublishPaymentEventSwallowsBusErrors(t *testing.T) {
	bus := newChannelBus()
	bus.err = errors.New("bus down")
	publisher := NewEventPublisher(bus, testLogger())

	p := payment.New("pub-2", 100, payment.CurrencyEUR, "merchant-1", "customer-1", "card", "", nil)

	// Must not panic or block the caller even when every publish fails.
	publisher.PublishPaymentEvent(p, events.EventTypePaymentCreated)

	waitForPublish(t, bus)
	waitForPublish(t, bus)
}
