package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"payflow/internal/domain/payment"
	"payflow/internal/events"
	"payflow/internal/redis"
	"payflow/internal/repository/inmemory"
	payflow_errors "payflow/pkg/errors"
)

// fakeGuard is an in-memory stand-in for the redis idempotency guard.
type fakeGuard struct {
	mu      sync.Mutex
	entries map[string]uuid.UUID
	err     error
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{entries: make(map[string]uuid.UUID)}
}

func (g *fakeGuard) Reserve(ctx context.Context, key string, candidateID uuid.UUID) (redis.ReserveResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return redis.ReserveResult{}, g.err
	}
	if existing, ok := g.entries[key]; ok {
		return redis.ReserveResult{Reserved: false, ExistingID: existing}, nil
	}
	g.entries[key] = candidateID
	return redis.ReserveResult{Reserved: true}, nil
}

func (g *fakeGuard) Lookup(ctx context.Context, key string) (uuid.UUID, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return uuid.Nil, false, g.err
	}
	id, ok := g.entries[key]
	return id, ok, nil
}

// scriptedGateway returns a fixed verdict without sleeping.
type scriptedGateway struct {
	approved bool
	err      error
	calls    int
}

func (g *scriptedGateway) Attempt(ctx context.Context, p *payment.Payment) (bool, error) {
	g.calls++
	return g.approved, g.err
}

func (g *scriptedGateway) CheckStatus(ctx context.Context, gatewayRef string) (string, error) {
	return "", payflow_errors.ErrNotImplemented
}

func (g *scriptedGateway) Refund(ctx context.Context, p *payment.Payment, reason string) (bool, error) {
	return true, nil
}

// recordingNotifier captures publishes synchronously.
type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) PublishPaymentEvent(p *payment.Payment, eventType string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, eventType)
}

func (n *recordingNotifier) published() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

type serviceFixture struct {
	service  *PaymentService
	payments *inmemory.PaymentStore
	events   *inmemory.EventStore
	guard    *fakeGuard
	gateway  *scriptedGateway
	notifier *recordingNotifier
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	payments := inmemory.NewPaymentStore()
	eventStore := inmemory.NewEventStore()
	guard := newFakeGuard()
	gateway := &scriptedGateway{approved: true}
	notifier := &recordingNotifier{}
	tx := inmemory.NewTxRunner(payments, eventStore)

	mutator := NewMutator(tx, payments, eventStore, testLogger())
	mutator.sleep = func(time.Duration) {}

	service := NewPaymentService(tx, payments, eventStore, guard, mutator, gateway, notifier, testLogger(), 600*time.Millisecond)
	return &serviceFixture{
		service:  service,
		payments: payments,
		events:   eventStore,
		guard:    guard,
		gateway:  gateway,
		notifier: notifier,
	}
}

func validCommand(key string) CreateCommand {
	return CreateCommand{
		IdempotencyKey: key,
		AmountCents:    9999,
		Currency:       payment.CurrencyUSD,
		MerchantID:     "merchant-1",
		CustomerID:     "customer-1",
		PaymentMethod:  "card",
		Description:    "order 42",
		Metadata:       map[string]string{"orderId": "42"},
	}
}

func TestCreatePayment(t *testing.T) {
	f := newServiceFixture(t)

	p, err := f.service.CreatePayment(context.Background(), validCommand("create-1"))
	require.NoError(t, err)
	require.Equal(t, payment.StatusPending, p.Status)
	require.Equal(t, int64(0), p.Version)
	require.Equal(t, int64(9999), p.AmountCents)

	trail, err := f.events.ListByPayment(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	require.Equal(t, payment.EventTypeCreated, trail[0].EventType)
	require.Nil(t, trail[0].PreviousStatus)
	require.Equal(t, payment.StatusPending, trail[0].NewStatus)

	reservedID, ok, err := f.guard.Lookup(context.Background(), "create-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, p.ID, reservedID)

	require.Equal(t, []string{events.EventTypePaymentCreated}, f.notifier.published())
}

func TestCreatePaymentReplayReturnsOriginal(t *testing.T) {
	f := newServiceFixture(t)

	first, err := f.service.CreatePayment(context.Background(), validCommand("replay-1"))
	require.NoError(t, err)

	second, err := f.service.CreatePayment(context.Background(), validCommand("replay-1"))
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	// Only the first request creates and publishes.
	trail, err := f.events.ListByPayment(context.Background(), first.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	require.Equal(t, []string{events.EventTypePaymentCreated}, f.notifier.published())
}

func TestCreatePaymentLostInsertRaceReturnsWinner(t *testing.T) {
	f := newServiceFixture(t)

	// A concurrent request committed the row but its guard entry is not
	// visible yet.
	winner := payment.New("race-1", 500, payment.CurrencyUSD, "merchant-1", "customer-1", "card", "", nil)
	require.NoError(t, f.payments.Create(context.Background(), nil, winner))

	got, err := f.service.CreatePayment(context.Background(), validCommand("race-1"))
	require.NoError(t, err)
	require.Equal(t, winner.ID, got.ID)
}

func TestCreatePaymentValidation(t *testing.T) {
	f := newServiceFixture(t)

	bad := validCommand("")
	_, err := f.service.CreatePayment(context.Background(), bad)
	require.ErrorIs(t, err, payflow_errors.ErrInvalidInput)

	bad = validCommand("v-1")
	bad.AmountCents = 0
	_, err = f.service.CreatePayment(context.Background(), bad)
	require.ErrorIs(t, err, payflow_errors.ErrInvalidInput)

	bad = validCommand("v-2")
	bad.Currency = "XXX"
	_, err = f.service.CreatePayment(context.Background(), bad)
	require.ErrorIs(t, err, payflow_errors.ErrInvalidInput)

	bad = validCommand("v-3")
	bad.MerchantID = ""
	_, err = f.service.CreatePayment(context.Background(), bad)
	require.ErrorIs(t, err, payflow_errors.ErrInvalidInput)
}

func TestCreatePaymentGuardOutageAndRecovery(t *testing.T) {
	f := newServiceFixture(t)

	p, err := f.service.CreatePayment(context.Background(), validCommand("guard-down"))
	require.NoError(t, err)

	// Break the guard and replay: the unique key on the store still wins.
	f.guard.err = errors.New("redis down")
	_, err = f.service.CreatePayment(context.Background(), validCommand("guard-down"))
	require.Error(t, err)

	f.guard.err = nil
	replay, err := f.service.CreatePayment(context.Background(), validCommand("guard-down"))
	require.NoError(t, err)
	require.Equal(t, p.ID, replay.ID)
}

func TestCreatePaymentEventAppendFailureAborts(t *testing.T) {
	f := newServiceFixture(t)

	appendErr := errors.New("event insert failed")
	f.events.FailNextAppend(appendErr)

	_, err := f.service.CreatePayment(context.Background(), validCommand("atomic-1"))
	require.ErrorIs(t, err, appendErr)
	require.Empty(t, f.notifier.published())

	// The insert rolls back with the event: the key stays unclaimed.
	_, err = f.payments.GetByIdempotencyKey(context.Background(), "atomic-1")
	require.ErrorIs(t, err, payflow_errors.ErrNotFound)

	retried, err := f.service.CreatePayment(context.Background(), validCommand("atomic-1"))
	require.NoError(t, err)
	require.Equal(t, payment.StatusPending, retried.Status)
}

func TestProcessPaymentApproved(t *testing.T) {
	f := newServiceFixture(t)
	f.gateway.approved = true

	p, err := f.service.CreatePayment(context.Background(), validCommand("proc-ok"))
	require.NoError(t, err)

	got, err := f.service.ProcessPayment(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, payment.StatusCompleted, got.Status)
	require.True(t, got.CompletedAt.Valid)
	require.Equal(t, int64(2), got.Version)

	trail, err := f.events.ListByPayment(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, trail, 3)
	require.Equal(t, payment.StatusProcessing, trail[1].NewStatus)
	require.Equal(t, payment.StatusCompleted, trail[2].NewStatus)

	require.Equal(t, []string{events.EventTypePaymentCreated, events.EventTypePaymentCompleted}, f.notifier.published())
}

func TestProcessPaymentDeclined(t *testing.T) {
	f := newServiceFixture(t)
	f.gateway.approved = false

	p, err := f.service.CreatePayment(context.Background(), validCommand("proc-declined"))
	require.NoError(t, err)

	got, err := f.service.ProcessPayment(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, payment.StatusFailed, got.Status)
	require.True(t, got.FailureReason.Valid)
	require.Equal(t, "payment declined by gateway", got.FailureReason.String)

	trail, err := f.events.ListByPayment(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, "payment declined by gateway", trail[2].EventData["failure_reason"])

	require.Equal(t, []string{events.EventTypePaymentCreated, events.EventTypePaymentFailed}, f.notifier.published())
}

func TestProcessPaymentGatewayTimeoutFails(t *testing.T) {
	f := newServiceFixture(t)
	f.gateway.err = context.DeadlineExceeded

	p, err := f.service.CreatePayment(context.Background(), validCommand("proc-timeout"))
	require.NoError(t, err)

	got, err := f.service.ProcessPayment(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, payment.StatusFailed, got.Status)
	require.Contains(t, got.FailureReason.String, "payment gateway unavailable")
}

func TestProcessPaymentResumesStuckProcessing(t *testing.T) {
	f := newServiceFixture(t)

	p, err := f.service.CreatePayment(context.Background(), validCommand("proc-stuck"))
	require.NoError(t, err)

	// A previous run died after the PROCESSING write, before the gateway
	// verdict landed.
	stuck, err := f.payments.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	_, err = stuck.Transition(payment.StatusProcessing)
	require.NoError(t, err)
	require.NoError(t, f.payments.UpdateVersioned(context.Background(), nil, stuck))

	got, err := f.service.ProcessPayment(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, payment.StatusCompleted, got.Status)
	require.Equal(t, 1, f.gateway.calls, "resume goes straight to the gateway")
	require.Equal(t, int64(2), got.Version)

	trail, err := f.events.ListByPayment(context.Background(), p.ID)
	require.NoError(t, err)
	last := trail[len(trail)-1]
	require.Equal(t, payment.StatusProcessing, *last.PreviousStatus)
	require.Equal(t, payment.StatusCompleted, last.NewStatus)
}

func TestProcessPaymentTerminalIsNoOp(t *testing.T) {
	f := newServiceFixture(t)

	p, err := f.service.CreatePayment(context.Background(), validCommand("proc-terminal"))
	require.NoError(t, err)
	_, err = f.service.ProcessPayment(context.Background(), p.ID)
	require.NoError(t, err)

	gatewayCallsBefore := f.gateway.calls
	again, err := f.service.ProcessPayment(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, payment.StatusCompleted, again.Status)
	require.Equal(t, gatewayCallsBefore, f.gateway.calls, "terminal payments must not reach the gateway")

	trail, err := f.events.ListByPayment(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, trail, 3)
}

func TestRefundCompletedPayment(t *testing.T) {
	f := newServiceFixture(t)

	p, err := f.service.CreatePayment(context.Background(), validCommand("refund-ok"))
	require.NoError(t, err)
	_, err = f.service.ProcessPayment(context.Background(), p.ID)
	require.NoError(t, err)

	got, err := f.service.RefundPayment(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, payment.StatusRefunded, got.Status)

	trail, err := f.events.ListByPayment(context.Background(), p.ID)
	require.NoError(t, err)
	last := trail[len(trail)-1]
	require.Equal(t, payment.EventTypeRefunded, last.EventType)
	require.Equal(t, payment.StatusCompleted, *last.PreviousStatus)

	require.Contains(t, f.notifier.published(), events.EventTypePaymentRefunded)
}

func TestRefundRejectsNonCompleted(t *testing.T) {
	f := newServiceFixture(t)

	p, err := f.service.CreatePayment(context.Background(), validCommand("refund-bad"))
	require.NoError(t, err)

	_, err = f.service.RefundPayment(context.Background(), p.ID)
	require.ErrorIs(t, err, payflow_errors.ErrInvalidTransition)

	stored, err := f.service.GetPayment(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, payment.StatusPending, stored.Status)
}

func TestCancelPendingPayment(t *testing.T) {
	f := newServiceFixture(t)

	p, err := f.service.CreatePayment(context.Background(), validCommand("cancel-ok"))
	require.NoError(t, err)

	got, err := f.service.CancelPayment(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, payment.StatusCancelled, got.Status)
	require.True(t, got.CompletedAt.Valid, "cancellation is terminal")

	require.Contains(t, f.notifier.published(), events.EventTypePaymentCancelled)
}

func TestCancelRejectsProcessedPayment(t *testing.T) {
	f := newServiceFixture(t)

	p, err := f.service.CreatePayment(context.Background(), validCommand("cancel-bad"))
	require.NoError(t, err)
	_, err = f.service.ProcessPayment(context.Background(), p.ID)
	require.NoError(t, err)

	_, err = f.service.CancelPayment(context.Background(), p.ID)
	require.ErrorIs(t, err, payflow_errors.ErrInvalidTransition)
}

func TestListByMerchant(t *testing.T) {
	f := newServiceFixture(t)

	for _, key := range []string{"list-1", "list-2", "list-3"} {
		_, err := f.service.CreatePayment(context.Background(), validCommand(key))
		require.NoError(t, err)
	}

	payments, total, err := f.service.ListByMerchant(context.Background(), "merchant-1", 1, 2)
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, payments, 2)

	payments, total, err = f.service.ListByMerchant(context.Background(), "merchant-1", 2, 2)
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, payments, 1)

	_, total, err = f.service.ListByMerchant(context.Background(), "other-merchant", 1, 10)
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestListEventsUnknownPayment(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.ListEvents(context.Background(), uuid.New())
	require.ErrorIs(t, err, payflow_errors.ErrNotFound)
}
