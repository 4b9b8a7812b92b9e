package inmemory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"payflow/internal/domain/payment"
	"payflow/internal/repository"
)

// EventStore is an in-memory append-only EventRepository.
type EventStore struct {
	mu     sync.RWMutex
	events []payment.Event
	// failNext makes the next Append fail, for atomicity tests.
	failNext error
}

func NewEventStore() *EventStore {
	return &EventStore{}
}

func (s *EventStore) Append(ctx context.Context, tx repository.DBTX, e *payment.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	s.events = append(s.events, *e)
	return nil
}

func (s *EventStore) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]payment.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []payment.Event
	for _, e := range s.events {
		if e.PaymentID == paymentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *EventStore) FailNextAppend(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

func (s *EventStore) snapshot() interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func (s *EventStore) restore(snap interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = s.events[:snap.(int)]
}

// TxStore is a store that can participate in an in-memory transaction.
type TxStore interface {
	snapshot() interface{}
	restore(snap interface{})
}

// TxRunner serializes units of work with a mutex, standing in for a
// database transaction in tests. Participating stores are snapshotted on
// entry and restored when the unit of work fails, so a failed "commit"
// leaves no partial writes behind.
type TxRunner struct {
	mu     sync.Mutex
	stores []TxStore
}

func NewTxRunner(stores ...TxStore) *TxRunner {
	return &TxRunner{stores: stores}
}

func (r *TxRunner) InTx(ctx context.Context, fn func(repository.DBTX) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshots := make([]interface{}, len(r.stores))
	for i, s := range r.stores {
		snapshots[i] = s.snapshot()
	}
	if err := fn(nil); err != nil {
		for i, s := range r.stores {
			s.restore(snapshots[i])
		}
		return err
	}
	return nil
}
