package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"payflow/internal/domain/payment"
	"payflow/internal/repository"
	payflow_errors "payflow/pkg/errors"
	"payflow/pkg/logger"
)

const maxMutateAttempts = 3

// Change describes the audit consequence of a transition. NoOp means the
// aggregate was left untouched and nothing is written.
type Change struct {
	EventType string
	Previous  *payment.Status
	Data      map[string]string
	NoOp      bool
}

// TransitionFn inspects the freshly loaded, lock-held aggregate and either
// mutates it to its next status or declares a no-op. It must not do I/O.
type TransitionFn func(p *payment.Payment) (Change, error)

// Mutator serializes writes to a single payment row. Each attempt runs in
// one transaction: load under a row lock, apply the transition, stamp
// timestamps, persist with a version compare-and-swap, and append the
// audit event. A version conflict means another writer committed first;
// the whole unit of work is retried against the new state.
type Mutator struct {
	tx       repository.TxRunner
	payments repository.PaymentRepository
	events   repository.EventRepository
	log      *logger.Logger

	now   func() time.Time
	sleep func(time.Duration)
}

func NewMutator(tx repository.TxRunner, payments repository.PaymentRepository, events repository.EventRepository, log *logger.Logger) *Mutator {
	return &Mutator{
		tx:       tx,
		payments: payments,
		events:   events,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		sleep:    time.Sleep,
	}
}

func (m *Mutator) Mutate(ctx context.Context, id uuid.UUID, fn TransitionFn) (*payment.Payment, error) {
	for attempt := 1; attempt <= maxMutateAttempts; attempt++ {
		var result *payment.Payment
		err := m.tx.InTx(ctx, func(tx repository.DBTX) error {
			p, err := m.payments.GetByIDForUpdate(ctx, tx, id)
			if err != nil {
				return err
			}

			change, err := fn(p)
			if err != nil {
				return err
			}
			if change.NoOp {
				result = p
				return nil
			}

			p.Touch(m.now())
			if err := m.payments.UpdateVersioned(ctx, tx, p); err != nil {
				return err
			}

			event := payment.NewEvent(p.ID, change.EventType, change.Previous, p.Status, change.Data)
			if err := m.events.Append(ctx, tx, event); err != nil {
				return err
			}

			result = p
			return nil
		})
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, err
		}

		m.log.Warnf("version conflict on payment %s, attempt %d/%d", id, attempt, maxMutateAttempts)
		if attempt < maxMutateAttempts {
			m.sleep(time.Duration(1<<attempt) * 100 * time.Millisecond)
		}
	}
	return nil, payflow_errors.ErrConcurrencyExhausted
}
