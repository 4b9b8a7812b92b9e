package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"payflow/internal/domain/payment"
	"payflow/internal/events"
	"payflow/internal/redis"
	"payflow/internal/repository"
	payflow_errors "payflow/pkg/errors"
	"payflow/pkg/logger"
)

// Guard is the idempotency membership service. It maps keys to payment
// ids and nothing else; the aggregate store stays authoritative.
type Guard interface {
	Reserve(ctx context.Context, key string, candidateID uuid.UUID) (redis.ReserveResult, error)
	Lookup(ctx context.Context, key string) (uuid.UUID, bool, error)
}

// TransitionNotifier relays committed transitions to downstream
// consumers, best effort.
type TransitionNotifier interface {
	PublishPaymentEvent(p *payment.Payment, eventType string)
}

// CreateCommand is the coordinator-facing shape of a create request,
// already validated and normalized by the transport layer.
type CreateCommand struct {
	IdempotencyKey string
	AmountCents    int64
	Currency       payment.Currency
	MerchantID     string
	CustomerID     string
	PaymentMethod  string
	Description    string
	Metadata       map[string]string
}

func (c CreateCommand) validate() error {
	if c.IdempotencyKey == "" || len(c.IdempotencyKey) > 255 {
		return payflow_errors.ErrInvalidInput
	}
	if c.AmountCents <= 0 {
		return payflow_errors.ErrInvalidInput
	}
	if !payment.ValidCurrency(c.Currency) {
		return payflow_errors.ErrInvalidInput
	}
	if c.MerchantID == "" || c.CustomerID == "" || c.PaymentMethod == "" {
		return payflow_errors.ErrInvalidInput
	}
	return nil
}

// PaymentService coordinates the guard, the mutator, the gateway, and the
// publisher for each payment command.
type PaymentService struct {
	tx       repository.TxRunner
	payments repository.PaymentRepository
	events   repository.EventRepository
	guard    Guard
	mutator  *Mutator
	gateway  Gateway
	notifier TransitionNotifier
	log      *logger.Logger

	gatewayTimeout time.Duration
}

func NewPaymentService(
	tx repository.TxRunner,
	payments repository.PaymentRepository,
	eventRepo repository.EventRepository,
	guard Guard,
	mutator *Mutator,
	gateway Gateway,
	notifier TransitionNotifier,
	log *logger.Logger,
	gatewayTimeout time.Duration,
) *PaymentService {
	return &PaymentService{
		tx:             tx,
		payments:       payments,
		events:         eventRepo,
		guard:          guard,
		mutator:        mutator,
		gateway:        gateway,
		notifier:       notifier,
		log:            log,
		gatewayTimeout: gatewayTimeout,
	}
}

// CreatePayment applies a create command exactly once per idempotency
// key. Replays return the original aggregate, whether they arrive before,
// during, or after the first request commits.
func (s *PaymentService) CreatePayment(ctx context.Context, cmd CreateCommand) (*payment.Payment, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}

	// Pure read first: a known key short-circuits without minting an id.
	if existingID, ok, err := s.guard.Lookup(ctx, cmd.IdempotencyKey); err == nil && ok {
		p, err := s.payments.GetByID(ctx, existingID)
		if err == nil {
			s.log.Infof("payment already exists for idempotency key %q", cmd.IdempotencyKey)
			return p, nil
		}
		if !errors.Is(err, payflow_errors.ErrNotFound) {
			return nil, err
		}
		// Guard entry with no backing row: surface the conflict rather
		// than guessing.
		return nil, payflow_errors.ErrDuplicateRequest
	} else if err != nil {
		return nil, err
	}

	p := payment.New(
		cmd.IdempotencyKey,
		cmd.AmountCents,
		cmd.Currency,
		cmd.MerchantID,
		cmd.CustomerID,
		cmd.PaymentMethod,
		cmd.Description,
		cmd.Metadata,
	)

	err := s.tx.InTx(ctx, func(tx repository.DBTX) error {
		if err := s.payments.Create(ctx, tx, p); err != nil {
			return err
		}
		event := payment.NewEvent(p.ID, payment.EventTypeCreated, nil, payment.StatusPending, nil)
		return s.events.Append(ctx, tx, event)
	})
	if errors.Is(err, payflow_errors.ErrDuplicateRequest) {
		// A concurrent duplicate won the insert race; return its aggregate.
		winner, getErr := s.payments.GetByIdempotencyKey(ctx, cmd.IdempotencyKey)
		if getErr != nil {
			return nil, payflow_errors.ErrDuplicateRequest
		}
		return winner, nil
	}
	if err != nil {
		return nil, err
	}

	reservation, err := s.guard.Reserve(ctx, cmd.IdempotencyKey, p.ID)
	if err != nil {
		// The row and its unique key are already durable; a guard failure
		// only widens the lookup fast path, it cannot duplicate work.
		s.log.Errorf("idempotency reserve failed for key %q: %v", cmd.IdempotencyKey, err)
	} else if !reservation.Reserved && reservation.ExistingID != p.ID {
		s.log.Warnf("idempotency key %q reserved by payment %s after insert", cmd.IdempotencyKey, reservation.ExistingID)
	}

	s.notifier.PublishPaymentEvent(p, events.EventTypePaymentCreated)
	s.log.Infof("payment created: %s", p.ID)
	return p, nil
}

// ProcessPayment drives a payment to a terminal status using the gateway
// verdict. Payments already terminal are returned unchanged.
func (s *PaymentService) ProcessPayment(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	alreadyTerminal := false
	p, err := s.mutator.Mutate(ctx, id, func(p *payment.Payment) (Change, error) {
		if payment.IsTerminal(p.Status) {
			alreadyTerminal = true
			return Change{NoOp: true}, nil
		}
		if p.Status == payment.StatusProcessing {
			// A previous run stopped mid-flight; resume at the gateway.
			// The row lock is not held across the gateway call, so two
			// replays observing PROCESSING can each reach the gateway
			// once. Only the first terminal transition commits; the later
			// one finds a terminal row and no-ops.
			return Change{NoOp: true}, nil
		}
		previous, err := p.Transition(payment.StatusProcessing)
		if err != nil {
			return Change{}, err
		}
		return Change{EventType: payment.EventTypeStatus, Previous: &previous}, nil
	})
	if err != nil {
		return nil, err
	}
	if alreadyTerminal {
		s.log.Infof("payment %s already terminal: %s", id, p.Status)
		return p, nil
	}

	gatewayCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	approved, gatewayErr := s.gateway.Attempt(gatewayCtx, p)
	cancel()

	failureReason := ""
	if gatewayErr != nil {
		// Timeouts and transport failures map to FAILED, not to an error:
		// the command itself completed, the payment did not.
		failureReason = "payment gateway unavailable: " + gatewayErr.Error()
	} else if !approved {
		failureReason = "payment declined by gateway"
	}

	finished := false
	p, err = s.mutator.Mutate(ctx, id, func(p *payment.Payment) (Change, error) {
		if payment.IsTerminal(p.Status) {
			finished = true
			return Change{NoOp: true}, nil
		}
		target := payment.StatusCompleted
		if failureReason != "" {
			target = payment.StatusFailed
		}
		previous, err := p.Transition(target)
		if err != nil {
			return Change{}, err
		}
		data := map[string]string{}
		if failureReason != "" {
			p.SetFailure(failureReason)
			data["failure_reason"] = failureReason
		}
		return Change{EventType: payment.EventTypeStatus, Previous: &previous, Data: data}, nil
	})
	if err != nil {
		return nil, err
	}
	if finished {
		return p, nil
	}

	if p.Status == payment.StatusCompleted {
		s.notifier.PublishPaymentEvent(p, events.EventTypePaymentCompleted)
		s.log.Infof("payment completed: %s", p.ID)
	} else {
		s.notifier.PublishPaymentEvent(p, events.EventTypePaymentFailed)
		s.log.Warnf("payment failed: %s (%s)", p.ID, failureReason)
	}
	return p, nil
}

// RefundPayment moves a COMPLETED payment to REFUNDED. Any other source
// status is rejected.
func (s *PaymentService) RefundPayment(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	p, err := s.mutator.Mutate(ctx, id, func(p *payment.Payment) (Change, error) {
		if !payment.CanRefund(p.Status) {
			return Change{}, payflow_errors.ErrInvalidTransition
		}
		previous, err := p.Transition(payment.StatusRefunded)
		if err != nil {
			return Change{}, err
		}
		return Change{EventType: payment.EventTypeRefunded, Previous: &previous}, nil
	})
	if err != nil {
		return nil, err
	}

	// The gateway refund stub is informational only; the ledger transition
	// above is the committed outcome.
	if _, err := s.gateway.Refund(ctx, p, "merchant refund"); err != nil {
		s.log.Errorf("gateway refund call failed for payment %s: %v", p.ID, err)
	}

	s.notifier.PublishPaymentEvent(p, events.EventTypePaymentRefunded)
	s.log.Infof("payment refunded: %s", p.ID)
	return p, nil
}

// CancelPayment cancels a payment that has not started processing.
func (s *PaymentService) CancelPayment(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	p, err := s.mutator.Mutate(ctx, id, func(p *payment.Payment) (Change, error) {
		if !payment.CanCancel(p.Status) {
			return Change{}, payflow_errors.ErrInvalidTransition
		}
		previous, err := p.Transition(payment.StatusCancelled)
		if err != nil {
			return Change{}, err
		}
		return Change{EventType: payment.EventTypeCancelled, Previous: &previous}, nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.PublishPaymentEvent(p, events.EventTypePaymentCancelled)
	s.log.Infof("payment cancelled: %s", p.ID)
	return p, nil
}

func (s *PaymentService) GetPayment(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	return s.payments.GetByID(ctx, id)
}

func (s *PaymentService) ListByMerchant(ctx context.Context, merchantID string, page, limit int) ([]payment.Payment, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.payments.ListByMerchant(ctx, merchantID, page, limit)
}

// ListEvents returns the audit trail for one payment, oldest first.
func (s *PaymentService) ListEvents(ctx context.Context, id uuid.UUID) ([]payment.Event, error) {
	if _, err := s.payments.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.events.ListByPayment(ctx, id)
}
