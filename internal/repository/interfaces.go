package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"payflow/internal/domain/payment"
)

// ErrVersionConflict is returned by UpdateVersioned when another writer
// committed since the row was loaded. The mutator retries on it.
var ErrVersionConflict = errors.New("stale payment version")

// TxRunner executes fn inside one atomic unit of work. The DBTX handed to
// fn must be used for every statement that has to commit together.
type TxRunner interface {
	InTx(ctx context.Context, fn func(DBTX) error) error
}

type PaymentRepository interface {
	// Create inserts the aggregate. Run it inside a transaction together
	// with the creation event so both commit or neither does.
	Create(ctx context.Context, tx DBTX, p *payment.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error)
	// GetByIDForUpdate loads the row under an exclusive row-level lock.
	// Must be called inside a transaction.
	GetByIDForUpdate(ctx context.Context, tx DBTX, id uuid.UUID) (*payment.Payment, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*payment.Payment, error)
	// UpdateVersioned persists p only if the stored version still equals
	// p.Version, then increments p.Version. Returns ErrVersionConflict
	// when the compare-and-swap loses.
	UpdateVersioned(ctx context.Context, tx DBTX, p *payment.Payment) error
	ListByMerchant(ctx context.Context, merchantID string, page, limit int) ([]payment.Payment, int64, error)
}

type EventRepository interface {
	// Append writes one immutable audit row. A failure must abort the
	// enclosing transaction.
	Append(ctx context.Context, tx DBTX, e *payment.Event) error
	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]payment.Event, error)
}
