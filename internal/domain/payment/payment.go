package payment

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Currency is the closed set of currencies the engine accepts.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyJPY Currency = "JPY"
	CurrencyIDR Currency = "IDR"
)

func ValidCurrency(c Currency) bool {
	switch c {
	case CurrencyUSD, CurrencyEUR, CurrencyGBP, CurrencyJPY, CurrencyIDR:
		return true
	}
	return false
}

// Payment represents the payments table. It is the unit of transactional
// consistency: mutations go through the mutator, one transition at a time,
// and Version is the optimistic concurrency token the store checks on
// every write.
type Payment struct {
	ID             uuid.UUID
	IdempotencyKey string
	Status         Status
	AmountCents    int64
	Currency       Currency
	MerchantID     string
	CustomerID     string
	PaymentMethod  string
	Description    sql.NullString
	Metadata       map[string]string
	FailureReason  sql.NullString
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    sql.NullTime
	Version        int64
}

// New builds a fresh PENDING aggregate at version 0.
func New(idempotencyKey string, amountCents int64, currency Currency, merchantID, customerID, paymentMethod, description string, metadata map[string]string) *Payment {
	now := time.Now().UTC()
	p := &Payment{
		ID:             uuid.New(),
		IdempotencyKey: idempotencyKey,
		Status:         StatusPending,
		AmountCents:    amountCents,
		Currency:       currency,
		MerchantID:     merchantID,
		CustomerID:     customerID,
		PaymentMethod:  paymentMethod,
		Metadata:       metadata,
		CreatedAt:      now,
		UpdatedAt:      now,
		Version:        0,
	}
	if description != "" {
		p.Description = sql.NullString{String: description, Valid: true}
	}
	return p
}

// Touch is the explicit pre-commit hook the mutator runs before every
// write: it refreshes UpdatedAt and stamps CompletedAt exactly once, on
// the first transition into a terminal status.
func (p *Payment) Touch(now time.Time) {
	p.UpdatedAt = now
	if IsTerminal(p.Status) && !p.CompletedAt.Valid {
		p.CompletedAt = sql.NullTime{Time: now, Valid: true}
	}
}

// SetFailure records the reason for a transition into FAILED.
func (p *Payment) SetFailure(reason string) {
	p.FailureReason = sql.NullString{String: reason, Valid: true}
}
