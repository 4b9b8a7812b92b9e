package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"payflow/internal/domain/payment"
	payflow_errors "payflow/pkg/errors"
)

const paymentColumns = `payment_id, idempotency_key, status, amount_cents, currency, merchant_id,
customer_id, payment_method, description, metadata, failure_reason,
created_at, updated_at, completed_at, version`

type postgresPaymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) PaymentRepository {
	return &postgresPaymentRepository{db: db}
}

func (r *postgresPaymentRepository) Create(ctx context.Context, tx DBTX, p *payment.Payment) error {
	execDB := tx
	if execDB == nil {
		execDB = r.db
	}
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return err
	}
	_, err = execDB.ExecContext(ctx, `
        INSERT INTO payments (`+paymentColumns+`)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
    `,
		p.ID,
		p.IdempotencyKey,
		p.Status,
		p.AmountCents,
		p.Currency,
		p.MerchantID,
		p.CustomerID,
		p.PaymentMethod,
		p.Description,
		metadata,
		p.FailureReason,
		p.CreatedAt,
		p.UpdatedAt,
		p.CompletedAt,
		p.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return payflow_errors.ErrDuplicateRequest
		}
		return err
	}
	return nil
}

func (r *postgresPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT `+paymentColumns+`
        FROM payments
        WHERE payment_id = $1
    `, id)
	return scanPayment(row)
}

func (r *postgresPaymentRepository) GetByIDForUpdate(ctx context.Context, tx DBTX, id uuid.UUID) (*payment.Payment, error) {
	execDB := tx
	if execDB == nil {
		execDB = r.db
	}
	row := execDB.QueryRowContext(ctx, `
        SELECT `+paymentColumns+`
        FROM payments
        WHERE payment_id = $1
        FOR UPDATE
    `, id)
	return scanPayment(row)
}

func (r *postgresPaymentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*payment.Payment, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT `+paymentColumns+`
        FROM payments
        WHERE idempotency_key = $1
    `, key)
	return scanPayment(row)
}

func (r *postgresPaymentRepository) UpdateVersioned(ctx context.Context, tx DBTX, p *payment.Payment) error {
	execDB := tx
	if execDB == nil {
		execDB = r.db
	}
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return err
	}
	res, err := execDB.ExecContext(ctx, `
        UPDATE payments
        SET status = $1, failure_reason = $2, metadata = $3,
            updated_at = $4, completed_at = $5, version = version + 1
        WHERE payment_id = $6 AND version = $7
    `,
		p.Status,
		p.FailureReason,
		metadata,
		p.UpdatedAt,
		p.CompletedAt,
		p.ID,
		p.Version,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrVersionConflict
	}
	p.Version++
	return nil
}

func (r *postgresPaymentRepository) ListByMerchant(ctx context.Context, merchantID string, page, limit int) ([]payment.Payment, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `
        SELECT COUNT(*) FROM payments WHERE merchant_id = $1
    `, merchantID).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	rows, err := r.db.QueryContext(ctx, `
        SELECT `+paymentColumns+`
        FROM payments
        WHERE merchant_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3
    `, merchantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var payments []payment.Payment
	for rows.Next() {
		p, err := scanPaymentRow(rows)
		if err != nil {
			return nil, 0, err
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFields(s rowScanner) (*payment.Payment, error) {
	var p payment.Payment
	var metadata []byte
	err := s.Scan(
		&p.ID,
		&p.IdempotencyKey,
		&p.Status,
		&p.AmountCents,
		&p.Currency,
		&p.MerchantID,
		&p.CustomerID,
		&p.PaymentMethod,
		&p.Description,
		&metadata,
		&p.FailureReason,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.CompletedAt,
		&p.Version,
	)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

func scanPayment(row *sql.Row) (*payment.Payment, error) {
	p, err := scanFields(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, payflow_errors.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func scanPaymentRow(rows *sql.Rows) (*payment.Payment, error) {
	return scanFields(rows)
}
