package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// InitSchema creates the payment tables and indexes. It is idempotent and
// runs at api start, before the server accepts traffic.
func InitSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,

		`DO $$ BEGIN
			CREATE TYPE payment_status AS ENUM ('PENDING', 'PROCESSING', 'COMPLETED', 'FAILED', 'REFUNDED', 'CANCELLED');
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;`,

		`CREATE TABLE IF NOT EXISTS payments (
			payment_id      UUID PRIMARY KEY,
			idempotency_key VARCHAR(255) NOT NULL,
			status          payment_status NOT NULL DEFAULT 'PENDING',
			amount_cents    BIGINT NOT NULL CHECK (amount_cents > 0),
			currency        VARCHAR(3) NOT NULL,
			merchant_id     VARCHAR(100) NOT NULL,
			customer_id     VARCHAR(100) NOT NULL,
			payment_method  VARCHAR(50) NOT NULL,
			description     VARCHAR(500),
			metadata        JSONB,
			failure_reason  VARCHAR(1000),
			created_at      TIMESTAMPTZ NOT NULL,
			updated_at      TIMESTAMPTZ NOT NULL,
			completed_at    TIMESTAMPTZ,
			version         BIGINT NOT NULL DEFAULT 0
		);`,

		`CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_idempotency_key ON payments (idempotency_key);`,
		`CREATE INDEX IF NOT EXISTS idx_payments_merchant_created ON payments (merchant_id, created_at);`,

		`CREATE TABLE IF NOT EXISTS payment_events (
			event_id        UUID PRIMARY KEY,
			payment_id      UUID NOT NULL REFERENCES payments (payment_id),
			event_type      VARCHAR(50) NOT NULL,
			previous_status payment_status,
			new_status      payment_status NOT NULL,
			event_data      JSONB,
			event_timestamp TIMESTAMPTZ NOT NULL
		);`,

		`CREATE INDEX IF NOT EXISTS idx_payment_events_payment_ts ON payment_events (payment_id, event_timestamp);`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema migration failed: %w", err)
		}
	}
	return nil
}
