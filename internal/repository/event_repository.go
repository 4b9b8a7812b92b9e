package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"payflow/internal/domain/payment"
)

type postgresEventRepository struct {
	db DBTX
}

func NewEventRepository(db DBTX) EventRepository {
	return &postgresEventRepository{db: db}
}

func (r *postgresEventRepository) Append(ctx context.Context, tx DBTX, e *payment.Event) error {
	execDB := tx
	if execDB == nil {
		execDB = r.db
	}
	eventData, err := json.Marshal(e.EventData)
	if err != nil {
		return err
	}
	var previous interface{}
	if e.PreviousStatus != nil {
		previous = string(*e.PreviousStatus)
	}
	_, err = execDB.ExecContext(ctx, `
        INSERT INTO payment_events (event_id, payment_id, event_type, previous_status, new_status, event_data, event_timestamp)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
    `,
		e.EventID,
		e.PaymentID,
		e.EventType,
		previous,
		e.NewStatus,
		eventData,
		e.EventTimestamp,
	)
	return err
}

func (r *postgresEventRepository) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]payment.Event, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT event_id, payment_id, event_type, previous_status, new_status, event_data, event_timestamp
        FROM payment_events
        WHERE payment_id = $1
        ORDER BY event_timestamp ASC
    `, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []payment.Event
	for rows.Next() {
		var e payment.Event
		var previous *string
		var eventData []byte
		if err := rows.Scan(
			&e.EventID,
			&e.PaymentID,
			&e.EventType,
			&previous,
			&e.NewStatus,
			&eventData,
			&e.EventTimestamp,
		); err != nil {
			return nil, err
		}
		if previous != nil {
			s := payment.Status(*previous)
			e.PreviousStatus = &s
		}
		if len(eventData) > 0 {
			if err := json.Unmarshal(eventData, &e.EventData); err != nil {
				return nil, err
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
