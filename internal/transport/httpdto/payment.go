package httpdto

import (
	"time"

	"payflow/internal/domain/payment"
)

type CreatePaymentRequest struct {
	IdempotencyKey string            `json:"idempotencyKey" binding:"required,min=1,max=255"`
	Amount         string            `json:"amount" binding:"required"`
	Currency       string            `json:"currency" binding:"required,oneof=USD EUR GBP JPY IDR"`
	MerchantID     string            `json:"merchantId" binding:"required,max=100"`
	CustomerID     string            `json:"customerId" binding:"required,max=100"`
	PaymentMethod  string            `json:"paymentMethod" binding:"required,max=50"`
	Description    string            `json:"description" binding:"max=500"`
	Metadata       map[string]string `json:"metadata"`
}

type PaymentResponse struct {
	ID             string            `json:"id"`
	IdempotencyKey string            `json:"idempotencyKey"`
	Status         string            `json:"status"`
	Amount         string            `json:"amount"`
	Currency       string            `json:"currency"`
	MerchantID     string            `json:"merchantId"`
	CustomerID     string            `json:"customerId"`
	PaymentMethod  string            `json:"paymentMethod"`
	Description    string            `json:"description,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	FailureReason  string            `json:"failureReason,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
	CompletedAt    *time.Time        `json:"completedAt,omitempty"`
	Version        int64             `json:"version"`
}

type PaymentListResponse struct {
	Payments []PaymentResponse `json:"payments"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
}

type PaymentEventResponse struct {
	EventID        string            `json:"eventId"`
	PaymentID      string            `json:"paymentId"`
	EventType      string            `json:"eventType"`
	PreviousStatus *string           `json:"previousStatus,omitempty"`
	NewStatus      string            `json:"newStatus"`
	EventData      map[string]string `json:"eventData,omitempty"`
	EventTimestamp time.Time         `json:"eventTimestamp"`
}

// NewPaymentResponse flattens the aggregate for the wire.
func NewPaymentResponse(p *payment.Payment) PaymentResponse {
	res := PaymentResponse{
		ID:             p.ID.String(),
		IdempotencyKey: p.IdempotencyKey,
		Status:         string(p.Status),
		Amount:         payment.FormatAmount(p.AmountCents),
		Currency:       string(p.Currency),
		MerchantID:     p.MerchantID,
		CustomerID:     p.CustomerID,
		PaymentMethod:  p.PaymentMethod,
		Metadata:       p.Metadata,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
		Version:        p.Version,
	}
	if p.Description.Valid {
		res.Description = p.Description.String
	}
	if p.FailureReason.Valid {
		res.FailureReason = p.FailureReason.String
	}
	if p.CompletedAt.Valid {
		completedAt := p.CompletedAt.Time
		res.CompletedAt = &completedAt
	}
	return res
}

func NewPaymentEventResponse(e *payment.Event) PaymentEventResponse {
	res := PaymentEventResponse{
		EventID:        e.EventID.String(),
		PaymentID:      e.PaymentID.String(),
		EventType:      e.EventType,
		NewStatus:      string(e.NewStatus),
		EventData:      e.EventData,
		EventTimestamp: e.EventTimestamp,
	}
	if e.PreviousStatus != nil {
		previous := string(*e.PreviousStatus)
		res.PreviousStatus = &previous
	}
	return res
}
