// Package handler provides HTTP handlers for API endpoints.
package handler

import (
	"context"
	"net/http"
	"strconv"

	"payflow/internal/domain/payment"
	"payflow/internal/services"
	"payflow/internal/transport/httpdto"
	"payflow/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PaymentHandler handles payment HTTP endpoints.
type PaymentHandler struct {
	service *services.PaymentService
	log     *logger.Logger
}

// NewPaymentHandler creates a payment handler.
func NewPaymentHandler(service *services.PaymentService, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{service: service, log: log}
}

// Create accepts a payment and kicks off processing in the background.
func (h *PaymentHandler) Create(c *gin.Context) {
	var req httpdto.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	amountCents, err := payment.ParseAmount(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid amount", "INVALID_REQUEST"))
		return
	}

	merchantID := req.MerchantID
	if authenticated, ok := services.MerchantIDFromContext(c.Request.Context()); ok {
		merchantID = authenticated
	}

	p, err := h.service.CreatePayment(c.Request.Context(), services.CreateCommand{
		IdempotencyKey: req.IdempotencyKey,
		AmountCents:    amountCents,
		Currency:       payment.Currency(req.Currency),
		MerchantID:     merchantID,
		CustomerID:     req.CustomerID,
		PaymentMethod:  req.PaymentMethod,
		Description:    req.Description,
		Metadata:       req.Metadata,
	})
	if err != nil {
		writePaymentError(c, err)
		return
	}

	if p.Status == payment.StatusPending {
		// Detached from the request: the client gets the accepted payment
		// back immediately and polls for the outcome.
		go func(id uuid.UUID) {
			if _, err := h.service.ProcessPayment(context.Background(), id); err != nil {
				h.log.Errorf("background processing failed for payment %s: %v", id, err)
			}
		}(p.ID)
	}

	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.NewPaymentResponse(p)))
}

// Get returns a single payment by id.
func (h *PaymentHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid payment id", "INVALID_REQUEST"))
		return
	}

	p, err := h.service.GetPayment(c.Request.Context(), id)
	if err != nil {
		writePaymentError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewPaymentResponse(p)))
}

// List returns the authenticated merchant's payments, newest first.
func (h *PaymentHandler) List(c *gin.Context) {
	merchantID, ok := services.MerchantIDFromContext(c.Request.Context())
	if !ok {
		merchantID = c.Query("merchantId")
	}
	if merchantID == "" {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("merchant id required", "INVALID_REQUEST"))
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	payments, total, err := h.service.ListByMerchant(c.Request.Context(), merchantID, page, limit)
	if err != nil {
		writePaymentError(c, err)
		return
	}

	res := httpdto.PaymentListResponse{
		Payments: make([]httpdto.PaymentResponse, 0, len(payments)),
		Total:    total,
		Page:     page,
		Limit:    limit,
	}
	for i := range payments {
		res.Payments = append(res.Payments, httpdto.NewPaymentResponse(&payments[i]))
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(res))
}

// Refund moves a completed payment to refunded.
func (h *PaymentHandler) Refund(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid payment id", "INVALID_REQUEST"))
		return
	}

	p, err := h.service.RefundPayment(c.Request.Context(), id)
	if err != nil {
		writePaymentError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewPaymentResponse(p)))
}

// Cancel cancels a payment that has not started processing.
func (h *PaymentHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid payment id", "INVALID_REQUEST"))
		return
	}

	p, err := h.service.CancelPayment(c.Request.Context(), id)
	if err != nil {
		writePaymentError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewPaymentResponse(p)))
}

// Events returns the audit trail for one payment.
func (h *PaymentHandler) Events(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid payment id", "INVALID_REQUEST"))
		return
	}

	paymentEvents, err := h.service.ListEvents(c.Request.Context(), id)
	if err != nil {
		writePaymentError(c, err)
		return
	}

	res := make([]httpdto.PaymentEventResponse, 0, len(paymentEvents))
	for i := range paymentEvents {
		res = append(res, httpdto.NewPaymentEventResponse(&paymentEvents[i]))
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(res))
}

func writePaymentError(c *gin.Context, err error) {
	status := services.HTTPStatus(err)
	c.JSON(status, httpdto.NewErrorResponse(err.Error(), errorCode(status)))
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "INVALID_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusUnprocessableEntity:
		return "INVALID_STATE"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	case http.StatusNotImplemented:
		return "NOT_IMPLEMENTED"
	case http.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}
