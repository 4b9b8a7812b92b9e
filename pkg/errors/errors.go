package payflow_errors

import "errors"

// Domain errors returned by the payment coordinator. The transport layer
// maps these to status codes with errors.Is.
var (
	ErrNotFound             = errors.New("payment not found")
	ErrDuplicateRequest     = errors.New("duplicate payment request")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrConcurrencyExhausted = errors.New("concurrent update retries exhausted")
	ErrUpstreamUnavailable  = errors.New("payment gateway unavailable")
	ErrInvalidInput         = errors.New("invalid input")
	ErrRateLimited          = errors.New("rate limited")
	ErrServiceUnavailable   = errors.New("service unavailable")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrNotImplemented       = errors.New("not implemented")
)
