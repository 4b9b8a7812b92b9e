package services

import (
	"errors"
	"net/http"

	payflow_errors "payflow/pkg/errors"
)

// HTTPStatus maps service errors onto transport status codes.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, payflow_errors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, payflow_errors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, payflow_errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, payflow_errors.ErrDuplicateRequest),
		errors.Is(err, payflow_errors.ErrConcurrencyExhausted):
		return http.StatusConflict
	case errors.Is(err, payflow_errors.ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, payflow_errors.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, payflow_errors.ErrNotImplemented):
		return http.StatusNotImplemented
	case errors.Is(err, payflow_errors.ErrUpstreamUnavailable),
		errors.Is(err, payflow_errors.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
