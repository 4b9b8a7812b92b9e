package payment

import (
	payflow_errors "payflow/pkg/errors"
)

// Status represents the lifecycle state of a payment.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusRefunded   Status = "REFUNDED"
	StatusCancelled  Status = "CANCELLED"
)

// allowedTransitions is the complete transition table. Terminal statuses
// have no exits except COMPLETED -> REFUNDED.
var allowedTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusCompleted:  {StatusRefunded},
	StatusFailed:     {},
	StatusRefunded:   {},
	StatusCancelled:  {},
}

// IsTerminal reports whether no further processing happens from s.
func IsTerminal(s Status) bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusRefunded || s == StatusCancelled
}

// CanRefund reports whether a payment in s may be refunded.
func CanRefund(s Status) bool {
	return s == StatusCompleted
}

// CanCancel reports whether a payment in s may be cancelled.
func CanCancel(s Status) bool {
	return s == StatusPending
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the aggregate to the target status. It is a pure
// state-table check plus a field write; persistence, timestamping, and
// event recording belong to the caller.
func (p *Payment) Transition(to Status) (Status, error) {
	if !CanTransition(p.Status, to) {
		return p.Status, payflow_errors.ErrInvalidTransition
	}
	previous := p.Status
	p.Status = to
	return previous, nil
}
