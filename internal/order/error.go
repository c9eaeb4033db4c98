package order

import "fmt"

// ExecutionErrorCode classifies the API-level failures the execution layer
// can report for an order request.
type ExecutionErrorCode string

const (
	ExecRateLimit            ExecutionErrorCode = "rate_limit"
	ExecInstrumentInvalid    ExecutionErrorCode = "instrument_invalid"
	ExecBalanceInsufficient  ExecutionErrorCode = "balance_insufficient"
	ExecOrderRejected        ExecutionErrorCode = "order_rejected"
	ExecOrderAlreadyCanceled ExecutionErrorCode = "order_already_cancelled"
	ExecOrderAlreadyFilled   ExecutionErrorCode = "order_already_fully_filled"
)

// ExecutionError is an execution-layer failure attached to an order response.
// An error response removes speculative state but is never retried by the
// engine; retry policy belongs to the strategy or the operator.
type ExecutionError struct {
	Code   ExecutionErrorCode
	Reason string
}

func (e *ExecutionError) Error() string {
	if e.Reason == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}
