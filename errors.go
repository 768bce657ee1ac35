package tips

import (
	"errors"
	"fmt"

	"github.com/attentionrush/tips/mechanisms/evm"
)

// PaymentError represents a payment-specific error
type PaymentError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

func (e *PaymentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying submission error
func (e *PaymentError) Unwrap() error {
	return e.Err
}

// Is matches payment errors by code so sentinels work with errors.Is
func (e *PaymentError) Is(target error) bool {
	t, ok := target.(*PaymentError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Common error codes
const (
	ErrCodeNoResolvableAddress = "no_resolvable_address"
	ErrCodeTransferFailed      = "transfer_failed"
	ErrCodeTransferAborted     = "transfer_aborted"
	ErrCodePartialSubmission   = "partial_submission"
	ErrCodeInvalidAmount       = "invalid_amount"
	ErrCodeInvalidAddress      = "invalid_address"
	ErrCodeSessionClosed       = "session_closed"
)

var (
	// ErrNoResolvableAddress is returned when an author has neither a verified
	// nor a custody address
	ErrNoResolvableAddress = &PaymentError{Code: ErrCodeNoResolvableAddress, Message: "no resolvable address"}

	// ErrSessionClosed is returned for operations on a closed session
	ErrSessionClosed = &PaymentError{Code: ErrCodeSessionClosed, Message: "session is closed"}

	// ErrSessionNotFound is returned by the registry for unknown session ids
	ErrSessionNotFound = errors.New("session not found")
)

// NewPaymentError creates a new payment error
func NewPaymentError(code, message string, details map[string]interface{}) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// IsTransferFailure reports whether err is an exhausted-retry transfer failure
func IsTransferFailure(err error) bool {
	var pe *PaymentError
	return errors.As(err, &pe) && pe.Code == ErrCodeTransferFailed
}

// PartiallySent reports how many leading calls of a bundle were broadcast
// before err stopped it. ok is false when err is not a partial broadcast.
func PartiallySent(err error) (sent int, ok bool) {
	partial, ok := evm.AsPartialSubmit(err)
	if !ok {
		return 0, false
	}
	return partial.Sent, true
}
