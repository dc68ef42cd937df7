// Package errors defines the error taxonomy for the payment engine.
package errors

import (
	"errors"
	"fmt"
)

// Configuration and lookup errors. These are terminal and surface to the
// caller before any remote call is made; they never count toward trust-score
// failure metrics because no attempt occurred.
var (
	// ErrNoBankAccount is returned when a company has no active bank account
	// to receive payouts, regardless of processor configuration.
	ErrNoBankAccount = errors.New("no active bank account")

	// ErrNotConfigured is returned when a company has no active processor
	// configuration.
	ErrNotConfigured = errors.New("no payment processor configured")

	// ErrConfigNotFound is returned when a specific (company, kind) config
	// does not exist.
	ErrConfigNotFound = errors.New("processor config not found")

	// ErrTrustRecordNotFound is returned when a company has no trust score
	// record.
	ErrTrustRecordNotFound = errors.New("trust score record not found")

	// ErrVersionConflict is returned when an optimistic write lost the race
	// against a concurrent update for the same company.
	ErrVersionConflict = errors.New("record version conflict")

	// ErrInvalidAmount is returned when a payment or refund amount is not a
	// positive number of minor units.
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	// ErrWebhookVerification is returned when a webhook signature does not
	// verify; the event must be discarded unprocessed.
	ErrWebhookVerification = errors.New("webhook signature verification failed")

	// ErrUnsupportedOperation is returned when an adapter cannot perform the
	// requested operation by layering, such as status reads on the bank-link
	// rail.
	ErrUnsupportedOperation = errors.New("operation not supported by this rail")
)

// PaymentError wraps a failure with the operation and processor it occurred
// in. Raw processor error text stays inside the wrapped error for logging and
// must never be shown to end users.
type PaymentError struct {
	Op        string // operation that failed
	Processor string // processor kind, if known
	Err       error  // underlying error
}

// Error implements the error interface.
func (e *PaymentError) Error() string {
	if e.Processor != "" {
		return fmt.Sprintf("payments: %s on %s failed: %v", e.Op, e.Processor, e.Err)
	}
	return fmt.Sprintf("payments: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *PaymentError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target error.
func (e *PaymentError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new PaymentError.
func NewError(op, processor string, err error) *PaymentError {
	return &PaymentError{Op: op, Processor: processor, Err: err}
}

// ProcessorUnavailableError marks a transport-level failure: the remote rail
// could not be reached or produced no authoritative decision. It is the only
// error class eligible for caller-side retry; declines are results, never
// errors.
type ProcessorUnavailableError struct {
	Processor string
	Err       error
}

// Error implements the error interface.
func (e *ProcessorUnavailableError) Error() string {
	return fmt.Sprintf("payments: processor %s unavailable: %v", e.Processor, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProcessorUnavailableError) Unwrap() error {
	return e.Err
}

// Unavailable wraps err as a ProcessorUnavailableError for the given
// processor kind.
func Unavailable(processor string, err error) *ProcessorUnavailableError {
	return &ProcessorUnavailableError{Processor: processor, Err: err}
}

// IsRetryable reports whether err is a transport/availability failure that a
// caller may retry with backoff. Declined payments and configuration errors
// are never retryable.
func IsRetryable(err error) bool {
	var pu *ProcessorUnavailableError
	return errors.As(err, &pu)
}
