package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound                 = errors.New("not found")
	ErrDuplicateRequest         = errors.New("duplicate request id")
	ErrInvalidTransition        = errors.New("invalid transaction status transition")
	ErrInsufficientFunds        = errors.New("insufficient funds")
	ErrCallbackURLNotConfigured = errors.New("callback base url is not configured")
)

// ValidationError is a local input error, raised before any upstream call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// UpstreamAuthError means the provider credential exchange failed.
// Message must never include the consumer secret.
type UpstreamAuthError struct {
	StatusCode int
	Reason     string
	Err        error
}

func (e *UpstreamAuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream auth failed: status %d: %s", e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("upstream auth failed: %s", e.Reason)
}

func (e *UpstreamAuthError) Unwrap() error {
	return e.Err
}

// PaymentInitiationError means the provider rejected or could not take the push request.
type PaymentInitiationError struct {
	StatusCode  int
	Code        string
	Description string
	Err         error
}

func (e *PaymentInitiationError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("payment initiation rejected (%s): %s", e.Code, e.Description)
	}
	return fmt.Sprintf("payment initiation failed: %s", e.Description)
}

func (e *PaymentInitiationError) Unwrap() error {
	return e.Err
}

// MalformedCallbackError is returned when neither callback envelope shape matches.
type MalformedCallbackError struct {
	Reason string
	Err    error
}

func (e *MalformedCallbackError) Error() string {
	return fmt.Sprintf("malformed callback: %s", e.Reason)
}

func (e *MalformedCallbackError) Unwrap() error {
	return e.Err
}

// StoreUnavailableError is an infrastructure failure; no side effects were performed.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}
