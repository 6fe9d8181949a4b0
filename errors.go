package iapkit

import (
	"errors"
	"fmt"
)

// PurchaseError represents a purchase-flow-specific error
type PurchaseError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *PurchaseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Common error codes
const (
	ErrCodeUserCancelled       = "user_cancelled"
	ErrCodeStorefrontFailure   = "storefront_failure"
	ErrCodeUnregisteredProduct = "unregistered_product"
)

// NewPurchaseError creates a new purchase error
func NewPurchaseError(code, message string, details map[string]interface{}) *PurchaseError {
	return &PurchaseError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// Sentinel errors returned by Manager operations. Callers match with
// errors.Is; the sentinels wrap no further context.
var (
	// ErrEmptyCatalog is returned by RequestProducts when no product
	// identifiers have been registered.
	ErrEmptyCatalog = errors.New("iapkit: no product identifiers registered")

	// ErrRequestInFlight is returned by RequestProducts when a metadata
	// request is already pending. Concurrent requests are rejected rather
	// than silently replacing the earlier caller.
	ErrRequestInFlight = errors.New("iapkit: product request already in flight")

	// ErrPaymentsNotAllowed is returned by Purchase when the storefront
	// reports that this device or account cannot make payments.
	ErrPaymentsNotAllowed = errors.New("iapkit: payments not allowed")

	// ErrNotStarted is returned by operations that need the dispatch loop
	// before Start has been called.
	ErrNotStarted = errors.New("iapkit: manager not started")

	// ErrStopped is returned once the dispatch loop has exited. A caller
	// whose product request was in flight at shutdown receives ErrStopped
	// instead of waiting on a response that can no longer arrive.
	ErrStopped = errors.New("iapkit: manager stopped")
)

// IsUserCancelled reports whether err represents a user-cancelled purchase.
// Cancellations still finish the transaction and still emit the failure
// notification, but are not logged as errors.
func IsUserCancelled(err error) bool {
	var pe *PurchaseError
	if errors.As(err, &pe) {
		return pe.Code == ErrCodeUserCancelled
	}
	return false
}
