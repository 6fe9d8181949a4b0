package iapkit

import "github.com/iapkit/iapkit/store"

// ============================================================================
// Storefront Interface (External Collaborator Boundary)
// ============================================================================

// Storefront is the external purchasing platform. Implementations bridge a
// platform SDK (or a test double) to the typed event stream consumed by the
// Manager's dispatch loop.
//
// RequestProducts, AddPayment and RestoreCompletedTransactions are
// fire-and-forget: their results arrive later as Events. FinishTransaction
// acknowledges a delivered transaction; the storefront redelivers
// unacknowledged transactions, so FinishTransaction must be idempotent.
type Storefront interface {
	// Events returns the channel the storefront delivers events on.
	// The channel is closed when the storefront shuts down.
	Events() <-chan Event

	// RequestProducts asks the storefront for metadata on the given
	// identifiers. The response arrives as a ProductsReceived or
	// ProductsRequestFailed event.
	RequestProducts(ids []ProductID)

	// AddPayment initiates a purchase for the given product. Lifecycle
	// progress arrives as TransactionsUpdated events.
	AddPayment(id ProductID)

	// RestoreCompletedTransactions replays prior purchases as restored
	// transactions.
	RestoreCompletedTransactions()

	// FinishTransaction acknowledges a transaction so it is not redelivered.
	FinishTransaction(tx Transaction)

	// CanMakePayments reports whether this device/account may purchase.
	CanMakePayments() bool

	// Receipt returns the raw local receipt blob, or nil when no receipt
	// has been issued yet.
	Receipt() []byte
}

// FlagStore is re-exported for call sites that only import the root package.
type FlagStore = store.FlagStore
