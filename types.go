package iapkit

import "fmt"

// ProductID identifies a single purchasable product. IDs are opaque strings
// assigned by the integrator and must be unique per product.
type ProductID string

// Product is display metadata for a purchasable product as returned by the
// storefront. It is read-only and never persisted by this package.
type Product struct {
	ID          ProductID `json:"id"`
	Title       string    `json:"title"`
	Price       string    `json:"price"`       // decimal string, no formatting applied
	PriceLocale string    `json:"priceLocale"` // locale identifier, e.g. "en_US"
}

// TransactionState is the lifecycle state of a storefront transaction.
type TransactionState int

const (
	// TransactionPurchasing means payment is still being processed.
	TransactionPurchasing TransactionState = iota
	// TransactionPurchased means payment completed and content should be granted.
	TransactionPurchased
	// TransactionFailed means the purchase did not complete.
	TransactionFailed
	// TransactionRestored means a prior purchase is being re-established.
	TransactionRestored
	// TransactionDeferred means the purchase awaits external approval.
	TransactionDeferred
)

// String returns the lowercase name of the state.
func (s TransactionState) String() string {
	switch s {
	case TransactionPurchasing:
		return "purchasing"
	case TransactionPurchased:
		return "purchased"
	case TransactionFailed:
		return "failed"
	case TransactionRestored:
		return "restored"
	case TransactionDeferred:
		return "deferred"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Transaction is a single payment event delivered by the storefront.
//
// The storefront redelivers transactions until they are finished, so any
// processing keyed on a Transaction must be idempotent. For restored
// transactions, Original references the transaction of the initial purchase
// and carries the product identifier to grant.
type Transaction struct {
	// ID is the storefront-assigned transaction identifier.
	ID string

	// ProductID is the product this payment is for.
	ProductID ProductID

	// State is the lifecycle state at delivery time.
	State TransactionState

	// Original is the initial purchase a restored transaction refers to.
	// Set only when State is TransactionRestored.
	Original *Transaction

	// Err carries the failure cause when State is TransactionFailed.
	Err error
}

// ============================================================================
// Storefront Events
// ============================================================================

// Event is a typed storefront notification. Exactly one of the concrete
// event types below is delivered per Event; the Manager's dispatch loop
// routes on the concrete type.
type Event interface {
	isEvent()
}

// ProductsReceived delivers the result of a product metadata request.
type ProductsReceived struct {
	Products []Product
}

// ProductsRequestFailed reports that a product metadata request failed.
type ProductsRequestFailed struct {
	Err error
}

// TransactionsUpdated delivers a batch of transaction lifecycle changes.
// Batches may contain transactions already processed by a previous run.
type TransactionsUpdated struct {
	Transactions []Transaction
}

func (ProductsReceived) isEvent()      {}
func (ProductsRequestFailed) isEvent() {}
func (TransactionsUpdated) isEvent()   {}
