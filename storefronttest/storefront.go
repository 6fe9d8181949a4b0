// Package storefronttest provides an in-memory Storefront implementation
// for exercising iapkit without a platform SDK.
//
// The fake delivers events on a buffered channel in the same order the
// triggering calls were made. Tests can stock product metadata, script
// payment failures, mark products restorable, and redeliver transactions
// to exercise idempotent reconciliation.
package storefronttest

import (
	"sync"

	"github.com/google/uuid"
	"github.com/iapkit/iapkit"
)

// eventBuffer is the capacity of the fake's event channel. Tests that
// deliver more events than this without a running dispatch loop will block.
const eventBuffer = 32

// Storefront is a scriptable in-memory storefront.
type Storefront struct {
	mu sync.Mutex

	events chan iapkit.Event

	products   map[iapkit.ProductID]iapkit.Product
	restorable []iapkit.Transaction

	receipt []byte
	canPay  bool

	requestErr error
	paymentErr error

	closed   bool
	finished map[string]int
}

// New creates a fake storefront that allows payments and has no receipt.
func New() *Storefront {
	return &Storefront{
		events:   make(chan iapkit.Event, eventBuffer),
		products: make(map[iapkit.ProductID]iapkit.Product),
		canPay:   true,
		finished: make(map[string]int),
	}
}

// ============================================================================
// Scripting
// ============================================================================

// Stock registers product metadata returned by RequestProducts.
func (s *Storefront) Stock(products ...iapkit.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		s.products[p.ID] = p
	}
}

// SetReceipt sets the local receipt blob.
func (s *Storefront) SetReceipt(blob []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipt = blob
}

// SetCanMakePayments controls the capability check.
func (s *Storefront) SetCanMakePayments(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canPay = ok
}

// FailProductRequests makes subsequent metadata requests fail with err.
func (s *Storefront) FailProductRequests(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requestErr = err
}

// FailPayments makes subsequent payments fail with err instead of
// completing. Pass nil to restore successful payments.
func (s *Storefront) FailPayments(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paymentErr = err
}

// MarkRestorable records a prior purchase of id that the next restore
// call replays. Returns the original transaction for assertions.
func (s *Storefront) MarkRestorable(id iapkit.ProductID) iapkit.Transaction {
	original := iapkit.Transaction{
		ID:        uuid.NewString(),
		ProductID: id,
		State:     iapkit.TransactionPurchased,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restorable = append(s.restorable, original)
	return original
}

// Deliver injects a raw event, bypassing the scripted flows. Used to
// redeliver transactions or send malformed batches. Events delivered
// after Close are dropped.
func (s *Storefront) Deliver(ev iapkit.Event) {
	s.send(ev)
}

// send delivers ev unless the storefront has been closed. Close must not
// race a scripted call from another goroutine; the guard covers the
// sequential close-then-script case.
func (s *Storefront) send(ev iapkit.Event) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	s.events <- ev
}

// FinishCount reports how many times txID was finished.
func (s *Storefront) FinishCount(txID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished[txID]
}

// TotalFinishes reports the total number of finish calls across all
// transactions.
func (s *Storefront) TotalFinishes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.finished {
		total += n
	}
	return total
}

// Close closes the event channel, stopping any dispatch loop consuming
// it. Scripted calls after Close deliver nothing instead of panicking.
func (s *Storefront) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	close(s.events)
}

// ============================================================================
// iapkit.Storefront Implementation
// ============================================================================

// Events returns the event channel.
func (s *Storefront) Events() <-chan iapkit.Event {
	return s.events
}

// RequestProducts responds with stocked metadata for the known subset of
// ids. Unknown identifiers are silently omitted, matching storefront
// behavior for invalid product identifiers.
func (s *Storefront) RequestProducts(ids []iapkit.ProductID) {
	s.mu.Lock()
	requestErr := s.requestErr
	var found []iapkit.Product
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			found = append(found, p)
		}
	}
	s.mu.Unlock()

	if requestErr != nil {
		s.send(iapkit.ProductsRequestFailed{Err: requestErr})
		return
	}
	s.send(iapkit.ProductsReceived{Products: found})
}

// AddPayment delivers a purchased (or scripted failed) transaction.
func (s *Storefront) AddPayment(id iapkit.ProductID) {
	s.mu.Lock()
	paymentErr := s.paymentErr
	s.mu.Unlock()

	tx := iapkit.Transaction{
		ID:        uuid.NewString(),
		ProductID: id,
		State:     iapkit.TransactionPurchased,
	}
	if paymentErr != nil {
		tx.State = iapkit.TransactionFailed
		tx.Err = paymentErr
	}
	s.send(iapkit.TransactionsUpdated{Transactions: []iapkit.Transaction{tx}})
}

// RestoreCompletedTransactions replays each restorable purchase as a
// restored transaction referencing its original.
func (s *Storefront) RestoreCompletedTransactions() {
	s.mu.Lock()
	restorable := make([]iapkit.Transaction, len(s.restorable))
	copy(restorable, s.restorable)
	s.mu.Unlock()

	txs := make([]iapkit.Transaction, 0, len(restorable))
	for i := range restorable {
		txs = append(txs, iapkit.Transaction{
			ID:       uuid.NewString(),
			State:    iapkit.TransactionRestored,
			Original: &restorable[i],
		})
	}
	if len(txs) > 0 {
		s.send(iapkit.TransactionsUpdated{Transactions: txs})
	}
}

// FinishTransaction records the acknowledgment. Finishing the same
// transaction repeatedly is allowed.
func (s *Storefront) FinishTransaction(tx iapkit.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished[tx.ID]++
}

// CanMakePayments reports the scripted capability.
func (s *Storefront) CanMakePayments() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canPay
}

// Receipt returns the scripted receipt blob.
func (s *Storefront) Receipt() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.receipt
}

// Ensure Storefront implements iapkit.Storefront
var _ iapkit.Storefront = (*Storefront)(nil)
