package iapkit

import (
	"context"
	"fmt"
	"sync"

	"github.com/iapkit/iapkit/receipt"
	"github.com/iapkit/iapkit/store"
	"go.uber.org/zap"
)

// Manager coordinates all purchase state for one storefront account: the
// product catalog, the durably recorded owned set, the last-known receipt
// validity, and the single pending product-metadata request.
//
// Construct exactly one Manager at startup and pass it to every call site.
// All mutations flow through its methods; the dispatch loop started by
// Start is the only consumer of the storefront event stream.
type Manager struct {
	mu sync.Mutex

	catalog      *Catalog
	owned        map[ProductID]struct{}
	receiptValid bool

	// pending is the continuation of the in-flight product request,
	// nil when idle. At most one request may be pending.
	pending chan productOutcome

	started bool
	stopped bool
	done    chan struct{}

	// validateMu serializes validations so at most one is in flight.
	validateMu sync.Mutex

	flags      store.FlagStore
	storefront Storefront
	verifier   *receipt.Verifier
	logger     *zap.Logger

	bus              *notificationBus
	onPurchased      []OnPurchasedHook
	onPurchaseFailed []OnPurchaseFailedHook
}

type productOutcome struct {
	products []Product
	err      error
}

// NewManager creates a Manager over the given storefront and flag store.
func NewManager(storefront Storefront, flags store.FlagStore, opts ...Option) *Manager {
	m := &Manager{
		catalog:    NewCatalog(),
		owned:      make(map[ProductID]struct{}),
		done:       make(chan struct{}),
		flags:      flags,
		storefront: storefront,
		logger:     zap.NewNop(),
		bus:        newNotificationBus(),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.verifier == nil {
		m.verifier = receipt.NewVerifier(&receipt.VerifierConfig{Logger: m.logger})
	}

	return m
}

// Start launches the dispatch loop consuming storefront events. The loop
// runs until ctx is cancelled or the storefront closes its event channel.
// A Manager runs at most one loop over its lifetime: Start returns an
// error if called more than once, and a stopped Manager cannot be
// restarted.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrStopped
	}
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("iapkit: manager already started")
	}
	m.started = true
	m.mu.Unlock()

	go func() {
		defer m.shutdown()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-m.storefront.Events():
				if !ok {
					return
				}
				m.dispatch(ev)
			}
		}
	}()

	return nil
}

// shutdown marks the Manager stopped and unwinds the pending product
// request, so no caller stays parked on a waiter that nothing resolves.
func (m *Manager) shutdown() {
	m.mu.Lock()
	m.stopped = true
	waiter := m.pending
	m.pending = nil
	m.mu.Unlock()

	if waiter != nil {
		waiter <- productOutcome{err: ErrStopped}
	}
	close(m.done)
}

// Done returns a channel closed when the dispatch loop has exited. Before
// Start the channel exists but stays open.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// ============================================================================
// Catalog Registry
// ============================================================================

// AddProduct registers a single product identifier.
func (m *Manager) AddProduct(id ProductID) {
	m.catalog.Add(id)
}

// AddProducts registers multiple product identifiers.
func (m *Manager) AddProducts(ids ...ProductID) {
	m.catalog.AddAll(ids...)
}

// Catalog returns the registry of product identifiers.
func (m *Manager) Catalog() *Catalog {
	return m.catalog
}

// ============================================================================
// Purchase State Store
// ============================================================================

// LoadResult reports the outcome of a Load.
type LoadResult struct {
	// Owned are the registered identifiers whose durable flag was set.
	Owned []ProductID

	// Checked is true when a remote receipt validation was performed.
	// When false, ReceiptValid and Outcome make no claim.
	Checked bool

	// ReceiptValid is the validation outcome when Checked.
	ReceiptValid bool

	// Outcome classifies how the validation terminated when Checked.
	Outcome receipt.Outcome
}

// Load reads the durable flag for every registered identifier and inserts
// set identifiers into the owned set. When checkRemote is true it
// additionally validates the local receipt against the verification
// service and folds the outcome into the last-known validity.
//
// Load blocks its calling goroutine for the duration of the validation;
// callers wanting a non-blocking flow run it in their own goroutine.
func (m *Manager) Load(ctx context.Context, checkRemote bool) (LoadResult, error) {
	var result LoadResult

	for _, id := range m.catalog.IDs() {
		owned, err := m.flags.Owned(string(id))
		if err != nil {
			return LoadResult{}, fmt.Errorf("failed to read owned flag for %q: %w", id, err)
		}
		if !owned {
			m.logger.Debug("not purchased", zap.String("product", string(id)))
			continue
		}

		m.logger.Debug("purchased", zap.String("product", string(id)))
		m.mu.Lock()
		m.owned[id] = struct{}{}
		m.mu.Unlock()
		result.Owned = append(result.Owned, id)
	}

	if !checkRemote {
		return result, nil
	}

	m.logger.Debug("checking receipt with verification service")

	m.validateMu.Lock()
	vr := m.verifier.Verify(ctx, m.storefront.Receipt())
	m.validateMu.Unlock()

	m.mu.Lock()
	m.receiptValid = vr.Valid
	m.mu.Unlock()

	result.Checked = true
	result.ReceiptValid = vr.Valid
	result.Outcome = vr.Outcome
	return result, nil
}

// MarkOwned durably records ownership of id, inserts it into the owned
// set, and emits a purchased notification. The durable write is flushed
// before the in-memory set is updated, so a crash after MarkOwned returns
// cannot lose the grant.
//
// MarkOwned is idempotent: repeated calls re-flush the flag but do not
// re-notify.
func (m *Manager) MarkOwned(id ProductID) error {
	if err := m.flags.SetOwned(string(id), true); err != nil {
		return fmt.Errorf("failed to set owned flag for %q: %w", id, err)
	}
	if err := m.flags.Flush(); err != nil {
		return fmt.Errorf("failed to flush owned flag for %q: %w", id, err)
	}

	m.mu.Lock()
	_, already := m.owned[id]
	m.owned[id] = struct{}{}
	m.mu.Unlock()

	if already {
		return nil
	}

	m.logger.Info("product granted", zap.String("product", string(id)))
	m.bus.Publish(Notification{Kind: NotificationPurchased, ProductID: id})
	for _, hook := range m.onPurchased {
		hook(id)
	}
	return nil
}

// IsPurchased reports whether id is owned and whether the last receipt
// validation succeeded. It is a pure read with no side effects; the
// validity claim is stale between validations.
func (m *Manager) IsPurchased(id ProductID) (owned bool, receiptValid bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, owned = m.owned[id]
	return owned, m.receiptValid
}

// ============================================================================
// Product Query
// ============================================================================

// RequestProducts fetches metadata for every registered identifier.
//
// An empty catalog resolves immediately with ErrEmptyCatalog and no
// storefront call. Exactly one request may be in flight; concurrent calls
// return ErrRequestInFlight instead of displacing the earlier caller.
func (m *Manager) RequestProducts(ctx context.Context) ([]Product, error) {
	ids := m.catalog.IDs()
	if len(ids) == 0 {
		m.logger.Debug("product request with empty catalog")
		return nil, ErrEmptyCatalog
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil, ErrStopped
	}
	if !m.started {
		m.mu.Unlock()
		return nil, ErrNotStarted
	}
	if m.pending != nil {
		m.mu.Unlock()
		return nil, ErrRequestInFlight
	}
	waiter := make(chan productOutcome, 1)
	m.pending = waiter
	m.mu.Unlock()

	m.logger.Debug("requesting products", zap.Int("count", len(ids)))
	m.storefront.RequestProducts(ids)

	select {
	case out := <-waiter:
		return out.products, out.err
	case <-ctx.Done():
		m.mu.Lock()
		if m.pending == waiter {
			m.pending = nil
		}
		m.mu.Unlock()
		return nil, ctx.Err()
	}
}

// ============================================================================
// Purchase / Restore
// ============================================================================

// Purchase initiates payment for a registered product. Transaction
// lifecycle progress arrives through the dispatch loop; completion is
// observable via hooks and the notification subscription.
func (m *Manager) Purchase(id ProductID) error {
	if !m.catalog.Contains(id) {
		return NewPurchaseError(ErrCodeUnregisteredProduct,
			fmt.Sprintf("product %q is not registered", id), nil)
	}
	if !m.storefront.CanMakePayments() {
		return ErrPaymentsNotAllowed
	}

	m.logger.Info("purchasing product", zap.String("product", string(id)))
	m.storefront.AddPayment(id)
	return nil
}

// Restore asks the storefront to replay completed transactions. Restored
// transactions arrive through the dispatch loop like any other.
func (m *Manager) Restore() {
	m.logger.Info("restoring completed transactions")
	m.storefront.RestoreCompletedTransactions()
}

// CanMakePayments reports whether this device/account may purchase.
func (m *Manager) CanMakePayments() bool {
	return m.storefront.CanMakePayments()
}

// Subscribe returns a notification channel. Previously emitted
// notifications are replayed in order before live delivery begins.
func (m *Manager) Subscribe() <-chan Notification {
	return m.bus.Subscribe()
}

// ============================================================================
// Dispatch Loop
// ============================================================================

func (m *Manager) dispatch(ev Event) {
	switch e := ev.(type) {
	case ProductsReceived:
		m.logger.Debug("loaded product list", zap.Int("count", len(e.Products)))
		m.resolveProducts(productOutcome{products: e.Products})

	case ProductsRequestFailed:
		m.logger.Warn("failed to load product list", zap.Error(e.Err))
		m.resolveProducts(productOutcome{
			err: NewPurchaseError(ErrCodeStorefrontFailure,
				"product metadata request failed",
				map[string]interface{}{"cause": e.Err.Error()}),
		})

	case TransactionsUpdated:
		for _, tx := range e.Transactions {
			m.reconcile(tx)
		}

	default:
		m.logger.Warn("unknown storefront event", zap.Any("event", ev))
	}
}

// resolveProducts hands the outcome to the pending waiter, if any.
// A response with no waiter (caller timed out, or an unsolicited delivery)
// is dropped.
func (m *Manager) resolveProducts(out productOutcome) {
	m.mu.Lock()
	waiter := m.pending
	m.pending = nil
	m.mu.Unlock()

	if waiter == nil {
		m.logger.Debug("product response with no pending request")
		return
	}
	waiter <- out
}

// reconcile processes one delivered transaction. The storefront redelivers
// transactions that were not finished, so every path here is idempotent.
func (m *Manager) reconcile(tx Transaction) {
	switch tx.State {
	case TransactionPurchased:
		m.logger.Debug("complete transaction",
			zap.String("transaction", tx.ID),
			zap.String("product", string(tx.ProductID)))
		if err := m.MarkOwned(tx.ProductID); err != nil {
			// Leave the transaction unfinished; redelivery retries the grant.
			m.logger.Error("failed to record purchase",
				zap.String("transaction", tx.ID), zap.Error(err))
			return
		}
		m.storefront.FinishTransaction(tx)

	case TransactionRestored:
		if tx.Original == nil {
			m.logger.Error("restored transaction without original",
				zap.String("transaction", tx.ID))
			m.storefront.FinishTransaction(tx)
			return
		}
		m.logger.Debug("restore transaction",
			zap.String("transaction", tx.ID),
			zap.String("product", string(tx.Original.ProductID)))
		if err := m.MarkOwned(tx.Original.ProductID); err != nil {
			m.logger.Error("failed to record restoration",
				zap.String("transaction", tx.ID), zap.Error(err))
			return
		}
		m.storefront.FinishTransaction(tx)

	case TransactionFailed:
		// Cancellation is not an error for logging purposes, but it still
		// finishes the transaction and still emits the failure notification.
		if tx.Err != nil && !IsUserCancelled(tx.Err) {
			m.logger.Error("transaction failed",
				zap.String("transaction", tx.ID),
				zap.String("product", string(tx.ProductID)),
				zap.Error(tx.Err))
		} else {
			m.logger.Debug("transaction cancelled",
				zap.String("transaction", tx.ID))
		}
		m.storefront.FinishTransaction(tx)
		m.bus.Publish(Notification{Kind: NotificationPurchaseFailed})
		for _, hook := range m.onPurchaseFailed {
			hook(tx)
		}

	case TransactionPurchasing, TransactionDeferred:
		// In-progress states are not this layer's concern and must not be
		// finished.

	default:
		m.logger.Warn("transaction in unknown state",
			zap.String("transaction", tx.ID),
			zap.String("state", tx.State.String()))
	}
}
