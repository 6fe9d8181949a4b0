package iapkit

import (
	"github.com/iapkit/iapkit/receipt"
	"go.uber.org/zap"
)

// ============================================================================
// Manager Hook Function Types
// ============================================================================

// OnPurchasedHook is called after ownership of a product has been durably
// granted. It runs on the dispatch goroutine for storefront-driven grants,
// so it must not block.
type OnPurchasedHook func(id ProductID)

// OnPurchaseFailedHook is called when a purchase fails, including user
// cancellation. It runs on the dispatch goroutine and must not block.
type OnPurchaseFailedHook func(tx Transaction)

// ============================================================================
// Manager Options
// ============================================================================

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithVerifier sets the receipt verifier used by Load(checkRemote=true).
// Defaults to a verifier against the production verification endpoint.
func WithVerifier(v *receipt.Verifier) Option {
	return func(m *Manager) {
		m.verifier = v
	}
}

// WithOnPurchased registers a hook to execute after a product is granted.
func WithOnPurchased(hook OnPurchasedHook) Option {
	return func(m *Manager) {
		m.onPurchased = append(m.onPurchased, hook)
	}
}

// WithOnPurchaseFailed registers a hook to execute when a purchase fails.
func WithOnPurchaseFailed(hook OnPurchaseFailedHook) Option {
	return func(m *Manager) {
		m.onPurchaseFailed = append(m.onPurchaseFailed, hook)
	}
}
