// Package store provides durable ownership-flag persistence for iapkit.
//
// The FlagStore interface is deliberately tiny: a boolean flag per product
// identifier plus an explicit Flush. Flush must not return until the
// preceding writes are durable, so a crash immediately after a flushed
// write cannot lose the flag.
//
// Two implementations ship with the package: MemoryStore for tests and
// single-process experiments, and FileStore for on-device persistence.
// Distributed backends (Redis, a database) can implement FlagStore for
// server-side deployments.
package store

import "sync"

// FlagStore defines the interface for owned-flag storage.
// Implementations must be safe for concurrent use.
type FlagStore interface {
	// Owned reads the durable flag for the given product identifier.
	// An identifier that was never written reads as false, not an error.
	Owned(id string) (bool, error)

	// SetOwned records the flag for the given product identifier.
	// The write may be buffered until Flush.
	SetOwned(id string, owned bool) error

	// Flush makes all preceding writes durable before returning.
	Flush() error
}

// MemoryStore provides an in-memory implementation of FlagStore.
//
// Writes are immediately visible and Flush is a no-op, which makes the
// store suitable for tests and for platforms whose native preference
// system is layered elsewhere.
type MemoryStore struct {
	mu    sync.RWMutex
	flags map[string]bool
}

// NewMemoryStore creates an empty in-memory flag store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{flags: make(map[string]bool)}
}

// Owned reads the flag for id.
func (s *MemoryStore) Owned(id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags[id], nil
}

// SetOwned records the flag for id.
func (s *MemoryStore) SetOwned(id string, owned bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[id] = owned
	return nil
}

// Flush is a no-op; writes are durable for the lifetime of the process.
func (s *MemoryStore) Flush() error {
	return nil
}

// Ensure MemoryStore implements FlagStore
var _ FlagStore = (*MemoryStore)(nil)
