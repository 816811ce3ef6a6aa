package protocol

import (
	"sync"
	"sync/atomic"
)

// Subscriber is invoked once when the registry is poisoned.
type Subscriber func(reason string)

// Registry tracks whether the default iteration protocol is still intact.
//
// The zero value is not usable; call NewRegistry.
type Registry struct {
	// poisoned is the latch itself. Read on every qualification check.
	poisoned atomic.Bool

	// mu serializes Poison against OnPoison so that a subscriber registered
	// concurrently with the flip is either notified by Poison or run
	// immediately by OnPoison, never both and never neither.
	mu          sync.Mutex
	reason      string
	subscribers []Subscriber
}

// NewRegistry returns a registry with the default protocol intact.
func NewRegistry() *Registry {
	return &Registry{}
}

// IsDefaultProtocolIntact returns false once the default protocol has been
// overridden anywhere in the realm. It never returns true again after that.
//
//go:nosplit
func (r *Registry) IsDefaultProtocolIntact() bool {
	return !r.poisoned.Load()
}

// Poison flips the latch and synchronously notifies every subscriber.
//
// Only the first call has an effect; it returns true. Later calls return
// false and do nothing.
func (r *Registry) Poison(reason string) bool {
	r.mu.Lock()
	if r.poisoned.Load() {
		r.mu.Unlock()
		return false
	}
	r.reason = reason
	r.poisoned.Store(true)
	subs := r.subscribers
	r.subscribers = nil
	r.mu.Unlock()

	for _, fn := range subs {
		fn(reason)
	}
	return true
}

// Reason returns the reason given to the poisoning Poison call, or "" while
// the registry is intact.
func (r *Registry) Reason() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reason
}

// OnPoison registers fn to run when the registry is poisoned. If the registry
// is already poisoned, fn runs immediately on the calling goroutine.
func (r *Registry) OnPoison(fn Subscriber) {
	r.mu.Lock()
	if r.poisoned.Load() {
		reason := r.reason
		r.mu.Unlock()
		fn(reason)
		return
	}
	r.subscribers = append(r.subscribers, fn)
	r.mu.Unlock()
}
