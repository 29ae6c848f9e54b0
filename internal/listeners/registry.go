// Package listeners implements the event listener registry shared by every
// provider: ordered registration, identity-based removal, and per-callback
// failure isolation.
package listeners

import (
	"fmt"
	"sync"
)

type entry[T any] struct {
	id int
	fn func(T)
}

// Registry is an ordered collection of callbacks for one event kind.
// The zero value is ready to use.
type Registry[T any] struct {
	mu      sync.Mutex
	nextID  int
	entries []entry[T]
}

// Add registers fn and returns a remove func that deletes exactly this
// registration. Calling remove twice is a safe no-op.
func (r *Registry[T]) Add(fn func(T)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	r.entries = append(r.entries, entry[T]{id: id, fn: fn})

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, e := range r.entries {
			if e.id == id {
				r.entries = append(r.entries[:i], r.entries[i+1:]...)
				return
			}
		}
	}
}

// Notify invokes every callback in registration order with v. The callback
// set is snapshotted before iteration, so a removal that completes before
// Notify begins is guaranteed excluded. A panicking callback never prevents
// the others from running; its panic value is routed to onFailure, which may
// be nil to discard (used by the error registry itself to avoid recursion).
func (r *Registry[T]) Notify(v T, onFailure func(error)) {
	r.mu.Lock()
	snapshot := make([]entry[T], len(r.entries))
	copy(snapshot, r.entries)
	r.mu.Unlock()

	for _, e := range snapshot {
		func() {
			defer func() {
				if rec := recover(); rec != nil && onFailure != nil {
					onFailure(fmt.Errorf("listener panicked: %v", rec))
				}
			}()
			e.fn(v)
		}()
	}
}

// Len reports the number of active registrations.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Clear removes every registration.
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}
