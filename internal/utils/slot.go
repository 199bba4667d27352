package utils

import (
	"context"
	"sync"
)

// Slot is an awaitable single-value holder. Set is non-blocking and
// replaces any previous value; Wait blocks until a value is present or the
// context ends. It backs the "watched channel" handoff between the state
// machine and the watch loop.
type Slot[T any] struct {
	mu      sync.Mutex
	value   T
	present bool
	waiters chan struct{}
}

// NewSlot returns an empty slot.
func NewSlot[T any]() *Slot[T] {
	return &Slot[T]{waiters: make(chan struct{})}
}

// Set stores a value and wakes all waiters.
func (s *Slot[T]) Set(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = v
	s.present = true
	close(s.waiters)
	s.waiters = make(chan struct{})
}

// Clear empties the slot.
func (s *Slot[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	s.value = zero
	s.present = false
}

// Get returns the current value and whether one is present.
func (s *Slot[T]) Get() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.present
}

// Wait blocks until the slot holds a value or ctx is done, then returns
// the value. Callers must re-check: the slot may be cleared again between
// the wakeup and the next use.
func (s *Slot[T]) Wait(ctx context.Context) (T, error) {
	for {
		s.mu.Lock()
		if s.present {
			v := s.value
			s.mu.Unlock()
			return v, nil
		}
		wake := s.waiters
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-wake:
		}
	}
}
