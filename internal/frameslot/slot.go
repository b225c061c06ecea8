// Package frameslot implements a single-entry overwrite mailbox for frames
// crossing the producer/consumer thread boundary.
//
// Philosophy: "Drop frames, never queue. Latency > Completeness."
//
// The slot holds at most one pending value. Publishing replaces whatever is
// there and hands the displaced value back to the publisher; taking empties
// the slot. Both operations are single atomic swaps, so neither side ever
// blocks the other.
package frameslot

import "sync/atomic"

// Slot is a lock-free single-entry overwrite buffer.
//
// Semantics:
//   - Publish: store new value, return displaced value (overwrite policy)
//   - Take: remove and return current value (nil-slot safe)
//   - Both non-blocking, safe under concurrent publishers and one taker
//
// The slot never disposes displaced values itself. Whoever displaces a value
// owns it from that moment on; this keeps release on the displacing thread
// and bounds memory even when the consumer stalls.
//
// The zero value is an empty slot ready for use.
type Slot[T any] struct {
	cell atomic.Pointer[T]
}

// Publish stores v and returns the value it displaced, if any.
//
// Non-blocking: a single atomic swap. Safe for concurrent calls from
// multiple publisher goroutines.
//
// Contract: when displaced is true the caller now owns prev and must
// release it exactly once.
func (s *Slot[T]) Publish(v T) (prev T, displaced bool) {
	old := s.cell.Swap(&v)
	if old == nil {
		var zero T
		return zero, false
	}
	return *old, true
}

// Take removes and returns the current occupant, if any.
//
// Non-blocking: a single atomic swap. An empty slot is not an error; a
// stale wakeup simply finds nothing to consume.
//
// Contract: single taker. Concurrent takers would each get at most one
// value, but the consumer side of this bridge is single-threaded anyway.
func (s *Slot[T]) Take() (v T, ok bool) {
	old := s.cell.Swap(nil)
	if old == nil {
		var zero T
		return zero, false
	}
	return *old, true
}
