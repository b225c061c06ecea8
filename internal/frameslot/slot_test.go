package frameslot_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/visiona/imagesink/internal/frameslot"
)

// testFrame mimics a reference-counted native sample: released exactly once.
type testFrame struct {
	id       int
	released atomic.Int32
}

func (f *testFrame) release() {
	f.released.Add(1)
}

// TestPublishReturnsDisplaced validates the overwrite contract.
//
// Contract:
//   - Publish into empty slot: displaced=false
//   - Publish into occupied slot: displaced=true, prev is the old occupant
func TestPublishReturnsDisplaced(t *testing.T) {
	var slot frameslot.Slot[*testFrame]

	a := &testFrame{id: 1}
	b := &testFrame{id: 2}

	if prev, displaced := slot.Publish(a); displaced {
		t.Fatalf("Publish into empty slot displaced %v, want none", prev)
	}

	prev, displaced := slot.Publish(b)
	if !displaced {
		t.Fatal("Publish into occupied slot reported nothing displaced")
	}
	if prev != a {
		t.Fatalf("displaced frame = %v, want %v", prev.id, a.id)
	}
}

// TestTakeEmptiesSlot validates take-then-take coalescing behavior.
//
// A second Take without an intervening Publish must report an empty slot;
// stale consumer wakeups rely on this being a no-op.
func TestTakeEmptiesSlot(t *testing.T) {
	var slot frameslot.Slot[*testFrame]

	if _, ok := slot.Take(); ok {
		t.Fatal("Take on fresh slot returned a value")
	}

	f := &testFrame{id: 7}
	slot.Publish(f)

	got, ok := slot.Take()
	if !ok || got != f {
		t.Fatalf("Take = (%v, %v), want (%v, true)", got, ok, f)
	}

	if _, ok := slot.Take(); ok {
		t.Fatal("second Take returned a value, slot should be empty")
	}
}

// TestConcurrentPublishSingleOwnership validates at-most-one-pending under
// concurrent delivery.
//
// Scenario:
//  1. N goroutines each publish one frame, releasing whatever they displace
//     (the sink adapter's producer-side contract).
//  2. One final Take drains the slot; the taker releases that frame too.
//  3. Assert: every frame was released exactly once - never zero, never twice.
func TestConcurrentPublishSingleOwnership(t *testing.T) {
	const publishers = 64

	var slot frameslot.Slot[*testFrame]
	frames := make([]*testFrame, publishers)
	for i := range frames {
		frames[i] = &testFrame{id: i}
	}

	var wg sync.WaitGroup
	for _, f := range frames {
		wg.Add(1)
		go func(f *testFrame) {
			defer wg.Done()
			if prev, displaced := slot.Publish(f); displaced {
				prev.release()
			}
		}(f)
	}
	wg.Wait()

	last, ok := slot.Take()
	if !ok {
		t.Fatal("slot empty after publishes")
	}
	last.release()

	for _, f := range frames {
		if n := f.released.Load(); n != 1 {
			t.Errorf("frame %d released %d times, want exactly 1", f.id, n)
		}
	}
}

// TestConcurrentPublishAndTake races a taker against publishers and checks
// that no frame is lost or double-owned.
func TestConcurrentPublishAndTake(t *testing.T) {
	const publishers = 8
	const perPublisher = 200

	var slot frameslot.Slot[*testFrame]
	var released atomic.Int64
	total := publishers * perPublisher

	var wg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perPublisher; i++ {
				f := &testFrame{id: p*perPublisher + i}
				if prev, displaced := slot.Publish(f); displaced {
					prev.release()
					released.Add(1)
				}
			}
		}(p)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	// Single taker, racing with the publishers.
	for {
		if f, ok := slot.Take(); ok {
			f.release()
			released.Add(1)
		}
		select {
		case <-done:
			// Drain whatever the last publisher left behind.
			if f, ok := slot.Take(); ok {
				f.release()
				released.Add(1)
			}
			if got := released.Load(); got != int64(total) {
				t.Fatalf("released %d frames, want %d", got, total)
			}
			return
		default:
		}
	}
}
