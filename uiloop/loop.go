// Package uiloop provides a single-threaded dispatch loop standing in for a
// UI toolkit's main thread.
//
// Display-side state in this bridge is single-writer: exactly one goroutine
// may map buffers and mutate the image property. Loop pins one goroutine to
// an OS thread, runs submitted closures on it in FIFO order, and can answer
// whether the caller currently is that goroutine. Real UI embeddings
// substitute their own scheduler via the same two methods (Invoke,
// IsDispatchThread).
package uiloop

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// Loop is a dispatch loop with mailbox semantics.
//
// Lifecycle: New() → Run(ctx) on the designated goroutine → Invoke() from
// anywhere → cancel ctx to stop. A Loop runs once; it is not restartable.
//
// Thread-safety:
//   - Invoke, IsDispatchThread: safe from any goroutine
//   - Run: exactly one caller; its goroutine becomes the dispatch thread
type Loop struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool

	running atomic.Bool
	loopGID atomic.Uint64
}

// New creates an idle loop. Closures may be queued with Invoke before Run
// starts; they execute once it does.
func New() *Loop {
	l := &Loop{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Run executes queued closures on the calling goroutine until ctx is
// cancelled. The calling goroutine is locked to its OS thread for the
// duration, as UI threads are.
//
// Pending closures still queued at cancellation are drained before Run
// returns, so a Clear scheduled just before shutdown still releases its
// resources.
//
// Returns an error only if the loop was already run.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return fmt.Errorf("uiloop: loop already running or finished")
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	l.loopGID.Store(goroutineID())
	defer l.loopGID.Store(0)

	// Wake the mailbox wait when the context ends.
	stop := context.AfterFunc(ctx, func() {
		l.mu.Lock()
		l.closed = true
		l.cond.Broadcast()
		l.mu.Unlock()
	})
	defer stop()

	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.cond.Wait()
		}
		if len(l.queue) == 0 {
			// closed and drained
			l.mu.Unlock()
			return nil
		}
		fn := l.queue[0]
		l.queue = l.queue[1:]
		l.mu.Unlock()

		fn()
	}
}

// Invoke schedules fn to run on the dispatch thread (fire-and-forget).
//
// Non-blocking: the mailbox is unbounded, submitters never wait for the
// loop. Submission order is preserved per submitter. After the loop has
// shut down, Invoke is a no-op: closures are dropped, not queued. Work
// whose side effects must happen during teardown (releasing resources via
// a rerouted clear, for example) has to be submitted before cancellation,
// so that Run's final drain still executes it.
func (l *Loop) Invoke(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.cond.Signal()
	l.mu.Unlock()
}

// IsDispatchThread reports whether the caller is running on the loop's
// goroutine. False whenever the loop is not running.
func (l *Loop) IsDispatchThread() bool {
	id := l.loopGID.Load()
	return id != 0 && id == goroutineID()
}

// goroutineID extracts the current goroutine's id from its stack header
// ("goroutine N [running]:"). The runtime offers no direct accessor; this
// is only used to answer the affinity question, never for scheduling.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	header := strings.TrimPrefix(string(buf[:n]), "goroutine ")
	if i := strings.IndexByte(header, ' '); i > 0 {
		if id, err := strconv.ParseUint(header[:i], 10, 64); err == nil {
			return id
		}
	}
	return 0
}
