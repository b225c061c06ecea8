package uiloop_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/visiona/imagesink/uiloop"
)

// startLoop runs a loop in the background and returns a stop function that
// cancels it and waits for Run to return.
func startLoop(t *testing.T, l *uiloop.Loop) (stop func()) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := l.Run(ctx); err != nil {
			t.Errorf("Run() failed: %v", err)
		}
	}()

	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("loop did not stop within 2s")
		}
	}
}

// TestInvokePreservesOrder validates FIFO execution per submitter.
func TestInvokePreservesOrder(t *testing.T) {
	l := uiloop.New()
	stop := startLoop(t, l)
	defer stop()

	const n = 200
	got := make([]int, 0, n)
	ran := make(chan struct{})

	for i := 0; i < n; i++ {
		i := i
		l.Invoke(func() { got = append(got, i) })
	}
	l.Invoke(func() { close(ran) })

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("queued closures did not run within 2s")
	}

	if len(got) != n {
		t.Fatalf("ran %d closures, want %d", len(got), n)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("closure %d ran out of order (got value %d)", i, v)
		}
	}
}

// TestIsDispatchThread validates the affinity check on and off the loop.
func TestIsDispatchThread(t *testing.T) {
	l := uiloop.New()

	if l.IsDispatchThread() {
		t.Fatal("IsDispatchThread true before Run")
	}

	stop := startLoop(t, l)
	defer stop()

	onLoop := make(chan bool, 1)
	l.Invoke(func() { onLoop <- l.IsDispatchThread() })

	select {
	case v := <-onLoop:
		if !v {
			t.Fatal("IsDispatchThread false inside a dispatched closure")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("closure did not run within 2s")
	}

	if l.IsDispatchThread() {
		t.Fatal("IsDispatchThread true on the test goroutine")
	}
}

// TestInvokeBeforeRunQueues validates that pre-Run submissions execute once
// the loop starts.
func TestInvokeBeforeRunQueues(t *testing.T) {
	l := uiloop.New()

	ran := make(chan struct{})
	l.Invoke(func() { close(ran) })

	stop := startLoop(t, l)
	defer stop()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("pre-Run closure did not execute")
	}
}

// TestPendingDrainedOnShutdown validates that closures queued before
// cancellation still run before Run returns.
func TestPendingDrainedOnShutdown(t *testing.T) {
	l := uiloop.New()

	var mu sync.Mutex
	ran := 0
	const n = 50
	for i := 0; i < n; i++ {
		l.Invoke(func() {
			mu.Lock()
			ran++
			mu.Unlock()
		})
	}

	// Cancel before the loop ever starts; Run must still drain the queue.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Run(ctx); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if ran != n {
		t.Fatalf("drained %d closures on shutdown, want %d", ran, n)
	}
}

// TestInvokeAfterShutdownNoop validates safe degradation after the loop ends.
func TestInvokeAfterShutdownNoop(t *testing.T) {
	l := uiloop.New()
	stop := startLoop(t, l)
	stop()

	// Must neither block nor panic; the closure is silently dropped.
	l.Invoke(func() { t.Error("closure ran after shutdown") })
	time.Sleep(50 * time.Millisecond)

	if l.IsDispatchThread() {
		t.Fatal("IsDispatchThread true after shutdown")
	}
}

// TestRunTwiceFails validates the one-shot lifecycle.
func TestRunTwiceFails(t *testing.T) {
	l := uiloop.New()
	stop := startLoop(t, l)
	stop()

	if err := l.Run(context.Background()); err == nil {
		t.Fatal("second Run() succeeded, want error")
	}
}
