// Package present owns the display side of the frame bridge: it consumes the
// pending slot on the dispatch thread, maps the winning frame's native
// memory, publishes the resulting image, and releases the previous frame's
// resources exactly once.
//
// Thread model:
//   - Submit: any producer goroutine, non-blocking
//   - Refresh, the rerouted body of Clear: dispatch thread only, enforced
//   - Image, OnImage, Stats: any goroutine
package present

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/visiona/imagesink/internal/frameslot"
)

// Frame is an opaque handle to one decoded video sample. Implementations
// wrap a native reference-counted sample; Dispose releases that reference
// and must be called exactly once per frame.
type Frame interface {
	// Bounds reads width and height from the frame's format descriptor.
	Bounds() (width, height int, err error)

	// Map maps the frame's native memory read-only. The returned buffer is
	// valid until its Unmap and must not outlive the frame.
	Map() (PixelBuffer, error)

	// Dispose releases the underlying sample. Exactly once.
	Dispose()
}

// PixelBuffer is a live read-only mapping of a Frame's native memory.
// Single-owner: the Presenter holds it while the frame is displayed and
// unmaps it exactly once, on the dispatch thread.
type PixelBuffer interface {
	Bytes() []byte
	Unmap()
}

// Dispatcher marshals work onto the single display thread. uiloop.Loop
// satisfies it; UI embeddings provide their own.
type Dispatcher interface {
	// Invoke schedules fn on the dispatch thread, fire-and-forget,
	// preserving submission order per submitter.
	Invoke(fn func())

	// IsDispatchThread reports whether the caller runs on that thread.
	IsDispatchThread() bool
}

// Image is the published view over the currently mapped buffer.
//
// Pix aliases native memory zero-copy: it is valid only until the next
// image (or a clear) is published, and must only be read from the dispatch
// thread. Seq increases by one per displayed frame.
type Image struct {
	Width  int
	Height int
	Pix    []byte
	Seq    uint64
}

// Stats is a snapshot of presenter counters.
type Stats struct {
	// FramesDisplaced counts pending frames overwritten or cleared before
	// ever being displayed. High values just mean the producer outpaces
	// the display, which is the intended shedding behavior.
	FramesDisplaced uint64

	// FramesDisplayed counts images published to the property.
	FramesDisplayed uint64

	// StaleWakeups counts refresh notifications that found the slot empty
	// because an earlier refresh already consumed the frame. Expected under
	// bursty delivery; coalescing is correct.
	StaleWakeups uint64

	// Clears counts completed Clear operations.
	Clears uint64
}

// Presenter transfers frames from producer threads to the display.
//
// The pending slot is the only structure touched by multiple goroutines;
// active frame, active mapping and the image property belong to the
// dispatch thread alone.
type Presenter struct {
	disp    Dispatcher
	pending frameslot.Slot[Frame]

	// Dispatch-thread state. Only Refresh and clearNow touch these.
	active    Frame
	activeBuf PixelBuffer

	mu       sync.Mutex
	image    *Image
	watchers []func(*Image)

	framesDisplaced atomic.Uint64
	framesDisplayed atomic.Uint64
	staleWakeups    atomic.Uint64
	clears          atomic.Uint64
}

// New creates a Presenter bound to the given dispatcher. The dispatcher
// must not be nil; the caller validates.
func New(disp Dispatcher) *Presenter {
	return &Presenter{disp: disp}
}

// Submit hands a frame over from a producer thread.
//
// Non-blocking. If an unconsumed frame is displaced it is disposed here, on
// the calling goroutine, so a stalled display never accumulates frames.
// A refresh is then scheduled onto the dispatch thread; multiple pending
// refreshes coalesce against the single slot.
func (p *Presenter) Submit(f Frame) {
	if prev, displaced := p.pending.Publish(f); displaced {
		prev.Dispose()
		p.framesDisplaced.Add(1)
		slog.Debug("imagesink: displaced undisplayed frame")
	}
	p.disp.Invoke(p.Refresh)
}

// Refresh consumes the pending slot and publishes the frame it finds.
//
// Dispatch thread only; calling it anywhere else is a programming error and
// panics. An empty slot is a no-op: a previous refresh already showed the
// newest frame.
//
// Release ordering: the previous mapping is unmapped, and the previous
// frame disposed, strictly after the new image is published, so the image
// property never points at unmapped memory.
func (p *Presenter) Refresh() {
	p.checkDispatchThread("refresh the displayed image")

	f, ok := p.pending.Take()
	if !ok {
		p.staleWakeups.Add(1)
		return
	}

	width, height, err := f.Bounds()
	if err != nil {
		f.Dispose()
		slog.Warn("imagesink: dropping frame with unusable format", "error", err)
		return
	}

	buf, err := f.Map()
	if err != nil {
		f.Dispose()
		slog.Warn("imagesink: dropping unmappable frame", "error", err)
		return
	}

	oldFrame, oldBuf := p.active, p.activeBuf
	p.active, p.activeBuf = f, buf

	seq := p.framesDisplayed.Add(1)
	p.setImage(&Image{Width: width, Height: height, Pix: buf.Bytes(), Seq: seq})

	if oldBuf != nil {
		oldBuf.Unmap()
	}
	if oldFrame != nil {
		oldFrame.Dispose()
	}

	slog.Debug("imagesink: image updated", "seq", seq, "width", width, "height", height)
}

// Clear resets the display to its initial empty state.
//
// Callable from any goroutine: off the dispatch thread the clear is
// rerouted onto it, never executed inline. It drains the pending slot,
// publishes an absent image, then releases the active mapping and frame.
func (p *Presenter) Clear() {
	if !p.disp.IsDispatchThread() {
		p.disp.Invoke(p.clearNow)
		return
	}
	p.clearNow()
}

func (p *Presenter) clearNow() {
	p.checkDispatchThread("clear the displayed image")

	if f, ok := p.pending.Take(); ok {
		f.Dispose()
		p.framesDisplaced.Add(1)
	}

	p.setImage(nil)

	if p.activeBuf != nil {
		p.activeBuf.Unmap()
		p.activeBuf = nil
	}
	if p.active != nil {
		p.active.Dispose()
		p.active = nil
	}

	p.clears.Add(1)
	slog.Debug("imagesink: display cleared")
}

// Image returns the currently published image, or nil when cleared. The
// returned value's Pix must only be read on the dispatch thread.
func (p *Presenter) Image() *Image {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.image
}

// OnImage registers a watcher invoked on the dispatch thread after every
// image mutation, including the nil publication of a clear. Watchers cannot
// be removed; register once per consumer.
func (p *Presenter) OnImage(fn func(*Image)) {
	if fn == nil {
		return
	}
	p.mu.Lock()
	p.watchers = append(p.watchers, fn)
	p.mu.Unlock()
}

// Stats returns a snapshot of the presenter's counters.
func (p *Presenter) Stats() Stats {
	return Stats{
		FramesDisplaced: p.framesDisplaced.Load(),
		FramesDisplayed: p.framesDisplayed.Load(),
		StaleWakeups:    p.staleWakeups.Load(),
		Clears:          p.clears.Load(),
	}
}

// setImage publishes img and notifies watchers. Dispatch thread only, via
// its callers; the mutex orders the write against off-thread readers.
func (p *Presenter) setImage(img *Image) {
	p.mu.Lock()
	p.image = img
	watchers := make([]func(*Image), len(p.watchers))
	copy(watchers, p.watchers)
	p.mu.Unlock()

	for _, fn := range watchers {
		fn(img)
	}
}

func (p *Presenter) checkDispatchThread(op string) {
	if !p.disp.IsDispatchThread() {
		panic(fmt.Sprintf("imagesink: attempt to %s off the dispatch thread; display state is single-threaded", op))
	}
}
