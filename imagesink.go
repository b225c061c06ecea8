package imagesink

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/visiona/imagesink/internal/present"
)

// ImageSink bridges a GStreamer appsink to a single-threaded display.
//
// Producer side: appsink callbacks (arbitrary streaming threads, preroll
// and steady-state possibly concurrent) pull samples and publish them into
// a single-entry overwrite slot, disposing whatever they displace. Consumer
// side: the dispatcher runs the refresh that maps the newest sample and
// publishes it as the current Image.
//
// All methods are safe for concurrent use.
type ImageSink struct {
	sink      *app.Sink
	presenter *present.Presenter

	mu  sync.Mutex
	req FormatRequest

	framesReceived atomic.Uint64
}

// New creates an ImageSink with its own appsink element.
//
// Initializes GStreamer (safe to call multiple times). The dispatcher is
// required; it designates the one thread allowed to touch display state.
func New(disp Dispatcher) (*ImageSink, error) {
	if disp == nil {
		return nil, fmt.Errorf("imagesink: dispatcher is required")
	}

	gst.Init(nil)

	sink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("imagesink: failed to create appsink: %w", err)
	}
	return NewWithElement(disp, sink)
}

// NewWithElement creates an ImageSink around an existing appsink element,
// for pipelines that construct their own elements.
//
// The sink is reconfigured: emit-signals is enabled, frame callbacks are
// registered, and the default caps for the host byte order are applied.
func NewWithElement(disp Dispatcher, sink *app.Sink) (*ImageSink, error) {
	if disp == nil {
		return nil, fmt.Errorf("imagesink: dispatcher is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("imagesink: appsink element is required")
	}

	s := &ImageSink{
		sink:      sink,
		presenter: present.New(disp),
	}

	sink.SetProperty("emit-signals", true)
	sink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc:  s.onNewSample,
		NewPrerollFunc: s.onNewPreroll,
	})
	s.pushCaps()

	slog.Info("imagesink: sink created", "caps", s.Request().Caps())
	return s, nil
}

// Element returns the wrapped appsink for pipeline assembly (adding to a
// bin, linking, or handing to playbin's video-sink property).
func (s *ImageSink) Element() *app.Sink {
	return s.sink
}

// Image returns the currently displayed image, or nil when cleared.
func (s *ImageSink) Image() *Image {
	return s.presenter.Image()
}

// OnImage registers a watcher invoked on the dispatch thread after every
// image change, including the nil publication of a clear.
func (s *ImageSink) OnImage(fn func(*Image)) {
	s.presenter.OnImage(fn)
}

// Clear resets the display to its initial empty state, disposing any
// pending and active frames. Callable from any goroutine; off the dispatch
// thread the clear is rerouted onto it, so it only takes effect if the
// dispatcher is still running (or draining). Call Clear before stopping
// the dispatch loop when using it to release frames at teardown.
func (s *ImageSink) Clear() {
	s.presenter.Clear()
}

// RequestFrameSize constrains the negotiated frame size and pushes the new
// caps to the sink. Zero or negative values remove the constraint.
// Chainable.
func (s *ImageSink) RequestFrameSize(width, height int) *ImageSink {
	s.mu.Lock()
	s.req.Width, s.req.Height = width, height
	s.mu.Unlock()
	s.pushCaps()
	return s
}

// RequestFrameRate constrains the negotiated frame rate in Hz and pushes
// the new caps to the sink. Zero or negative removes the constraint.
// Chainable.
func (s *ImageSink) RequestFrameRate(rate float64) *ImageSink {
	s.mu.Lock()
	s.req.Rate = rate
	s.mu.Unlock()
	s.pushCaps()
	return s
}

// Request returns a snapshot of the current format request.
func (s *ImageSink) Request() FormatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.req
}

// Stats returns current bridge statistics. Thread-safe snapshot.
func (s *ImageSink) Stats() SinkStats {
	ps := s.presenter.Stats()
	return SinkStats{
		FramesReceived:  s.framesReceived.Load(),
		FramesDisplaced: ps.FramesDisplaced,
		FramesDisplayed: ps.FramesDisplayed,
		StaleWakeups:    ps.StaleWakeups,
		Clears:          ps.Clears,
	}
}

func (s *ImageSink) pushCaps() {
	capsStr := s.Request().Caps()
	s.sink.SetProperty("caps", gst.NewCapsFromString(capsStr))
	slog.Debug("imagesink: caps request updated", "caps", capsStr)
}

// onNewSample handles steady-state frames from the pipeline's streaming
// thread. Every path returns FlowOK: a frame the bridge cannot use is shed,
// never turned into a pipeline error.
func (s *ImageSink) onNewSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		slog.Warn("imagesink: failed to pull sample from appsink, skipping frame")
		return gst.FlowOK
	}
	s.deliver(sample, "sample")
	return gst.FlowOK
}

// onNewPreroll handles preroll frames (pause/seek), which may arrive on a
// different thread than steady-state samples, concurrently.
func (s *ImageSink) onNewPreroll(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullPreroll()
	if sample == nil {
		slog.Warn("imagesink: failed to pull preroll from appsink, skipping frame")
		return gst.FlowOK
	}
	s.deliver(sample, "preroll")
	return gst.FlowOK
}

func (s *ImageSink) deliver(sample *gst.Sample, kind string) {
	seq := s.framesReceived.Add(1)
	frame := &gstFrame{sample: sample, traceID: uuid.New().String()}
	s.presenter.Submit(frame)

	slog.Debug("imagesink: frame delivered",
		"kind", kind,
		"seq", seq,
		"trace_id", frame.traceID,
	)
}

// Available reports whether a working GStreamer runtime is present. Useful
// as a fail-fast check before assembling pipelines.
func Available() error {
	gst.Init(nil)

	elem, err := gst.NewElement("fakesrc")
	if err != nil {
		return fmt.Errorf("imagesink: GStreamer not available or not properly installed: %w", err)
	}
	elem.SetState(gst.StateNull)

	return nil
}
