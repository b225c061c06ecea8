// Package imagesink bridges a GStreamer video pipeline to a single-threaded
// display using an appsink element.
//
// The hard problem it solves is the frame handoff: decoded frames arrive on
// arbitrary pipeline streaming threads, but only one designated thread (a UI
// toolkit's main thread, or the provided uiloop.Loop) may map native buffers
// and mutate the displayed image. The bridge transfers ownership of
// zero-copy native buffers across that boundary with bounded, lossy
// buffering: only the newest frame is ever shown, older undisplayed frames
// are disposed immediately by whichever thread displaced them.
//
// Philosophy: "Drop frames, never queue. Latency > Completeness."
//
// # Quick Start
//
//	loop := uiloop.New()
//
//	sink, err := imagesink.New(loop)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	sink.RequestFrameSize(640, 480).RequestFrameRate(30)
//
//	sink.OnImage(func(img *imagesink.Image) {
//	    if img == nil {
//	        return // display cleared
//	    }
//	    // img.Pix is the mapped native buffer, BGRx/xRGB per host
//	    // endianness. Dispatch thread only; valid until the next image.
//	    draw(img.Width, img.Height, img.Pix)
//	})
//
//	// Assemble a pipeline around sink.Element() and set it playing, then
//	// hand the calling goroutine to the display loop:
//	loop.Run(ctx)
//
// # Delivery Contract
//
//   - At most one frame is pending and at most one is displayed at any
//     instant. A pending frame overwritten before display is disposed by the
//     overwriter, on the producer thread, so memory stays bounded even when
//     the display stalls.
//   - "Frame ready" notifications coalesce: several deliveries may result in
//     a single display update showing the newest frame. This is intended.
//   - The previous frame's mapping is torn down strictly after the new image
//     is published; the image property never points at unmapped memory.
//   - Neither side ever blocks the other: the handoff is one atomic slot
//     swap plus a fire-and-forget dispatch.
//
// # Thread Affinity
//
// Mapping, unmapping and image mutation run exclusively on the dispatcher's
// thread. Violating that (calling the refresh path off-thread) is a
// programming error and panics with a diagnostic; it is not a recoverable
// condition. Clear is the one deliberate exception: called off-thread it
// reroutes itself onto the dispatch thread instead of failing.
//
// # Format Requests
//
// RequestFrameSize and RequestFrameRate compose a caps descriptor from the
// endianness-dependent base layout plus the constraints currently set, and
// push it to the appsink to renegotiate the producer's output format.
// Non-positive values unset a constraint.
//
// # Requirements
//
// Requires the gstreamer1.0 runtime (via tinyzimmer/go-gst). Available()
// provides a fail-fast probe.
package imagesink
