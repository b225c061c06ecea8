package imagesink

import "github.com/visiona/imagesink/internal/present"

// Image is re-exported from the internal present package to avoid import
// cycles. See internal/present for full documentation.
//
// An Image's Pix slice aliases the mapped native buffer zero-copy: it is
// valid only until the next image (or a clear) is published, and must only
// be read on the dispatch thread.
type Image = present.Image

// Dispatcher is the single-threaded scheduler the bridge marshals display
// work onto. uiloop.Loop implements it; UI embeddings substitute their
// toolkit's main-thread scheduler.
type Dispatcher = present.Dispatcher

// SinkStats contains current bridge statistics.
type SinkStats struct {
	// FramesReceived is the total number of samples pulled from the
	// pipeline (steady-state and preroll).
	FramesReceived uint64
	// FramesDisplaced is the number of frames shed before display because a
	// newer frame replaced them, or a clear drained them. Non-zero values
	// are normal whenever the producer outpaces the display.
	FramesDisplaced uint64
	// FramesDisplayed is the number of images published to the display
	// property.
	FramesDisplayed uint64
	// StaleWakeups counts display notifications that found no pending
	// frame because an earlier notification already consumed it.
	StaleWakeups uint64
	// Clears is the number of completed Clear operations.
	Clears uint64
}
