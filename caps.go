package imagesink

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Base pixel layouts. The display side reads pixels as 32-bit BGRA words,
// so the raw byte order the pipeline must deliver depends on host
// endianness.
const (
	capsLittleEndian = "video/x-raw, format=BGRx"
	capsBigEndian    = "video/x-raw, format=xRGB"
)

// DefaultCaps returns the base format descriptor for the host byte order.
func DefaultCaps() string {
	if nativeLittleEndian() {
		return capsLittleEndian
	}
	return capsBigEndian
}

func nativeLittleEndian() bool {
	return binary.NativeEndian.Uint16([]byte{0x01, 0x00}) == 0x0001
}

// FormatRequest holds the optional constraints appended to the base format
// descriptor when renegotiating the sink's caps. A zero or negative field
// means "no constraint".
type FormatRequest struct {
	Width  int
	Height int
	Rate   float64
}

// Caps builds the format descriptor string: the base layout plus the set
// constraints, in the fixed order width, height, framerate.
//
// Fractional rates below 1 become 1/D fractions (0.5 → "framerate=1/2"),
// whole rates become N/1.
func (r FormatRequest) Caps() string {
	var b strings.Builder
	b.WriteString(DefaultCaps())
	if r.Width > 0 {
		fmt.Fprintf(&b, ",width=%d", r.Width)
	}
	if r.Height > 0 {
		fmt.Fprintf(&b, ",height=%d", r.Height)
	}
	if r.Rate > 0 {
		num, den := rateFraction(r.Rate)
		fmt.Fprintf(&b, ",framerate=%d/%d", num, den)
	}
	return b.String()
}

// rateFraction converts a rate in Hz to a GStreamer framerate fraction.
// Callers guarantee rate > 0.
func rateFraction(rate float64) (num, den int) {
	if rate < 1.0 {
		return 1, int(1.0 / rate)
	}
	return int(rate), 1
}
