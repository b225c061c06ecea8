package imagesink

import (
	"fmt"

	"github.com/tinyzimmer/go-gst/gst"

	"github.com/visiona/imagesink/internal/present"
)

// gstFrame adapts a pulled *gst.Sample to the present.Frame contract. The
// sample's reference is released exactly once, in Dispose.
type gstFrame struct {
	sample  *gst.Sample
	traceID string
}

func (f *gstFrame) Bounds() (int, int, error) {
	caps := f.sample.GetCaps()
	if caps == nil || caps.GetSize() == 0 {
		return 0, 0, fmt.Errorf("imagesink: sample carries no caps")
	}
	st := caps.GetStructureAt(0)
	if st == nil {
		return 0, 0, fmt.Errorf("imagesink: sample caps have no structure")
	}

	width, err := structureInt(st, "width")
	if err != nil {
		return 0, 0, err
	}
	height, err := structureInt(st, "height")
	if err != nil {
		return 0, 0, err
	}
	return width, height, nil
}

func (f *gstFrame) Map() (present.PixelBuffer, error) {
	buffer := f.sample.GetBuffer()
	if buffer == nil {
		return nil, fmt.Errorf("imagesink: sample carries no buffer")
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		return nil, fmt.Errorf("imagesink: mapped an empty buffer")
	}

	return &gstPixelBuffer{buffer: buffer, data: data}, nil
}

func (f *gstFrame) Dispose() {
	f.sample.Unref()
}

// gstPixelBuffer holds a live read mapping of a sample's buffer. Unmap is
// called exactly once by the presenter, on the dispatch thread.
type gstPixelBuffer struct {
	buffer *gst.Buffer
	data   []byte
}

func (b *gstPixelBuffer) Bytes() []byte { return b.data }

func (b *gstPixelBuffer) Unmap() { b.buffer.Unmap() }

func structureInt(st *gst.Structure, field string) (int, error) {
	v, err := st.GetValue(field)
	if err != nil {
		return 0, fmt.Errorf("imagesink: caps field %q missing: %w", field, err)
	}
	n, ok := v.(int)
	if !ok {
		return 0, fmt.Errorf("imagesink: caps field %q is %T, expected int", field, v)
	}
	return n, nil
}
