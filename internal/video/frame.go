package video

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSourceUnavailable is returned when the capture device or file
	// cannot be opened. It is fatal at startup.
	ErrSourceUnavailable = errors.New("video source unavailable")

	// ErrFrameReadFailed is returned when a frame cannot be read. The
	// pipeline treats it as end-of-stream once retries are exhausted.
	ErrFrameReadFailed = errors.New("frame read failed")
)

// Frame is a row-major 8-bit pixel buffer in BGR channel order.
type Frame struct {
	Width     int
	Height    int
	Channels  int
	Pix       []byte
	Timestamp time.Time
	Seq       uint64
}

// NewFrame allocates a zeroed frame.
func NewFrame(width, height, channels int) *Frame {
	return &Frame{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]byte, width*height*channels),
	}
}

// Validate checks that Pix matches the declared dimensions.
func (f *Frame) Validate() error {
	if f == nil {
		return errors.New("nil frame")
	}
	if f.Width <= 0 || f.Height <= 0 || f.Channels <= 0 {
		return fmt.Errorf("invalid frame dimensions %dx%dx%d", f.Width, f.Height, f.Channels)
	}
	if want := f.Width * f.Height * f.Channels; len(f.Pix) != want {
		return fmt.Errorf("frame buffer has %d bytes, want %d", len(f.Pix), want)
	}
	return nil
}

// Clone returns a deep copy. Overlays are drawn on clones so the
// recorded and screenshotted frames stay unannotated.
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	c := *f
	c.Pix = append([]byte(nil), f.Pix...)
	return &c
}

// Geometry describes the properties a source reports for its stream.
type Geometry struct {
	Width  int
	Height int
	FPS    float64
}

// FrameSource yields frames on demand and owns the capture resource.
type FrameSource interface {
	// Read returns the next frame. Failures wrap ErrFrameReadFailed.
	Read(ctx context.Context) (*Frame, error)
	// Geometry reports the stream dimensions and nominal frame rate. FPS
	// may be zero when the source does not know it.
	Geometry() Geometry
	// Close releases the capture resource.
	Close() error
}
