package control

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"sync"

	"github.com/hybridgroup/mjpeg"

	"github.com/ErihKoh/video-detecting-and-tracking/internal/video"
)

// DefaultStreamQuality is the JPEG quality of the live view.
const DefaultStreamQuality = 75

// StreamSink publishes annotated frames as an MJPEG stream. It implements
// pipeline.DisplaySink; serve it with Handler.
type StreamSink struct {
	stream  *mjpeg.Stream
	quality int

	mu  sync.Mutex
	img *image.RGBA
	buf bytes.Buffer
}

// NewStreamSink returns a sink encoding at quality (1-100). Out-of-range
// values select DefaultStreamQuality.
func NewStreamSink(quality int) *StreamSink {
	if quality < 1 || quality > 100 {
		quality = DefaultStreamQuality
	}
	return &StreamSink{stream: mjpeg.NewStream(), quality: quality}
}

// Handler serves the multipart stream.
func (s *StreamSink) Handler() http.Handler { return s.stream }

// Show encodes frame and pushes it to connected viewers.
func (s *StreamSink) Show(frame *video.Frame) error {
	if err := frame.Validate(); err != nil {
		return fmt.Errorf("stream: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.img = FrameToRGBA(frame, s.img)
	s.buf.Reset()
	if err := jpeg.Encode(&s.buf, s.img, &jpeg.Options{Quality: s.quality}); err != nil {
		return fmt.Errorf("stream: encode jpeg: %w", err)
	}
	s.stream.UpdateJPEG(bytes.Clone(s.buf.Bytes()))
	return nil
}

// FrameToRGBA converts a BGR (3 channel) or grey (1 channel) frame,
// reusing dst when its bounds match.
func FrameToRGBA(f *video.Frame, dst *image.RGBA) *image.RGBA {
	if dst == nil || dst.Rect.Dx() != f.Width || dst.Rect.Dy() != f.Height {
		dst = image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	}
	n := f.Width * f.Height
	for i := 0; i < n; i++ {
		o := i * 4
		switch f.Channels {
		case 1:
			v := f.Pix[i]
			dst.Pix[o], dst.Pix[o+1], dst.Pix[o+2] = v, v, v
		default:
			p := i * f.Channels
			dst.Pix[o], dst.Pix[o+1], dst.Pix[o+2] = f.Pix[p+2], f.Pix[p+1], f.Pix[p]
		}
		dst.Pix[o+3] = 0xff
	}
	return dst
}
