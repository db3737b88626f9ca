// Package detect turns raw detector output into the detections the
// tracker consumes: the Detector capability, the confidence/class filter
// and the runtime-adjustable filter settings.
package detect

import (
	"context"
	"fmt"

	"github.com/ErihKoh/video-detecting-and-tracking/internal/video"
)

// Detection is one object hypothesis for a single frame.
type Detection struct {
	Box        video.Box
	Confidence float64
	ClassID    int
}

func (d Detection) String() string {
	return fmt.Sprintf("class=%d conf=%.2f box=(%.0f,%.0f %.0fx%.0f)",
		d.ClassID, d.Confidence, d.Box.X, d.Box.Y, d.Box.W, d.Box.H)
}

// Detector produces detections for a frame. An empty result is valid.
type Detector interface {
	Detect(ctx context.Context, frame *video.Frame) ([]Detection, error)
}

// CoordinateSpacer is implemented by detectors whose boxes are expressed
// in a coordinate space other than the source frame (for example the
// network input size). The pipeline rescales such boxes before filtering.
type CoordinateSpacer interface {
	CoordinateSpace() (width, height int)
}

// Rescale maps boxes from a fromW x fromH space into toW x toH. Detections
// are returned unchanged when either space is degenerate or both match.
func Rescale(dets []Detection, fromW, fromH, toW, toH int) []Detection {
	if fromW <= 0 || fromH <= 0 || toW <= 0 || toH <= 0 || (fromW == toW && fromH == toH) {
		return dets
	}
	sx := float64(toW) / float64(fromW)
	sy := float64(toH) / float64(fromH)
	out := make([]Detection, len(dets))
	for i, d := range dets {
		d.Box = d.Box.Scale(sx, sy)
		out[i] = d
	}
	return out
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(ctx context.Context, frame *video.Frame) ([]Detection, error)

func (f DetectorFunc) Detect(ctx context.Context, frame *video.Frame) ([]Detection, error) {
	return f(ctx, frame)
}
