// Package cv binds the pipeline's stage interfaces to OpenCV through gocv:
// capture devices and files, the video writer, still images, the YOLO
// ONNX detector, preprocessing, overlay drawing and the preview window.
//
// Everything here needs the OpenCV shared libraries at build and run time.
package cv

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/ErihKoh/video-detecting-and-tracking/internal/monitoring"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/video"
)

var logf = monitoring.Component("cv")

func matType(channels int) (gocv.MatType, error) {
	switch channels {
	case 1:
		return gocv.MatTypeCV8UC1, nil
	case 3:
		return gocv.MatTypeCV8UC3, nil
	case 4:
		return gocv.MatTypeCV8UC4, nil
	}
	return 0, fmt.Errorf("unsupported channel count %d", channels)
}

// ToMat copies f into a new Mat. The caller closes it.
func ToMat(f *video.Frame) (gocv.Mat, error) {
	if err := f.Validate(); err != nil {
		return gocv.Mat{}, err
	}
	mt, err := matType(f.Channels)
	if err != nil {
		return gocv.Mat{}, err
	}
	m, err := gocv.NewMatFromBytes(f.Height, f.Width, mt, f.Pix)
	if err != nil {
		return gocv.Mat{}, err
	}
	// NewMatFromBytes aliases Pix; detach so the frame can be reused.
	c := m.Clone()
	m.Close()
	return c, nil
}

// FromMat copies an 8-bit Mat into a frame.
func FromMat(m gocv.Mat) (*video.Frame, error) {
	if m.Empty() {
		return nil, fmt.Errorf("%w: empty mat", video.ErrFrameReadFailed)
	}
	f := &video.Frame{
		Width:    m.Cols(),
		Height:   m.Rows(),
		Channels: m.Channels(),
		Pix:      m.ToBytes(),
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// copyInto writes m's pixels back into f. Dimensions must match.
func copyInto(f *video.Frame, m gocv.Mat) error {
	if m.Cols() != f.Width || m.Rows() != f.Height || m.Channels() != f.Channels {
		return fmt.Errorf("mat %dx%dx%d does not match frame %dx%dx%d",
			m.Cols(), m.Rows(), m.Channels(), f.Width, f.Height, f.Channels)
	}
	copy(f.Pix, m.ToBytes())
	return nil
}
