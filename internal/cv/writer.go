package cv

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ErihKoh/video-detecting-and-tracking/internal/recording"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/video"
)

// VideoSink opens OpenCV video writers with a fixed FourCC codec. It
// implements recording.VideoSink.
type VideoSink struct {
	Codec string // e.g. "avc1", "mp4v", "MJPG"
}

// Open implements recording.VideoSink.
func (s VideoSink) Open(path string, width, height int, fps float64) (recording.VideoWriter, error) {
	codec := s.Codec
	if codec == "" {
		codec = "avc1"
	}
	vw, err := gocv.VideoWriterFile(path, codec, fps, width, height, true)
	if err != nil {
		return nil, err
	}
	if !vw.IsOpened() {
		vw.Close()
		return nil, fmt.Errorf("codec %s could not open %s", codec, path)
	}
	return &videoWriter{vw: vw, width: width, height: height}, nil
}

type videoWriter struct {
	mu     sync.Mutex
	vw     *gocv.VideoWriter
	width  int
	height int
	closed bool
}

func (w *videoWriter) Write(f *video.Frame) error {
	if f.Width != w.width || f.Height != w.height {
		return fmt.Errorf("frame %dx%d does not match writer %dx%d", f.Width, f.Height, w.width, w.height)
	}
	m, err := ToMat(f)
	if err != nil {
		return err
	}
	defer m.Close()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("video writer closed")
	}
	return w.vw.Write(m)
}

func (w *videoWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.vw.Close()
}

// ImageWriter saves still frames; the format follows the path extension.
// It implements pipeline.ScreenshotSink.
type ImageWriter struct{}

// Save writes frame to path, creating the directory if needed.
func (ImageWriter) Save(frame *video.Frame, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	m, err := ToMat(frame)
	if err != nil {
		return err
	}
	defer m.Close()
	if !gocv.IMWrite(path, m) {
		return fmt.Errorf("imwrite %s failed", path)
	}
	return nil
}
