package cv

import (
	"errors"
	"fmt"
	"strings"

	"gocv.io/x/gocv"

	"github.com/ErihKoh/video-detecting-and-tracking/internal/pipeline"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/recording"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/video"
)

// KeyHandler receives the window's keyboard commands.
type KeyHandler interface {
	ToggleRecording() (recording.State, error)
	TakeScreenshot() error
	RequestQuit()
}

// Window is the local preview. Show must be called from the goroutine
// that created it; HighGUI is not thread safe. It implements
// pipeline.DisplaySink.
type Window struct {
	win  *gocv.Window
	keys KeyHandler
}

// NewWindow opens a named preview window. keys may be nil.
func NewWindow(title string, keys KeyHandler) *Window {
	return &Window{win: gocv.NewWindow(title), keys: keys}
}

// SetKeyHandler attaches the handler once the orchestrator exists.
func (w *Window) SetKeyHandler(keys KeyHandler) { w.keys = keys }

// Show draws frame and polls the keyboard once.
func (w *Window) Show(frame *video.Frame) error {
	m, err := ToMat(frame)
	if err != nil {
		return err
	}
	defer m.Close()
	w.win.IMShow(m)
	w.handleKey(w.win.WaitKey(1))
	return nil
}

func (w *Window) handleKey(key int) {
	if key < 0 || w.keys == nil {
		return
	}
	if key&0xff == 27 {
		w.keys.RequestQuit()
		return
	}
	switch strings.ToLower(string(rune(key & 0xff))) {
	case "r":
		if _, err := w.keys.ToggleRecording(); err != nil {
			logf("toggle recording: %v", err)
		}
	case "s":
		if err := w.keys.TakeScreenshot(); err != nil && !errors.Is(err, pipeline.ErrInvalidControlAction) {
			logf("screenshot: %v", err)
		}
	case "q":
		w.keys.RequestQuit()
	}
}

// Close destroys the window.
func (w *Window) Close() error {
	if err := w.win.Close(); err != nil {
		return fmt.Errorf("close window: %w", err)
	}
	return nil
}
