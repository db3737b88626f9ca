// Package recording owns the video-writer lifecycle: a two-state machine
// (Idle, Recording) that opens a writer on start, feeds it unannotated
// frames while recording and flushes it on stop or teardown.
package recording

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ErihKoh/video-detecting-and-tracking/internal/fsutil"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/timeutil"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/video"
)

var (
	// ErrWriterInitFailed is returned when the video sink cannot be opened.
	// The controller stays Idle.
	ErrWriterInitFailed = errors.New("video writer init failed")

	// ErrInvalidControlAction is returned for a start while recording or a
	// stop while idle. State is unchanged.
	ErrInvalidControlAction = errors.New("invalid control action")
)

// State is the controller state.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
)

// VideoWriter accepts frames for one recording file.
type VideoWriter interface {
	Write(frame *video.Frame) error
	// Close flushes and releases the file.
	Close() error
}

// VideoSink opens writers.
type VideoSink interface {
	Open(path string, width, height int, fps float64) (VideoWriter, error)
}

// Session describes one recording.
type Session struct {
	ID        uuid.UUID
	Path      string
	StartedAt time.Time
	StoppedAt time.Time
	Width     int
	Height    int
	FPS       float64
	Frames    uint64
	// WriteErrors counts frames the writer rejected.
	WriteErrors uint64
}

// Duration returns the session length, measured to StoppedAt when set.
func (s Session) Duration() time.Duration {
	if s.StoppedAt.IsZero() {
		return 0
	}
	return s.StoppedAt.Sub(s.StartedAt)
}

// SessionObserver is told about session boundaries. Calls happen outside
// the controller lock.
type SessionObserver interface {
	SessionStarted(s Session)
	SessionStopped(s Session)
}

// Config holds recording parameters.
type Config struct {
	Container  string  // file extension, e.g. "mp4"
	DefaultFPS float64 // used when the source reports no rate
}

// Controller is the recording state machine. All methods are safe for
// concurrent use.
type Controller struct {
	mu       sync.Mutex
	cfg      Config
	layout   fsutil.Layout
	sink     VideoSink
	clock    timeutil.Clock
	geometry video.Geometry
	observer SessionObserver

	state   State
	writer  VideoWriter
	session *Session
	closed  bool
}

// NewController creates an idle controller writing into layout.MoviesDir().
// Width, height and fps for new files come from geom.
func NewController(cfg Config, layout fsutil.Layout, sink VideoSink, geom video.Geometry, clock timeutil.Clock) *Controller {
	if cfg.Container == "" {
		cfg.Container = "mp4"
	}
	if cfg.DefaultFPS <= 0 {
		cfg.DefaultFPS = 30
	}
	return &Controller{
		cfg:      cfg,
		layout:   layout,
		sink:     sink,
		clock:    clock,
		geometry: geom,
		state:    StateIdle,
	}
}

// SetObserver registers o for session notifications.
func (c *Controller) SetObserver(o SessionObserver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = o
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Current returns a copy of the active session.
func (c *Controller) Current() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

// Elapsed returns the time since the active session started.
func (c *Controller) Elapsed() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return 0, false
	}
	return c.clock.Since(c.session.StartedAt), true
}

// Start transitions Idle to Recording and opens a new file.
func (c *Controller) Start() (Session, error) {
	c.mu.Lock()
	s, err := c.startLocked()
	obs := c.observer
	c.mu.Unlock()

	if err == nil && obs != nil {
		obs.SessionStarted(s)
	}
	return s, err
}

func (c *Controller) startLocked() (Session, error) {
	if c.closed {
		return Session{}, fmt.Errorf("%w: recorder closed", ErrInvalidControlAction)
	}
	if c.state == StateRecording {
		return Session{}, fmt.Errorf("%w: already recording", ErrInvalidControlAction)
	}

	now := c.clock.Now()
	fps := c.geometry.FPS
	if fps <= 0 {
		fps = c.cfg.DefaultFPS
	}
	path := fsutil.UniquePath(c.layout.FS, c.layout.MoviesDir(), "output", now, c.cfg.Container)

	w, err := c.sink.Open(path, c.geometry.Width, c.geometry.Height, fps)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %s: %v", ErrWriterInitFailed, path, err)
	}

	c.writer = w
	c.session = &Session{
		ID:        uuid.New(),
		Path:      path,
		StartedAt: now,
		Width:     c.geometry.Width,
		Height:    c.geometry.Height,
		FPS:       fps,
	}
	c.state = StateRecording
	return *c.session, nil
}

// Stop transitions Recording to Idle, closing the file. The returned
// session is final.
func (c *Controller) Stop() (Session, error) {
	c.mu.Lock()
	if c.state != StateRecording {
		c.mu.Unlock()
		return Session{}, fmt.Errorf("%w: not recording", ErrInvalidControlAction)
	}
	s, err := c.stopLocked()
	obs := c.observer
	c.mu.Unlock()

	if obs != nil {
		obs.SessionStopped(s)
	}
	return s, err
}

// stopLocked closes the writer and clears the session. The state always
// returns to Idle, even when Close fails.
func (c *Controller) stopLocked() (Session, error) {
	err := c.writer.Close()
	c.writer = nil
	c.session.StoppedAt = c.clock.Now()
	s := *c.session
	c.session = nil
	c.state = StateIdle
	if err != nil {
		return s, fmt.Errorf("failed to close %s: %w", s.Path, err)
	}
	return s, nil
}

// Toggle starts when Idle and stops when Recording. The state is read
// and changed under one lock, so concurrent toggles alternate. It returns
// the session that was started or stopped and the state after the call.
func (c *Controller) Toggle() (Session, State, error) {
	c.mu.Lock()
	var (
		s                Session
		err              error
		started, stopped bool
	)
	if c.state == StateRecording {
		s, err = c.stopLocked()
		stopped = true
	} else {
		s, err = c.startLocked()
		started = err == nil
	}
	state := c.state
	obs := c.observer
	c.mu.Unlock()

	if obs != nil {
		switch {
		case started:
			obs.SessionStarted(s)
		case stopped:
			obs.SessionStopped(s)
		}
	}
	return s, state, err
}

// WriteFrame appends f to the active file. It is a no-op when Idle.
func (c *Controller) WriteFrame(f *video.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRecording {
		return nil
	}
	if err := c.writer.Write(f); err != nil {
		c.session.WriteErrors++
		return fmt.Errorf("failed to write frame %d: %w", f.Seq, err)
	}
	c.session.Frames++
	return nil
}

// Close stops any active session and rejects further starts. It is
// idempotent.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.state != StateRecording {
		c.mu.Unlock()
		return nil
	}
	s, err := c.stopLocked()
	obs := c.observer
	c.mu.Unlock()

	if obs != nil {
		obs.SessionStopped(s)
	}
	return err
}
