package recording

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ErihKoh/video-detecting-and-tracking/internal/fsutil"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/timeutil"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/video"
)

type fakeWriter struct {
	mu       sync.Mutex
	frames   int
	closed   bool
	writeErr error
	closeErr error
}

func (w *fakeWriter) Write(*video.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("write after close")
	}
	if w.writeErr != nil {
		return w.writeErr
	}
	w.frames++
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return w.closeErr
}

type openCall struct {
	path          string
	width, height int
	fps           float64
}

type fakeSink struct {
	fs      *fsutil.MemoryFileSystem
	openErr error
	opens   []openCall
	writers []*fakeWriter
}

func (s *fakeSink) Open(path string, w, h int, fps float64) (VideoWriter, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	s.fs.Touch(path)
	s.opens = append(s.opens, openCall{path, w, h, fps})
	fw := &fakeWriter{}
	s.writers = append(s.writers, fw)
	return fw, nil
}

func (s *fakeSink) openWriters() int {
	n := 0
	for _, w := range s.writers {
		if !w.closed {
			n++
		}
	}
	return n
}

type recordingObserver struct {
	mu               sync.Mutex
	started, stopped []Session
}

func (o *recordingObserver) SessionStarted(s Session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, s)
}

func (o *recordingObserver) SessionStopped(s Session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopped = append(o.stopped, s)
}

var epoch = time.Date(2026, 10, 19, 14, 30, 5, 0, time.UTC)

func newTestController(t *testing.T, geom video.Geometry) (*Controller, *fakeSink, *timeutil.MockClock) {
	t.Helper()
	mfs := fsutil.NewMemoryFileSystem()
	layout := fsutil.Layout{Root: "/out", FS: mfs}
	require.NoError(t, layout.Ensure())
	sink := &fakeSink{fs: mfs}
	clock := timeutil.NewMockClock(epoch)
	c := NewController(Config{Container: "mp4", DefaultFPS: 30}, layout, sink, geom, clock)
	return c, sink, clock
}

func TestController_StartStop(t *testing.T) {
	t.Parallel()

	c, sink, clock := newTestController(t, video.Geometry{Width: 640, Height: 480, FPS: 25})
	obs := &recordingObserver{}
	c.SetObserver(obs)

	assert.Equal(t, StateIdle, c.State())

	s, err := c.Start()
	require.NoError(t, err)
	assert.Equal(t, StateRecording, c.State())
	assert.Equal(t, "/out/movies/output_2026-10-19_14-30-05.mp4", s.Path)
	assert.Equal(t, epoch, s.StartedAt)
	require.Len(t, sink.opens, 1)
	assert.Equal(t, openCall{s.Path, 640, 480, 25}, sink.opens[0])

	for i := 0; i < 4; i++ {
		require.NoError(t, c.WriteFrame(video.NewFrame(640, 480, 3)))
	}
	clock.Advance(3 * time.Second)
	elapsed, ok := c.Elapsed()
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, elapsed)

	done, err := c.Stop()
	require.NoError(t, err)
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, uint64(4), done.Frames)
	assert.Equal(t, 3*time.Second, done.Duration())
	assert.Equal(t, s.ID, done.ID)
	assert.Zero(t, sink.openWriters(), "no writer left open")
	assert.Equal(t, 4, sink.writers[0].frames)

	_, ok = c.Current()
	assert.False(t, ok)
	require.Len(t, obs.started, 1)
	require.Len(t, obs.stopped, 1)
	assert.Equal(t, uint64(4), obs.stopped[0].Frames)
}

func TestController_InvalidActions(t *testing.T) {
	t.Parallel()

	c, sink, _ := newTestController(t, video.Geometry{Width: 320, Height: 240, FPS: 30})

	_, err := c.Stop()
	assert.ErrorIs(t, err, ErrInvalidControlAction)
	assert.Equal(t, StateIdle, c.State())

	_, err = c.Start()
	require.NoError(t, err)
	_, err = c.Start()
	assert.ErrorIs(t, err, ErrInvalidControlAction)
	assert.Len(t, sink.opens, 1, "no double open")
	assert.Equal(t, StateRecording, c.State())
}

func TestController_WriterInitFailure(t *testing.T) {
	t.Parallel()

	c, sink, _ := newTestController(t, video.Geometry{Width: 320, Height: 240})
	sink.openErr = errors.New("codec avc1 not available")

	_, err := c.Start()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWriterInitFailed)
	assert.Contains(t, err.Error(), "codec avc1")
	assert.Equal(t, StateIdle, c.State())
	assert.NoError(t, c.WriteFrame(video.NewFrame(320, 240, 3)), "idle write is a no-op")
}

func TestController_DefaultFPSAndCollision(t *testing.T) {
	t.Parallel()

	c, sink, _ := newTestController(t, video.Geometry{Width: 320, Height: 240, FPS: 0})

	_, err := c.Start()
	require.NoError(t, err)
	_, err = c.Stop()
	require.NoError(t, err)

	// Same second: the second file gets a suffix.
	_, err = c.Start()
	require.NoError(t, err)

	require.Len(t, sink.opens, 2)
	assert.Equal(t, 30.0, sink.opens[0].fps)
	assert.Equal(t, "/out/movies/output_2026-10-19_14-30-05.mp4", sink.opens[0].path)
	assert.Equal(t, "/out/movies/output_2026-10-19_14-30-05_1.mp4", sink.opens[1].path)
}

func TestController_Toggle(t *testing.T) {
	t.Parallel()

	c, sink, _ := newTestController(t, video.Geometry{Width: 2, Height: 2, FPS: 30})
	obs := &recordingObserver{}
	c.SetObserver(obs)

	started, st, err := c.Toggle()
	require.NoError(t, err)
	assert.Equal(t, StateRecording, st)
	assert.Equal(t, "/out/movies/output_2026-10-19_14-30-05.mp4", started.Path)

	stopped, st, err := c.Toggle()
	require.NoError(t, err)
	assert.Equal(t, StateIdle, st)
	assert.Equal(t, started.ID, stopped.ID)
	assert.False(t, stopped.StoppedAt.IsZero())
	assert.Zero(t, sink.openWriters())
	assert.Len(t, obs.started, 1)
	assert.Len(t, obs.stopped, 1)

	sink.openErr = errors.New("no codec")
	_, st, err = c.Toggle()
	assert.ErrorIs(t, err, ErrWriterInitFailed)
	assert.Equal(t, StateIdle, st)
	assert.Len(t, obs.started, 1)
}

func TestController_ConcurrentTogglesAlternate(t *testing.T) {
	t.Parallel()

	c, sink, _ := newTestController(t, video.Geometry{Width: 2, Height: 2, FPS: 30})
	obs := &recordingObserver{}
	c.SetObserver(obs)

	const toggles = 64
	errs := make(chan error, toggles)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < toggles; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, _, err := c.Toggle()
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, StateIdle, c.State())
	assert.Len(t, sink.opens, toggles/2)
	assert.Zero(t, sink.openWriters())
	assert.Len(t, obs.started, toggles/2)
	assert.Len(t, obs.stopped, toggles/2)
}

func TestController_WriteAndCloseErrors(t *testing.T) {
	t.Parallel()

	c, sink, _ := newTestController(t, video.Geometry{Width: 2, Height: 2, FPS: 30})
	_, err := c.Start()
	require.NoError(t, err)

	sink.writers[0].writeErr = errors.New("disk full")
	assert.Error(t, c.WriteFrame(video.NewFrame(2, 2, 3)))
	cur, _ := c.Current()
	assert.Equal(t, uint64(1), cur.WriteErrors)

	sink.writers[0].closeErr = errors.New("flush failed")
	_, err = c.Stop()
	assert.Error(t, err)
	assert.Equal(t, StateIdle, c.State(), "state returns to idle even when close fails")
}

func TestController_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	c, sink, _ := newTestController(t, video.Geometry{Width: 2, Height: 2, FPS: 30})
	obs := &recordingObserver{}
	c.SetObserver(obs)
	_, err := c.Start()
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Zero(t, sink.openWriters())
	assert.Len(t, obs.stopped, 1)

	_, err = c.Start()
	assert.ErrorIs(t, err, ErrInvalidControlAction)
}

func TestController_ConcurrentControl(t *testing.T) {
	t.Parallel()

	c, sink, _ := newTestController(t, video.Geometry{Width: 2, Height: 2, FPS: 30})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _, _ = c.Toggle()
		}()
		go func() {
			defer wg.Done()
			_ = c.WriteFrame(video.NewFrame(2, 2, 3))
		}()
	}
	wg.Wait()
	require.NoError(t, c.Close())
	assert.Zero(t, sink.openWriters())
}
