package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ErihKoh/video-detecting-and-tracking/internal/activitylog"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/detect"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/fsutil"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/hud"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/recording"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/timeutil"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/tracks"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/video"
)

var (
	// ErrInvalidControlAction is returned by control operations that do not
	// apply in the current state or carry an invalid argument.
	ErrInvalidControlAction = recording.ErrInvalidControlAction

	// ErrEndOfStream is returned by Cycle once frame reads keep failing. It
	// wraps the last read error.
	ErrEndOfStream = errors.New("end of stream")

	// ErrDetectionFailed aborts a single cycle.
	ErrDetectionFailed = errors.New("detection failed")

	errAlreadyRunning = errors.New("pipeline already running")
)

// Notification messages.
const (
	MsgScreenshotSaved  = "Screenshot saved"
	MsgScreenshotFailed = "Screenshot failed"
	MsgRecordingStarted = "Recording started"
	MsgRecordingStopped = "Recording stopped"
	MsgRecordingFailed  = "Recording failed"
)

// Config holds the orchestrator's collaborators. Source, Detector,
// Settings, Registry and Recorder are required; the rest are optional.
type Config struct {
	Source       video.FrameSource
	Detector     detect.Detector
	Preprocessor Preprocessor
	Settings     *detect.Settings
	Registry     *tracks.Registry
	Recorder     *recording.Controller
	Annotator    Annotator
	Display      DisplaySink
	Screenshots  ScreenshotSink
	BatchSinks   []BatchSink
	Observers    []CycleObserver

	Layout           fsutil.Layout
	ScreenshotFormat string // file extension, default "png"
	ClassNames       detect.ClassNames

	Clock              timeutil.Clock
	CycleInterval      time.Duration // default 30ms
	ReadRetries        int           // extra read attempts before end-of-stream
	NotificationWindow time.Duration // default 2s
}

// CycleResult summarises one processed frame.
type CycleResult struct {
	Seq          uint64
	Timestamp    time.Time
	Detections   int // after filtering
	Tracks       []tracks.Track
	FPS          float64
	Notification string
	Recording    bool
	Screenshot   string // path written this cycle, if any
	Batch        []activitylog.Entry
	Annotated    *video.Frame
}

// Status is a point-in-time view for the control surface.
type Status struct {
	Recording        recording.State `json:"recording"`
	RecordingPath    string          `json:"recording_path,omitempty"`
	RecordingElapsed time.Duration   `json:"recording_elapsed_ns"`
	Threshold        float64         `json:"confidence_threshold"`
	FPS              float64         `json:"fps"`
	Cycles           uint64          `json:"cycles"`
	ConfirmedTracks  int             `json:"confirmed_tracks"`
	TentativeTracks  int             `json:"tentative_tracks"`
	TracksCreated    int             `json:"tracks_created"`
	TracksConfirmed  int             `json:"tracks_confirmed"`
	Notification     string          `json:"notification,omitempty"`
	Running          bool            `json:"running"`
}

// Orchestrator drives the per-frame cycle and exposes the control surface.
type Orchestrator struct {
	cfg    Config
	clock  timeutil.Clock
	fps    hud.FrameRateMeter
	notify *hud.NotificationTimer

	screenshotPending atomic.Bool
	cycles            atomic.Uint64

	statusMu   sync.Mutex
	lastFPS    float64
	lastTracks int

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool

	teardownOnce sync.Once
	teardownErr  error
	stopped      atomic.Bool
}

// New validates cfg and returns an idle orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	switch {
	case isNilInterface(cfg.Source):
		return nil, errors.New("pipeline: frame source is required")
	case isNilInterface(cfg.Detector):
		return nil, errors.New("pipeline: detector is required")
	case cfg.Settings == nil:
		return nil, errors.New("pipeline: filter settings are required")
	case cfg.Registry == nil:
		return nil, errors.New("pipeline: track registry is required")
	case cfg.Recorder == nil:
		return nil, errors.New("pipeline: recording controller is required")
	}
	if isNilInterface(cfg.Preprocessor) {
		cfg.Preprocessor = nil
	}
	if isNilInterface(cfg.Annotator) {
		cfg.Annotator = nil
	}
	if isNilInterface(cfg.Display) {
		cfg.Display = nil
	}
	if isNilInterface(cfg.Screenshots) {
		cfg.Screenshots = nil
	}
	sinks := cfg.BatchSinks[:0:0]
	for _, s := range cfg.BatchSinks {
		if !isNilInterface(s) {
			sinks = append(sinks, s)
		}
	}
	cfg.BatchSinks = sinks
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.CycleInterval <= 0 {
		cfg.CycleInterval = 30 * time.Millisecond
	}
	if cfg.ReadRetries < 0 {
		cfg.ReadRetries = 0
	}
	if cfg.ScreenshotFormat == "" {
		cfg.ScreenshotFormat = "png"
	}
	if cfg.Layout.FS == nil {
		cfg.Layout.FS = fsutil.OSFileSystem{}
	}
	return &Orchestrator{
		cfg:    cfg,
		clock:  cfg.Clock,
		notify: hud.NewNotificationTimer(cfg.NotificationWindow),
	}, nil
}

// Cycle processes exactly one frame.
func (o *Orchestrator) Cycle(ctx context.Context) (CycleResult, error) {
	frame, err := o.readFrame(ctx)
	if err != nil {
		return CycleResult{}, err
	}
	now := o.clock.Now()
	if frame.Timestamp.IsZero() {
		frame.Timestamp = now
	}

	input := frame
	if o.cfg.Preprocessor != nil {
		if pre, err := o.cfg.Preprocessor.Preprocess(frame); err != nil {
			opsf("preprocess frame %d: %v", frame.Seq, err)
		} else {
			input = pre
		}
	}

	raw, err := o.cfg.Detector.Detect(ctx, input)
	if err != nil {
		return CycleResult{}, fmt.Errorf("%w: frame %d: %v", ErrDetectionFailed, frame.Seq, err)
	}
	if cs, ok := o.cfg.Detector.(detect.CoordinateSpacer); ok {
		w, h := cs.CoordinateSpace()
		raw = detect.Rescale(raw, w, h, frame.Width, frame.Height)
	}
	dets := detect.Filter(raw, o.cfg.Settings.Load())

	confirmed, err := o.cfg.Registry.Update(dets, frame)
	if err != nil {
		opsf("frame %d: %v", frame.Seq, err)
	}

	res := CycleResult{
		Seq:        frame.Seq,
		Timestamp:  now,
		Detections: len(dets),
		Tracks:     confirmed,
	}

	if o.screenshotPending.CompareAndSwap(true, false) {
		res.Screenshot = o.saveScreenshot(frame, now)
	}

	if err := o.cfg.Recorder.WriteFrame(frame); err != nil {
		opsf("recording: %v", err)
	}
	elapsed, isRec := o.cfg.Recorder.Elapsed()
	res.Recording = isRec

	res.FPS = o.fps.Tick(now)
	res.Notification, _ = o.notify.Current(now)

	out := frame.Clone()
	if o.cfg.Annotator != nil {
		ov := Overlay{
			Now:              now,
			Recording:        isRec,
			RecordingElapsed: elapsed,
			FPS:              res.FPS,
			Tracks:           confirmed,
			ClassNames:       o.cfg.ClassNames,
			Notification:     res.Notification,
		}
		if err := o.cfg.Annotator.Annotate(out, ov); err != nil {
			opsf("annotate frame %d: %v", frame.Seq, err)
		}
	}
	res.Annotated = out
	if o.cfg.Display != nil {
		if err := o.cfg.Display.Show(out); err != nil {
			opsf("display frame %d: %v", frame.Seq, err)
		}
	}

	res.Batch = BuildBatch(confirmed, o.cfg.ClassNames, now)
	if len(res.Batch) > 0 {
		for _, sink := range o.cfg.BatchSinks {
			if err := sink.WriteBatch(res.Batch); err != nil {
				opsf("log batch for frame %d: %v", frame.Seq, err)
			}
		}
	}

	o.cycles.Add(1)
	o.statusMu.Lock()
	o.lastFPS = res.FPS
	o.lastTracks = len(confirmed)
	o.statusMu.Unlock()

	tracef("frame=%d dets=%d raw=%d confirmed=%d fps=%.2f rec=%t", frame.Seq, len(dets), len(raw), len(confirmed), res.FPS, isRec)
	for _, obs := range o.cfg.Observers {
		obs(res)
	}
	return res, nil
}

// readFrame reads with ReadRetries extra attempts.
func (o *Orchestrator) readFrame(ctx context.Context) (*video.Frame, error) {
	var lastErr error
	for attempt := 0; attempt <= o.cfg.ReadRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := o.cfg.Source.Read(ctx)
		if err == nil {
			verr := f.Validate()
			if verr == nil {
				return f, nil
			}
			err = fmt.Errorf("%w: %v", video.ErrFrameReadFailed, verr)
		}
		lastErr = err
		opsf("frame read attempt %d/%d failed: %v", attempt+1, o.cfg.ReadRetries+1, err)
	}
	return nil, fmt.Errorf("%w: %w", ErrEndOfStream, lastErr)
}

func (o *Orchestrator) saveScreenshot(frame *video.Frame, now time.Time) string {
	if o.cfg.Screenshots == nil {
		o.notify.Fire(MsgScreenshotFailed, now)
		opsf("screenshot requested but no screenshot sink configured")
		return ""
	}
	path := fsutil.UniquePath(o.cfg.Layout.FS, o.cfg.Layout.ScreenshotsDir(), "screenshot", now, o.cfg.ScreenshotFormat)
	if err := o.cfg.Screenshots.Save(frame, path); err != nil {
		o.notify.Fire(MsgScreenshotFailed, now)
		opsf("screenshot %s: %v", path, err)
		return ""
	}
	o.notify.Fire(MsgScreenshotSaved, now)
	diagf("screenshot saved to %s", path)
	return path
}

// Run drives Cycle on the configured cadence until ctx is cancelled, Quit
// is called or the stream ends, then tears down. A slow cycle delays the
// next one; missed ticks are dropped. End-of-stream is reported as nil.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.mu.Lock()
	if o.running || o.done != nil {
		o.mu.Unlock()
		return errAlreadyRunning
	}
	if o.stopped.Load() {
		o.mu.Unlock()
		return fmt.Errorf("%w: pipeline stopped", ErrInvalidControlAction)
	}
	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.done = make(chan struct{})
	o.running = true
	done := o.done
	o.mu.Unlock()

	defer close(done)
	defer cancel()

	ticker := o.clock.NewTicker(o.cfg.CycleInterval)
	defer ticker.Stop()

	diagf("pipeline running, cycle interval %s", o.cfg.CycleInterval)
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C():
		}
		if _, err := o.Cycle(ctx); err != nil {
			switch {
			case errors.Is(err, ErrEndOfStream):
				diagf("stopping: %v", err)
				break loop
			case ctx.Err() != nil:
				break loop
			default:
				opsf("cycle: %v", err)
			}
		}
	}

	o.mu.Lock()
	o.running = false
	o.mu.Unlock()

	return o.teardown()
}

// teardown releases the recording writer and the capture handle exactly
// once. Both are always attempted.
func (o *Orchestrator) teardown() error {
	o.teardownOnce.Do(func() {
		o.stopped.Store(true)
		var errs []error
		if err := o.cfg.Recorder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close recorder: %w", err))
		}
		if err := o.cfg.Source.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close source: %w", err))
		}
		o.teardownErr = errors.Join(errs...)
		diagf("teardown complete after %d cycles", o.cycles.Load())
	})
	return o.teardownErr
}

// RequestQuit cancels the run loop without waiting. It is safe to call
// from inside a cycle (for example a display key handler).
func (o *Orchestrator) RequestQuit() {
	o.mu.Lock()
	cancel := o.cancel
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Quit stops the run loop, waits for the in-flight cycle to finish, then
// synchronously closes the recording and the capture handle. It must not
// be called from inside a cycle; use RequestQuit there.
func (o *Orchestrator) Quit() error {
	o.mu.Lock()
	cancel, done := o.cancel, o.done
	o.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	return o.teardown()
}

// Done is closed when Run returns. It is nil before Run starts.
func (o *Orchestrator) Done() <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.done
}

// StartRecording begins a recording session.
func (o *Orchestrator) StartRecording() error {
	s, err := o.cfg.Recorder.Start()
	o.recordingStarted(s, err)
	return err
}

// StopRecording ends the active recording session.
func (o *Orchestrator) StopRecording() error {
	s, err := o.cfg.Recorder.Stop()
	if errors.Is(err, recording.ErrInvalidControlAction) {
		diagf("recording stop rejected: %v", err)
		return err
	}
	o.recordingStopped(s, err)
	return err
}

// ToggleRecording starts when idle and stops when recording. The decision
// is made by the recorder under its own lock.
func (o *Orchestrator) ToggleRecording() (recording.State, error) {
	s, state, err := o.cfg.Recorder.Toggle()
	switch {
	case errors.Is(err, recording.ErrInvalidControlAction):
		diagf("recording toggle rejected: %v", err)
	case state == recording.StateRecording, errors.Is(err, recording.ErrWriterInitFailed):
		o.recordingStarted(s, err)
	default:
		o.recordingStopped(s, err)
	}
	return state, err
}

func (o *Orchestrator) recordingStarted(s recording.Session, err error) {
	now := o.clock.Now()
	switch {
	case err == nil:
		o.notify.Fire(MsgRecordingStarted, now)
		diagf("recording started: %s", s.Path)
	case errors.Is(err, recording.ErrWriterInitFailed):
		o.notify.Fire(MsgRecordingFailed, now)
		opsf("recording start: %v", err)
	default:
		diagf("recording start rejected: %v", err)
	}
}

func (o *Orchestrator) recordingStopped(s recording.Session, err error) {
	o.notify.Fire(MsgRecordingStopped, o.clock.Now())
	diagf("recording stopped: %s (%d frames, %s)", s.Path, s.Frames, s.Duration())
	if err != nil {
		opsf("recording stop: %v", err)
	}
}

// TakeScreenshot queues a screenshot of the next frame before annotation.
func (o *Orchestrator) TakeScreenshot() error {
	if o.isTornDown() {
		return fmt.Errorf("%w: pipeline stopped", ErrInvalidControlAction)
	}
	o.screenshotPending.Store(true)
	return nil
}

// SetConfidenceThreshold changes the filter threshold from the next frame.
func (o *Orchestrator) SetConfidenceThreshold(v float64) error {
	if err := o.cfg.Settings.SetThreshold(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidControlAction, err)
	}
	diagf("confidence threshold set to %.3f", v)
	return nil
}

// SetAllowedClasses replaces the class allow-list from the next frame.
func (o *Orchestrator) SetAllowedClasses(ids []int) {
	o.cfg.Settings.SetAllowed(ids)
	diagf("allowed classes set to %v", ids)
}

// Status returns a snapshot for the control surface.
func (o *Orchestrator) Status() Status {
	now := o.clock.Now()
	st := Status{
		Recording: o.cfg.Recorder.State(),
		Threshold: o.cfg.Settings.Load().Threshold,
		Cycles:    o.cycles.Load(),
	}
	if s, ok := o.cfg.Recorder.Current(); ok {
		st.RecordingPath = s.Path
		st.RecordingElapsed = now.Sub(s.StartedAt)
	}
	st.Notification, _ = o.notify.Current(now)
	_, st.TentativeTracks, _, _ = o.cfg.Registry.Counts()
	st.TracksCreated, st.TracksConfirmed = o.cfg.Registry.Stats()

	o.statusMu.Lock()
	st.FPS = o.lastFPS
	st.ConfirmedTracks = o.lastTracks
	o.statusMu.Unlock()

	o.mu.Lock()
	st.Running = o.running
	o.mu.Unlock()
	return st
}

func (o *Orchestrator) isTornDown() bool {
	return o.stopped.Load()
}
