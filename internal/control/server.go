// Package control exposes the pipeline's control surface over HTTP: JSON
// endpoints for recording, screenshots, threshold and class filters, a
// websocket command/status channel, an MJPEG live view, run history from
// the store and an FPS chart.
package control

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ErihKoh/video-detecting-and-tracking/internal/detect"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/fsutil"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/monitoring"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/pipeline"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/recording"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/report"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/store"
)

var logf = monitoring.Component("control")

// Controller is the subset of the orchestrator the server drives.
type Controller interface {
	StartRecording() error
	StopRecording() error
	ToggleRecording() (recording.State, error)
	TakeScreenshot() error
	SetConfidenceThreshold(v float64) error
	SetAllowedClasses(ids []int)
	Status() pipeline.Status
	RequestQuit()
}

// Options configures a Server. Controller is required.
type Options struct {
	Controller Controller
	Store      *store.DB         // optional run history
	Collector  *report.Collector // optional telemetry for /chart and /api/summary
	Layout     fsutil.Layout     // media directories
	ClassNames detect.ClassNames
	Stream     http.Handler // optional MJPEG handler for /stream

	// StatusInterval throttles websocket status pushes. Default 250ms.
	StatusInterval time.Duration
}

// Server serves the control API.
type Server struct {
	opts Options
	hub  *hub
}

// NewServer returns a server for opts.
func NewServer(opts Options) (*Server, error) {
	if opts.Controller == nil {
		return nil, errors.New("control: controller is required")
	}
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = 250 * time.Millisecond
	}
	if opts.Layout.FS == nil {
		opts.Layout.FS = fsutil.OSFileSystem{}
	}
	return &Server{opts: opts, hub: newHub()}, nil
}

// ServeMux returns the route table.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/recording/start", s.handleRecordingStart)
	mux.HandleFunc("POST /api/recording/stop", s.handleRecordingStop)
	mux.HandleFunc("POST /api/recording/toggle", s.handleRecordingToggle)
	mux.HandleFunc("POST /api/screenshot", s.handleScreenshot)
	mux.HandleFunc("POST /api/threshold", s.handleThreshold)
	mux.HandleFunc("POST /api/classes", s.handleClasses)
	mux.HandleFunc("POST /api/quit", s.handleQuit)

	mux.HandleFunc("GET /api/detections", s.handleDetections)
	mux.HandleFunc("GET /api/classes/counts", s.handleClassCounts)
	mux.HandleFunc("GET /api/sessions", s.handleSessions)
	mux.HandleFunc("GET /api/tracks", s.handleTracks)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/samples", s.handleSamples)

	mux.HandleFunc("GET /api/media/{kind}", s.handleMediaList)
	mux.HandleFunc("GET /media/{kind}/{name}", s.handleMediaFile)

	mux.HandleFunc("GET /chart", s.handleChart)
	mux.HandleFunc("GET /ws", s.handleWebsocket)
	if s.opts.Stream != nil {
		mux.Handle("GET /stream", s.opts.Stream)
	}
	return mux
}

// Handler returns the mux wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return LoggingMiddleware(s.ServeMux())
}

// Serve listens on addr until ctx is cancelled, then shuts down, closing
// websocket clients.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.serveListener(ctx, ln)
}

func (s *Server) serveListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	logf("listening on %s", ln.Addr())

	select {
	case err := <-errc:
		s.hub.closeAll()
		return err
	case <-ctx.Done():
	}
	s.hub.closeAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		// Live MJPEG viewers never finish on their own.
		logf("graceful shutdown incomplete, closing: %v", err)
		srv.Close()
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Observe pushes status to websocket clients at most once per
// StatusInterval of cycle time. Its signature matches
// pipeline.CycleObserver.
func (s *Server) Observe(res pipeline.CycleResult) {
	if !s.hub.due(res.Timestamp, s.opts.StatusInterval) {
		return
	}
	s.hub.broadcast(statusMessage(s.opts.Controller.Status()))
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if f, ok := lrw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (lrw *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := lrw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	lrw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (lrw *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return lrw.ResponseWriter
}

// LoggingMiddleware logs method, path, status and duration. Long-lived
// streams are logged when they end.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		logf("[%s] %s %s %vms", strconv.Itoa(lrw.statusCode), r.Method, r.URL.RequestURI(),
			float64(time.Since(start).Nanoseconds())/1e6)
	})
}
