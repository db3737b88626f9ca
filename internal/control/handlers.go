package control

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ErihKoh/video-detecting-and-tracking/internal/detect"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/httputil"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/pipeline"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/recording"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/security"
)

const (
	defaultDetectionLimit = 100
	maxDetectionLimit     = 1000
)

// actionResponse is returned by every control action.
type actionResponse struct {
	OK     bool            `json:"ok"`
	Status pipeline.Status `json:"status"`
}

// ThresholdRequest is the body of POST /api/threshold.
type ThresholdRequest struct {
	Threshold *float64 `json:"threshold"`
}

// ClassesRequest is the body of POST /api/classes. Names are resolved
// case-insensitively against the class table; an empty request admits
// every class.
type ClassesRequest struct {
	Classes  []string `json:"classes,omitempty"`
	ClassIDs []int    `json:"class_ids,omitempty"`
}

// writeActionError maps control errors onto status codes.
func writeActionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, detect.ErrInvalidThreshold):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, recording.ErrWriterInitFailed):
		httputil.InternalServerError(w, err.Error())
	case errors.Is(err, pipeline.ErrInvalidControlAction):
		httputil.Conflict(w, err.Error())
	default:
		httputil.InternalServerError(w, err.Error())
	}
}

func (s *Server) respondAction(w http.ResponseWriter, err error) {
	if err != nil {
		writeActionError(w, err)
		return
	}
	st := s.opts.Controller.Status()
	s.hub.broadcast(statusMessage(st))
	httputil.WriteJSONOK(w, actionResponse{OK: true, Status: st})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, s.opts.Controller.Status())
}

func (s *Server) handleRecordingStart(w http.ResponseWriter, r *http.Request) {
	s.respondAction(w, s.opts.Controller.StartRecording())
}

func (s *Server) handleRecordingStop(w http.ResponseWriter, r *http.Request) {
	s.respondAction(w, s.opts.Controller.StopRecording())
}

func (s *Server) handleRecordingToggle(w http.ResponseWriter, r *http.Request) {
	_, err := s.opts.Controller.ToggleRecording()
	s.respondAction(w, err)
}

func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	s.respondAction(w, s.opts.Controller.TakeScreenshot())
}

func (s *Server) handleThreshold(w http.ResponseWriter, r *http.Request) {
	var req ThresholdRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if req.Threshold == nil {
		httputil.BadRequest(w, "threshold is required")
		return
	}
	s.respondAction(w, s.opts.Controller.SetConfidenceThreshold(*req.Threshold))
}

func (s *Server) handleClasses(w http.ResponseWriter, r *http.Request) {
	var req ClassesRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	ids, err := s.resolveClasses(req)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	s.opts.Controller.SetAllowedClasses(ids)
	s.respondAction(w, nil)
}

func (s *Server) resolveClasses(req ClassesRequest) ([]int, error) {
	if len(req.Classes) == 0 && len(req.ClassIDs) == 0 {
		return nil, nil
	}
	ids := append([]int(nil), req.ClassIDs...)
	for _, id := range req.ClassIDs {
		if id < 0 || (len(s.opts.ClassNames) > 0 && id >= len(s.opts.ClassNames)) {
			return nil, fmt.Errorf("unknown class id %d", id)
		}
	}
	for _, name := range req.Classes {
		id, ok := s.opts.ClassNames.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown class %q", name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Server) handleQuit(w http.ResponseWriter, r *http.Request) {
	s.opts.Controller.RequestQuit()
	httputil.WriteJSON(w, http.StatusAccepted, map[string]bool{"ok": true})
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.opts.Store == nil {
		httputil.NotFound(w, "history store not configured")
		return false
	}
	return true
}

func (s *Server) handleDetections(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	limit := defaultDetectionLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httputil.BadRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, maxDetectionLimit)
	}
	rows, err := s.opts.Store.RecentDetections(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to query detections: %v", err))
		return
	}
	type row struct {
		Time    string `json:"time"`
		Class   string `json:"class"`
		ClassID int    `json:"class_id"`
		TrackID int    `json:"track_id"`
		Line    string `json:"line"`
	}
	out := make([]row, 0, len(rows))
	for _, e := range rows {
		out = append(out, row{
			Time:    e.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
			Class:   e.ClassName,
			ClassID: e.ClassID,
			TrackID: e.TrackID,
			Line:    e.String(),
		})
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) handleClassCounts(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	counts, err := s.opts.Store.ClassCounts()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to query class counts: %v", err))
		return
	}
	httputil.WriteJSONOK(w, counts)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	sessions, err := s.opts.Store.Sessions()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to query sessions: %v", err))
		return
	}
	httputil.WriteJSONOK(w, sessions)
}

func (s *Server) handleTracks(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	tracks, err := s.opts.Store.Tracks()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to query tracks: %v", err))
		return
	}
	httputil.WriteJSONOK(w, tracks)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if s.opts.Collector == nil {
		httputil.NotFound(w, "telemetry not configured")
		return
	}
	httputil.WriteJSONOK(w, s.opts.Collector.Summary())
}

func (s *Server) handleSamples(w http.ResponseWriter, r *http.Request) {
	if s.opts.Collector == nil {
		httputil.NotFound(w, "telemetry not configured")
		return
	}
	httputil.WriteJSONOK(w, s.opts.Collector.Samples())
}

// mediaDir maps a URL kind onto a layout directory.
func (s *Server) mediaDir(kind string) (string, bool) {
	switch kind {
	case "movies":
		return s.opts.Layout.MoviesDir(), true
	case "screenshots":
		return s.opts.Layout.ScreenshotsDir(), true
	case "logs":
		return s.opts.Layout.LogsDir(), true
	}
	return "", false
}

func (s *Server) handleMediaList(w http.ResponseWriter, r *http.Request) {
	dir, ok := s.mediaDir(r.PathValue("kind"))
	if !ok {
		httputil.NotFound(w, "unknown media kind")
		return
	}
	names, err := s.opts.Layout.FS.List(dir)
	if err != nil {
		httputil.NotFound(w, fmt.Sprintf("failed to list media: %v", err))
		return
	}
	if names == nil {
		names = []string{}
	}
	httputil.WriteJSONOK(w, names)
}

func (s *Server) handleMediaFile(w http.ResponseWriter, r *http.Request) {
	dir, ok := s.mediaDir(r.PathValue("kind"))
	if !ok {
		httputil.NotFound(w, "unknown media kind")
		return
	}
	path, err := security.ResolveFile(dir, r.PathValue("name"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if !s.opts.Layout.FS.Exists(path) {
		httputil.NotFound(w, "no such file")
		return
	}
	http.ServeFile(w, r, path)
}
