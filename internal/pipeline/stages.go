package pipeline

import (
	"errors"
	"reflect"
	"time"

	"github.com/ErihKoh/video-detecting-and-tracking/internal/activitylog"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/detect"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/tracks"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/video"
)

// Preprocessor prepares a frame for the detector. It must not modify its
// input; the original frame is still recorded and displayed.
type Preprocessor interface {
	Preprocess(frame *video.Frame) (*video.Frame, error)
}

// Overlay is everything the annotator draws for one cycle.
type Overlay struct {
	Now              time.Time
	Recording        bool
	RecordingElapsed time.Duration
	FPS              float64
	Tracks           []tracks.Track
	ClassNames       detect.ClassNames
	Notification     string
}

// Annotator draws an Overlay onto a frame in place.
type Annotator interface {
	Annotate(frame *video.Frame, ov Overlay) error
}

// DisplaySink shows annotated frames.
type DisplaySink interface {
	Show(frame *video.Frame) error
}

// Displays fans one annotated frame out to several sinks. Every sink is
// shown the frame even when an earlier one fails.
type Displays []DisplaySink

// Show implements DisplaySink.
func (d Displays) Show(frame *video.Frame) error {
	var errs []error
	for _, s := range d {
		if err := s.Show(frame); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ScreenshotSink writes a still image to path.
type ScreenshotSink interface {
	Save(frame *video.Frame, path string) error
}

// BatchSink receives the non-empty detection log batch of each cycle.
type BatchSink interface {
	WriteBatch(batch []activitylog.Entry) error
}

// CycleObserver is called at the end of every completed cycle.
type CycleObserver func(CycleResult)

// isNilInterface checks if an interface value is nil or contains a nil
// pointer, so optional stages passed as typed nils are treated as absent.
func isNilInterface(i interface{}) bool {
	if i == nil {
		return true
	}
	v := reflect.ValueOf(i)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// BuildBatch returns one log entry per Confirmed track, in track order.
func BuildBatch(confirmed []tracks.Track, names detect.ClassNames, now time.Time) []activitylog.Entry {
	batch := make([]activitylog.Entry, 0, len(confirmed))
	for _, t := range confirmed {
		if t.State != tracks.TrackConfirmed {
			continue
		}
		batch = append(batch, activitylog.Entry{
			Timestamp: now,
			ClassID:   t.ClassID,
			ClassName: names.Name(t.ClassID),
			TrackID:   t.ID,
		})
	}
	return batch
}
