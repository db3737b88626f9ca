// Package report accumulates per-cycle telemetry during a run and renders
// run summaries: frame-rate statistics and trajectory plots.
package report

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ErihKoh/video-detecting-and-tracking/internal/pipeline"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/video"
)

// DefaultMaxSamples bounds the cycle history kept in memory.
const DefaultMaxSamples = 18000

// DefaultMaxTracks bounds the number of trajectories kept for plotting.
const DefaultMaxTracks = 256

// Sample is one cycle's telemetry.
type Sample struct {
	Seq             uint64    `json:"seq"`
	Timestamp       time.Time `json:"timestamp"`
	FPS             float64   `json:"fps"`
	Detections      int       `json:"detections"`
	ConfirmedTracks int       `json:"confirmed_tracks"`
	Recording       bool      `json:"recording"`
}

// TrackPath is the latest known trajectory of one track.
type TrackPath struct {
	ID      int
	ClassID int
	Points  []video.Point
}

// Collector records cycle results. Observe is safe to call from the
// pipeline goroutine while readers query from others.
type Collector struct {
	mu         sync.Mutex
	maxSamples int
	maxTracks  int
	samples    []Sample
	paths      map[int]*TrackPath
	order      []int // track ids, oldest first
	trackIDs   map[int]struct{}
	start      time.Time
	last       time.Time
	cycles     uint64
	batchLines uint64
	recording  uint64 // cycles spent recording
}

// NewCollector returns a collector with the given bounds. Non-positive
// values select the defaults.
func NewCollector(maxSamples, maxTracks int) *Collector {
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	if maxTracks <= 0 {
		maxTracks = DefaultMaxTracks
	}
	return &Collector{
		maxSamples: maxSamples,
		maxTracks:  maxTracks,
		paths:      make(map[int]*TrackPath),
		trackIDs:   make(map[int]struct{}),
	}
}

// Observe records one cycle. Its signature matches pipeline.CycleObserver.
func (c *Collector) Observe(res pipeline.CycleResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.start.IsZero() {
		c.start = res.Timestamp
	}
	c.last = res.Timestamp
	c.cycles++
	c.batchLines += uint64(len(res.Batch))
	if res.Recording {
		c.recording++
	}

	c.samples = append(c.samples, Sample{
		Seq:             res.Seq,
		Timestamp:       res.Timestamp,
		FPS:             res.FPS,
		Detections:      res.Detections,
		ConfirmedTracks: len(res.Tracks),
		Recording:       res.Recording,
	})
	if over := len(c.samples) - c.maxSamples; over > 0 {
		c.samples = append(c.samples[:0], c.samples[over:]...)
	}

	for _, t := range res.Tracks {
		c.trackIDs[t.ID] = struct{}{}
		p, ok := c.paths[t.ID]
		if !ok {
			if len(c.order) >= c.maxTracks {
				evict := c.order[0]
				c.order = c.order[1:]
				delete(c.paths, evict)
			}
			p = &TrackPath{ID: t.ID}
			c.paths[t.ID] = p
			c.order = append(c.order, t.ID)
		}
		p.ClassID = t.ClassID
		p.Points = append(p.Points[:0], t.Trajectory...)
	}
}

// Samples returns a copy of the retained cycle history, oldest first.
func (c *Collector) Samples() []Sample {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Sample(nil), c.samples...)
}

// Paths returns the retained trajectories ordered by track id.
func (c *Collector) Paths() []TrackPath {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]TrackPath, 0, len(c.paths))
	for _, p := range c.paths {
		out = append(out, TrackPath{ID: p.ID, ClassID: p.ClassID, Points: append([]video.Point(nil), p.Points...)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Summary describes a run.
type Summary struct {
	Cycles          uint64        `json:"cycles"`
	Duration        time.Duration `json:"duration_ns"`
	MeanFPS         float64       `json:"mean_fps"`
	StdDevFPS       float64       `json:"stddev_fps"`
	MinFPS          float64       `json:"min_fps"`
	MaxFPS          float64       `json:"max_fps"`
	PeakTracks      int           `json:"peak_tracks"`
	DistinctTracks  int           `json:"distinct_tracks"`
	LoggedSightings uint64        `json:"logged_sightings"`
	RecordingCycles uint64        `json:"recording_cycles"`
}

// Summary computes statistics over the retained history. Cycles with no
// frame-rate reading (the first one) are excluded from the FPS figures.
func (c *Collector) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Summary{
		Cycles:          c.cycles,
		Duration:        c.last.Sub(c.start),
		DistinctTracks:  len(c.trackIDs),
		LoggedSightings: c.batchLines,
		RecordingCycles: c.recording,
	}
	fps := make([]float64, 0, len(c.samples))
	for _, smp := range c.samples {
		if smp.FPS > 0 {
			fps = append(fps, smp.FPS)
		}
		if smp.ConfirmedTracks > s.PeakTracks {
			s.PeakTracks = smp.ConfirmedTracks
		}
	}
	if len(fps) > 0 {
		s.MeanFPS, s.StdDevFPS = stat.MeanStdDev(fps, nil)
		if len(fps) == 1 {
			s.StdDevFPS = 0
		}
		s.MinFPS = floats.Min(fps)
		s.MaxFPS = floats.Max(fps)
	}
	return s
}
