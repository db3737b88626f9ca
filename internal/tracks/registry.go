package tracks

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ErihKoh/video-detecting-and-tracking/internal/config"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/detect"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/timeutil"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/video"
)

// TrackerConfig holds the lifecycle policy of the registry.
type TrackerConfig struct {
	HitsToConfirm       int // Consecutive hits needed for confirmation (birth counts)
	MaxMisses           int // Consecutive misses before deletion
	MaxTrajectoryLength int // Trail capacity per track

	// TrustAssociatorConfirmation promotes a track as soon as the
	// associator reports it confirmed, in addition to the hit count.
	TrustAssociatorConfirmation bool
}

// DefaultTrackerConfig returns the default lifecycle policy.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		HitsToConfirm:       3,
		MaxMisses:           30,
		MaxTrajectoryLength: 128,
	}
}

// TrackerConfigFromTuning builds a TrackerConfig from tuning values.
func TrackerConfigFromTuning(cfg *config.TuningConfig) TrackerConfig {
	return TrackerConfig{
		HitsToConfirm:       cfg.GetHitsToConfirm(),
		MaxMisses:           cfg.GetMaxMisses(),
		MaxTrajectoryLength: cfg.GetMaxTrajectoryLength(),
	}
}

// ApplyTuning copies the tuned lifecycle values into c, leaving the other
// fields alone.
func (c *TrackerConfig) ApplyTuning(cfg *config.TuningConfig) {
	t := TrackerConfigFromTuning(cfg)
	c.HitsToConfirm = t.HitsToConfirm
	c.MaxMisses = t.MaxMisses
	c.MaxTrajectoryLength = t.MaxTrajectoryLength
}

// Registry owns the live-track map and is the only writer of trajectories.
type Registry struct {
	mu         sync.RWMutex
	config     TrackerConfig
	associator Associator
	tracks     map[int]*trackedObject
	onRetire   func(Track)
	clock      timeutil.Clock

	// lifecycle transitions since construction
	created   int
	confirmed int
}

// NewRegistry creates a registry delegating identity to a.
func NewRegistry(cfg TrackerConfig, a Associator) *Registry {
	return &Registry{
		config:     cfg,
		associator: a,
		tracks:     make(map[int]*trackedObject),
		clock:      timeutil.RealClock{},
	}
}

// SetClock replaces the clock used to stamp tracks when a frame carries
// no timestamp.
func (r *Registry) SetClock(c timeutil.Clock) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock = c
}

// SetRetireHook registers fn to receive each track as it is deleted.
func (r *Registry) SetRetireHook(fn func(Track)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRetire = fn
}

// UpdateConfig applies fn to the lifecycle policy under the registry lock.
// Existing trails keep their capacity; new tracks use the new one.
func (r *Registry) UpdateConfig(fn func(*TrackerConfig)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.config)
}

// Update runs one association cycle and returns the Confirmed tracks,
// including confirmed tracks that coasted this cycle, sorted by ID.
//
// If the associator fails nothing is mutated and the previous confirmed
// set is returned with an error wrapping ErrAssociationFailed.
func (r *Registry) Update(dets []detect.Detection, frame *video.Frame) ([]Track, error) {
	obs, err := r.associator.Associate(dets, frame)
	if err != nil {
		return r.Confirmed(), fmt.Errorf("%w: %v", ErrAssociationFailed, err)
	}

	r.mu.Lock()

	now := r.clock.Now()
	if frame != nil && !frame.Timestamp.IsZero() {
		now = frame.Timestamp
	}

	// Tracks deleted last cycle were visible for one update; drop them now.
	for id, trk := range r.tracks {
		if trk.state == TrackDeleted {
			delete(r.tracks, id)
		}
	}

	matched := make(map[int]bool, len(obs))
	for _, o := range obs {
		if matched[o.ID] {
			continue
		}
		matched[o.ID] = true

		trk, ok := r.tracks[o.ID]
		if !ok {
			r.tracks[o.ID] = r.initTrack(o, now)
			continue
		}
		trk.hits++
		trk.misses = 0
		trk.age++
		trk.box = o.Box
		trk.classID = o.ClassID
		trk.lastSeen = now
		r.maybePromote(trk, o.Confirmed)
	}

	var retired []Track
	for id, trk := range r.tracks {
		if matched[id] {
			continue
		}
		trk.misses++
		trk.hits = 0
		trk.age++
		if trk.misses >= r.config.MaxMisses {
			trk.state = TrackDeleted
			retired = append(retired, trk.snapshot())
		}
	}

	for _, trk := range r.tracks {
		if trk.state == TrackConfirmed {
			trk.trail.Add(trk.box.Centroid())
		}
	}

	confirmed := r.confirmedLocked()
	onRetire := r.onRetire
	r.mu.Unlock()

	if onRetire != nil {
		sort.Slice(retired, func(i, j int) bool { return retired[i].ID < retired[j].ID })
		for _, t := range retired {
			onRetire(t)
		}
	}
	return confirmed, nil
}

func (r *Registry) initTrack(o Observation, now time.Time) *trackedObject {
	trk := &trackedObject{
		id:        o.ID,
		classID:   o.ClassID,
		box:       o.Box,
		state:     TrackTentative,
		hits:      1,
		firstSeen: now,
		lastSeen:  now,
		trail:     NewTrail(r.config.MaxTrajectoryLength),
	}
	r.created++
	r.maybePromote(trk, o.Confirmed)
	return trk
}

func (r *Registry) maybePromote(trk *trackedObject, associatorConfirmed bool) {
	if trk.state != TrackTentative {
		return
	}
	if trk.hits >= r.config.HitsToConfirm || (r.config.TrustAssociatorConfirmation && associatorConfirmed) {
		trk.state = TrackConfirmed
		r.confirmed++
	}
}

func (r *Registry) confirmedLocked() []Track {
	out := make([]Track, 0, len(r.tracks))
	for _, trk := range r.tracks {
		if trk.state == TrackConfirmed {
			out = append(out, trk.snapshot())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Confirmed returns the current Confirmed tracks sorted by ID.
func (r *Registry) Confirmed() []Track {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.confirmedLocked()
}

// Lookup returns the track with the given id.
func (r *Registry) Lookup(id int) (Track, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	trk, ok := r.tracks[id]
	if !ok {
		return Track{}, false
	}
	return trk.snapshot(), true
}

// Counts returns the number of tracks in each state.
func (r *Registry) Counts() (total, tentative, confirmed, deleted int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, trk := range r.tracks {
		total++
		switch trk.state {
		case TrackTentative:
			tentative++
		case TrackConfirmed:
			confirmed++
		case TrackDeleted:
			deleted++
		}
	}
	return
}

// Stats returns the lifecycle counters.
func (r *Registry) Stats() (created, confirmed int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.created, r.confirmed
}
