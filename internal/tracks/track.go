package tracks

import (
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ErihKoh/video-detecting-and-tracking/internal/video"
)

// TrackState represents the lifecycle state of a track.
type TrackState string

const (
	TrackTentative TrackState = "tentative" // New track, needs confirmation
	TrackConfirmed TrackState = "confirmed" // Stable track, reported downstream
	TrackDeleted   TrackState = "deleted"   // Purged on the next update
)

// Track is an immutable snapshot of a tracked object.
type Track struct {
	ID      int
	ClassID int
	Box     video.Box
	State   TrackState

	Hits   int // Consecutive supporting cycles
	Misses int // Consecutive cycles without support
	Age    int // Cycles since birth

	FirstSeen time.Time
	LastSeen  time.Time

	// Trajectory holds centroids oldest first, at most the configured
	// trajectory length.
	Trajectory []video.Point
}

// Centroid returns the centre of the last known box.
func (t Track) Centroid() video.Point {
	return t.Box.Centroid()
}

// PathLength returns the distance travelled along the trajectory, in
// pixels.
func (t Track) PathLength() float64 {
	var total float64
	for i := 1; i < len(t.Trajectory); i++ {
		a, b := t.Trajectory[i-1], t.Trajectory[i]
		total += r2.Norm(r2.Sub(r2.Vec{X: b.X, Y: b.Y}, r2.Vec{X: a.X, Y: a.Y}))
	}
	return total
}

type trackedObject struct {
	id      int
	classID int
	box     video.Box
	state   TrackState

	hits   int
	misses int
	age    int

	firstSeen time.Time
	lastSeen  time.Time

	trail *Trail
}

func (o *trackedObject) snapshot() Track {
	return Track{
		ID:         o.id,
		ClassID:    o.classID,
		Box:        o.box,
		State:      o.state,
		Hits:       o.hits,
		Misses:     o.misses,
		Age:        o.age,
		FirstSeen:  o.firstSeen,
		LastSeen:   o.lastSeen,
		Trajectory: o.trail.Points(),
	}
}
