package tracks

import "github.com/ErihKoh/video-detecting-and-tracking/internal/video"

// Trail is a fixed-capacity ring of centroids. Adding to a full trail
// overwrites the oldest point.
type Trail struct {
	points   []video.Point
	head     int
	size     int
	capacity int
}

// NewTrail returns an empty trail. Capacities below one are raised to one.
func NewTrail(capacity int) *Trail {
	if capacity < 1 {
		capacity = 1
	}
	return &Trail{points: make([]video.Point, capacity), capacity: capacity}
}

// Add appends p, evicting the oldest point when full.
func (t *Trail) Add(p video.Point) {
	t.points[t.head] = p
	t.head = (t.head + 1) % t.capacity
	if t.size < t.capacity {
		t.size++
	}
}

// Points returns a copy of the trail, oldest first.
func (t *Trail) Points() []video.Point {
	if t.size == 0 {
		return nil
	}
	out := make([]video.Point, t.size)
	if t.size < t.capacity {
		copy(out, t.points[:t.size])
		return out
	}
	n := copy(out, t.points[t.head:])
	copy(out[n:], t.points[:t.head])
	return out
}

// Len returns the number of stored points.
func (t *Trail) Len() int { return t.size }

// Cap returns the trail capacity.
func (t *Trail) Cap() int { return t.capacity }
