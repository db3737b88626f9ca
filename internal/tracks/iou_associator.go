package tracks

import (
	"sync"

	"github.com/ErihKoh/video-detecting-and-tracking/internal/detect"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/video"
)

// IoUAssociatorConfig parameterises the built-in associator.
type IoUAssociatorConfig struct {
	// MinIoU is the smallest overlap accepted as a match.
	MinIoU float64
	// MaxAge is the number of consecutive unmatched cycles after which an
	// identity is forgotten. Keep it equal to the registry's MaxMisses so
	// both sides retire an identity on the same cycle.
	MaxAge int
	// MinHits is the hit count at which observations report Confirmed.
	MinHits int
}

// DefaultIoUAssociatorConfig returns the defaults used by the tracker binary.
func DefaultIoUAssociatorConfig() IoUAssociatorConfig {
	return IoUAssociatorConfig{MinIoU: 0.3, MaxAge: 30, MinHits: 3}
}

// IoUAssociator matches detections to identities by bounding-box overlap.
// Only detections of the same class may match; the global assignment is
// solved with HungarianAssign over a 1-IoU cost.
type IoUAssociator struct {
	mu     sync.Mutex
	cfg    IoUAssociatorConfig
	nextID int
	tracks []*iouTrack
}

type iouTrack struct {
	id      int
	classID int
	box     video.Box
	hits    int
	unseen  int
}

// NewIoUAssociator returns an associator issuing ids from 1.
func NewIoUAssociator(cfg IoUAssociatorConfig) *IoUAssociator {
	if cfg.MaxAge < 1 {
		cfg.MaxAge = 1
	}
	return &IoUAssociator{cfg: cfg, nextID: 1}
}

// Associate implements Associator. The frame is not used.
func (a *IoUAssociator) Associate(dets []detect.Detection, _ *video.Frame) ([]Observation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	assign := a.match(dets)

	used := make([]bool, len(a.tracks))
	obs := make([]Observation, 0, len(dets))
	for di, d := range dets {
		var trk *iouTrack
		if ti := assign[di]; ti >= 0 {
			trk = a.tracks[ti]
			used[ti] = true
			trk.box = d.Box
			trk.hits++
			trk.unseen = 0
		} else {
			trk = &iouTrack{id: a.nextID, classID: d.ClassID, box: d.Box, hits: 1}
			a.nextID++
			a.tracks = append(a.tracks, trk)
			used = append(used, true)
		}
		obs = append(obs, Observation{
			ID:        trk.id,
			ClassID:   trk.classID,
			Box:       trk.box,
			Confirmed: trk.hits >= a.cfg.MinHits,
		})
	}

	kept := a.tracks[:0]
	for i, trk := range a.tracks {
		if !used[i] {
			trk.unseen++
			trk.hits = 0
			if trk.unseen >= a.cfg.MaxAge {
				continue
			}
		}
		kept = append(kept, trk)
	}
	for i := len(kept); i < len(a.tracks); i++ {
		a.tracks[i] = nil
	}
	a.tracks = kept

	return obs, nil
}

// match returns, per detection, the index of the matched identity or -1.
func (a *IoUAssociator) match(dets []detect.Detection) []int {
	assign := make([]int, len(dets))
	for i := range assign {
		assign[i] = -1
	}
	if len(dets) == 0 || len(a.tracks) == 0 {
		return assign
	}

	cost := make([][]float64, len(dets))
	for i, d := range dets {
		cost[i] = make([]float64, len(a.tracks))
		for j, trk := range a.tracks {
			cost[i][j] = Forbidden
			if trk.classID != d.ClassID {
				continue
			}
			if iou := d.Box.IoU(trk.box); iou >= a.cfg.MinIoU && iou > 0 {
				cost[i][j] = 1 - iou
			}
		}
	}
	return HungarianAssign(cost)
}

// Live returns the number of identities currently remembered.
func (a *IoUAssociator) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.tracks)
}
