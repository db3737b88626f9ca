package detect

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrInvalidThreshold is returned for thresholds outside [0, 1].
var ErrInvalidThreshold = errors.New("confidence threshold must be within [0, 1]")

// FilterConfig is an immutable snapshot of the filter parameters.
type FilterConfig struct {
	Threshold float64
	// Allowed holds admitted class ids. A nil map admits every class.
	Allowed map[int]struct{}
}

// NewFilterConfig builds a snapshot. A nil or empty allowed slice admits
// every class.
func NewFilterConfig(threshold float64, allowed []int) FilterConfig {
	cfg := FilterConfig{Threshold: threshold}
	if len(allowed) > 0 {
		cfg.Allowed = make(map[int]struct{}, len(allowed))
		for _, id := range allowed {
			cfg.Allowed[id] = struct{}{}
		}
	}
	return cfg
}

// Admits reports whether classID passes the allow-list.
func (c FilterConfig) Admits(classID int) bool {
	if c.Allowed == nil {
		return true
	}
	_, ok := c.Allowed[classID]
	return ok
}

// Filter keeps detections with Confidence >= cfg.Threshold whose class is
// admitted, preserving input order. It never fails; the result is non-nil.
func Filter(raw []Detection, cfg FilterConfig) []Detection {
	out := make([]Detection, 0, len(raw))
	for _, d := range raw {
		if d.Confidence < cfg.Threshold {
			continue
		}
		if !cfg.Admits(d.ClassID) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Settings publishes FilterConfig snapshots to the frame loop. Writers
// replace the whole snapshot; readers never observe a partial update.
type Settings struct {
	mu   sync.Mutex // serialises writers
	snap atomic.Pointer[FilterConfig]
}

// NewSettings validates threshold and returns settings holding the
// initial snapshot.
func NewSettings(threshold float64, allowed []int) (*Settings, error) {
	if err := validateThreshold(threshold); err != nil {
		return nil, err
	}
	s := &Settings{}
	cfg := NewFilterConfig(threshold, allowed)
	s.snap.Store(&cfg)
	return s, nil
}

// Load returns the current snapshot.
func (s *Settings) Load() FilterConfig {
	return *s.snap.Load()
}

// SetThreshold publishes a new threshold, keeping the allow-list.
func (s *Settings) SetThreshold(threshold float64) error {
	if err := validateThreshold(threshold); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := *s.snap.Load()
	next.Threshold = threshold
	s.snap.Store(&next)
	return nil
}

// SetAllowed publishes a new allow-list, keeping the threshold.
func (s *Settings) SetAllowed(allowed []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := NewFilterConfig(s.snap.Load().Threshold, allowed)
	s.snap.Store(&next)
}

func validateThreshold(v float64) error {
	if v < 0 || v > 1 || v != v {
		return fmt.Errorf("%w: got %v", ErrInvalidThreshold, v)
	}
	return nil
}
