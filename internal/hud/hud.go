// Package hud holds the small pieces of per-cycle display state: the
// instantaneous frame-rate meter and the transient notification banner.
package hud

import (
	"sync"
	"time"
)

// FrameRateMeter reports the instantaneous rate between consecutive ticks.
// It is owned by the frame loop and not safe for concurrent use.
type FrameRateMeter struct {
	prev time.Time
	set  bool
}

// Tick records now and returns 1/(now - previous tick) in frames per
// second. The first call, and any call where time did not advance, returns 0.
func (m *FrameRateMeter) Tick(now time.Time) float64 {
	prev, had := m.prev, m.set
	m.prev, m.set = now, true
	if !had {
		return 0
	}
	dt := now.Sub(prev).Seconds()
	if dt <= 0 {
		return 0
	}
	return 1 / dt
}

// Reset forgets the previous tick.
func (m *FrameRateMeter) Reset() {
	m.prev, m.set = time.Time{}, false
}

// DefaultNotificationWindow is how long a notification stays visible.
const DefaultNotificationWindow = 2 * time.Second

// Notification is a fired banner message.
type Notification struct {
	Message string
	FiredAt time.Time
}

// NotificationTimer holds at most one notification. A later Fire replaces
// the pending one. It is safe for concurrent use.
type NotificationTimer struct {
	mu      sync.Mutex
	window  time.Duration
	current *Notification
}

// NewNotificationTimer returns a timer with the given display window. A
// non-positive window selects DefaultNotificationWindow.
func NewNotificationTimer(window time.Duration) *NotificationTimer {
	if window <= 0 {
		window = DefaultNotificationWindow
	}
	return &NotificationTimer{window: window}
}

// Fire shows message from now on.
func (n *NotificationTimer) Fire(message string, now time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = &Notification{Message: message, FiredAt: now}
}

// Current returns the active message while now - FiredAt < window. Once
// expired the notification is cleared.
func (n *NotificationTimer) Current(now time.Time) (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return "", false
	}
	if now.Sub(n.current.FiredAt) >= n.window {
		n.current = nil
		return "", false
	}
	return n.current.Message, true
}

// Window returns the display window.
func (n *NotificationTimer) Window() time.Duration { return n.window }
