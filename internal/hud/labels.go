package hud

import (
	"fmt"
	"time"
)

// ControlsHint lists the window key bindings.
const ControlsHint = "Press 'R' to toggle recording | Press 'S' for screenshot | Press 'Q' to quit"

// ClockLabel formats the wall-clock overlay.
func ClockLabel(now time.Time) string {
	return now.Format("2006-01-02 15:04:05")
}

// Stopwatch formats an elapsed recording time as HH:MM:SS. Hours are not
// wrapped at 24.
func Stopwatch(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, s%3600/60, s%60)
}

func RecordingLabel(on bool) string {
	if on {
		return "Recording: ON"
	}
	return "Recording: OFF"
}

func FPSLabel(fps float64) string {
	return fmt.Sprintf("FPS: %.2f", fps)
}

// TrackLabel is drawn above each confirmed track's box.
func TrackLabel(className string, id int) string {
	return fmt.Sprintf("Class: %s ID: %d", className, id)
}
