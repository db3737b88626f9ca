// Package activitylog records which confirmed tracks were on screen each
// cycle, as a human-readable text log.
package activitylog

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ErihKoh/video-detecting-and-tracking/internal/fsutil"
)

// FileName is the log file created in the layout's logs directory.
const FileName = "activity_log.txt"

// Header is the first line of every log file.
const Header = "Object Detection and Tracking Log"

const timeLayout = "2006-01-02 15:04:05"

// Entry is one confirmed track observed during a cycle.
type Entry struct {
	Timestamp time.Time
	ClassID   int
	ClassName string
	TrackID   int
}

// String formats the entry as a log line without the trailing newline.
func (e Entry) String() string {
	return fmt.Sprintf("Time: %s, Class: %s, ID: %d", e.Timestamp.Format(timeLayout), e.ClassName, e.TrackID)
}

// Writer appends batches to the activity log. It is safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	path   string
	w      io.WriteCloser
	lines  uint64
	closed bool
}

// Create truncates the log under layout.LogsDir() and writes the header.
func Create(layout fsutil.Layout) (*Writer, error) {
	if err := layout.FS.MkdirAll(layout.LogsDir(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	path := filepath.Join(layout.LogsDir(), FileName)
	w, err := layout.FS.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create activity log: %w", err)
	}
	if _, err := io.WriteString(w, Header+"\n"); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to write activity log header: %w", err)
	}
	return &Writer{path: path, w: w}, nil
}

// Path returns the log file path.
func (l *Writer) Path() string { return l.path }

// WriteBatch appends one line per entry. An empty batch writes nothing.
func (l *Writer) WriteBatch(batch []Entry) error {
	if len(batch) == 0 {
		return nil
	}
	var b strings.Builder
	for _, e := range batch {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return fmt.Errorf("activity log %s is closed", l.path)
	}
	if _, err := io.WriteString(l.w, b.String()); err != nil {
		return fmt.Errorf("failed to append activity log: %w", err)
	}
	l.lines += uint64(len(batch))
	return nil
}

// Lines returns the number of entries written.
func (l *Writer) Lines() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lines
}

// Close closes the file. It is idempotent.
func (l *Writer) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.w.Close()
}
