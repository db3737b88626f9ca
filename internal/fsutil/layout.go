package fsutil

import (
	"fmt"
	"path/filepath"
	"time"
)

// TimestampLayout is the time format embedded in output file names.
const TimestampLayout = "2006-01-02_15-04-05"

// Layout is the output directory tree written by a tracker run.
type Layout struct {
	Root string
	FS   FileSystem
}

// NewLayout returns a Layout rooted at root on the OS filesystem.
func NewLayout(root string) Layout {
	return Layout{Root: root, FS: OSFileSystem{}}
}

func (l Layout) MoviesDir() string      { return filepath.Join(l.Root, "movies") }
func (l Layout) ScreenshotsDir() string { return filepath.Join(l.Root, "screenshots") }
func (l Layout) LogsDir() string        { return filepath.Join(l.Root, "logs") }

// Ensure creates the movies, screenshots and logs directories.
func (l Layout) Ensure() error {
	for _, dir := range []string{l.MoviesDir(), l.ScreenshotsDir(), l.LogsDir()} {
		if err := l.FS.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// TimestampedName returns "<prefix>_<YYYY-MM-DD_HH-MM-SS>.<ext>".
func TimestampedName(prefix string, t time.Time, ext string) string {
	return fmt.Sprintf("%s_%s.%s", prefix, t.Format(TimestampLayout), ext)
}

// UniquePath returns dir/TimestampedName(prefix, t, ext). When that name is
// taken, "_1", "_2", ... is appended before the extension.
func UniquePath(fsys FileSystem, dir, prefix string, t time.Time, ext string) string {
	path := filepath.Join(dir, TimestampedName(prefix, t, ext))
	if !fsys.Exists(path) {
		return path
	}
	stamp := t.Format(TimestampLayout)
	for i := 1; ; i++ {
		path = filepath.Join(dir, fmt.Sprintf("%s_%s_%d.%s", prefix, stamp, i, ext))
		if !fsys.Exists(path) {
			return path
		}
	}
}
