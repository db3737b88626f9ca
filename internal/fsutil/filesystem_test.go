package fsutil

import (
	"io"
	"path/filepath"
	"testing"
	"time"
)

func TestOSFileSystem_Roundtrip(t *testing.T) {
	fs := OSFileSystem{}
	dir := filepath.Join(t.TempDir(), "a", "b")

	if err := fs.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if !fs.Exists(dir) {
		t.Fatal("expected directory to exist")
	}

	path := filepath.Join(dir, "log.txt")
	w, err := fs.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	io.WriteString(w, "one\n")
	w.Close()

	w, err = fs.OpenAppend(path)
	if err != nil {
		t.Fatalf("OpenAppend failed: %v", err)
	}
	io.WriteString(w, "two\n")
	w.Close()

	data, err := fs.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "one\ntwo\n" {
		t.Errorf("got %q", data)
	}

	names, err := fs.List(dir)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(names) != 1 || names[0] != "log.txt" {
		t.Errorf("List() = %v", names)
	}
}

func TestMemoryFileSystem_WritesVisibleBeforeClose(t *testing.T) {
	mfs := NewMemoryFileSystem()
	if err := mfs.MkdirAll("/out/logs", 0o755); err != nil {
		t.Fatal(err)
	}

	w, _ := mfs.Create("/out/logs/a.txt")
	io.WriteString(w, "header\n")

	data, err := mfs.ReadFile("/out/logs/a.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "header\n" {
		t.Errorf("got %q", data)
	}

	a, _ := mfs.OpenAppend("/out/logs/a.txt")
	io.WriteString(a, "line\n")
	a.Close()
	if _, err := a.Write([]byte("late")); err == nil {
		t.Error("expected write after close to fail")
	}

	data, _ = mfs.ReadFile("/out/logs/a.txt")
	if string(data) != "header\nline\n" {
		t.Errorf("got %q", data)
	}

	if !mfs.Exists("/out") || !mfs.Exists("/out/logs") {
		t.Error("MkdirAll should create parents")
	}
	names, err := mfs.List("/out/logs")
	if err != nil || len(names) != 1 || names[0] != "a.txt" {
		t.Errorf("List() = %v, %v", names, err)
	}
	if _, err := mfs.List("/missing"); err == nil {
		t.Error("expected error listing missing dir")
	}
	if _, err := mfs.ReadFile("/missing.txt"); err == nil {
		t.Error("expected error reading missing file")
	}
}

func TestLayout(t *testing.T) {
	mfs := NewMemoryFileSystem()
	l := Layout{Root: "/data", FS: mfs}

	if err := l.Ensure(); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	for _, dir := range []string{"/data/movies", "/data/screenshots", "/data/logs"} {
		if !mfs.Exists(dir) {
			t.Errorf("expected %s to exist", dir)
		}
	}
}

func TestUniquePath(t *testing.T) {
	mfs := NewMemoryFileSystem()
	ts := time.Date(2026, 10, 19, 8, 5, 3, 0, time.UTC)

	if got := TimestampedName("output", ts, "mp4"); got != "output_2026-10-19_08-05-03.mp4" {
		t.Errorf("TimestampedName() = %q", got)
	}

	first := UniquePath(mfs, "/m", "output", ts, "mp4")
	if first != "/m/output_2026-10-19_08-05-03.mp4" {
		t.Errorf("first = %q", first)
	}
	mfs.Touch(first)

	second := UniquePath(mfs, "/m", "output", ts, "mp4")
	if second != "/m/output_2026-10-19_08-05-03_1.mp4" {
		t.Errorf("second = %q", second)
	}
	mfs.Touch(second)

	if third := UniquePath(mfs, "/m", "output", ts, "mp4"); third != "/m/output_2026-10-19_08-05-03_2.mp4" {
		t.Errorf("third = %q", third)
	}
}
