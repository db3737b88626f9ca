package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ErihKoh/video-detecting-and-tracking/internal/activitylog"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/monitoring"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/recording"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/tracks"
)

var logf = monitoring.Component("store")

func unixMs(t time.Time) int64 { return t.UnixMilli() }

func fromUnixMs(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

// WriteBatch stores one row per entry in a single transaction. It
// satisfies the pipeline's batch sink.
func (db *DB) WriteBatch(batch []activitylog.Entry) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin batch: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO detections (ts_unix_ms, track_id, class_id, class_name) VALUES (?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}
	defer stmt.Close()
	for _, e := range batch {
		if _, err := stmt.Exec(unixMs(e.Timestamp), e.TrackID, e.ClassID, e.ClassName); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert detection for track %d: %w", e.TrackID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// RecentDetections returns up to limit rows, newest first.
func (db *DB) RecentDetections(limit int) ([]activitylog.Entry, error) {
	rows, err := db.Query(`SELECT ts_unix_ms, track_id, class_id, class_name FROM detections
		ORDER BY ts_unix_ms DESC, detection_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []activitylog.Entry
	for rows.Next() {
		var (
			ts int64
			e  activitylog.Entry
		)
		if err := rows.Scan(&ts, &e.TrackID, &e.ClassID, &e.ClassName); err != nil {
			return nil, err
		}
		e.Timestamp = fromUnixMs(ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ClassCount is the number of distinct tracks and logged sightings of a
// class.
type ClassCount struct {
	ClassName string `json:"class"`
	Tracks    int    `json:"tracks"`
	Sightings int    `json:"sightings"`
}

// ClassCounts aggregates the detections table by class, most seen first.
func (db *DB) ClassCounts() ([]ClassCount, error) {
	rows, err := db.Query(`SELECT class_name, COUNT(DISTINCT track_id), COUNT(*) FROM detections
		GROUP BY class_name ORDER BY COUNT(*) DESC, class_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ClassCount
	for rows.Next() {
		var c ClassCount
		if err := rows.Scan(&c.ClassName, &c.Tracks, &c.Sightings); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SessionStarted inserts the session row. Failures are logged; recording
// continues regardless.
func (db *DB) SessionStarted(s recording.Session) {
	_, err := db.Exec(`INSERT INTO recording_sessions (session_id, path, started_unix_ms, width, height, fps)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID.String(), s.Path, unixMs(s.StartedAt), s.Width, s.Height, s.FPS)
	if err != nil {
		logf("failed to record session start %s: %v", s.ID, err)
	}
}

// SessionStopped finalises the session row.
func (db *DB) SessionStopped(s recording.Session) {
	_, err := db.Exec(`UPDATE recording_sessions SET stopped_unix_ms = ?, frames = ?, write_errors = ?
		WHERE session_id = ?`,
		unixMs(s.StoppedAt), s.Frames, s.WriteErrors, s.ID.String())
	if err != nil {
		logf("failed to record session stop %s: %v", s.ID, err)
	}
}

// SessionRecord is a stored recording session.
type SessionRecord struct {
	ID          string        `json:"id"`
	Path        string        `json:"path"`
	StartedAt   time.Time     `json:"started_at"`
	StoppedAt   *time.Time    `json:"stopped_at,omitempty"`
	Width       int           `json:"width"`
	Height      int           `json:"height"`
	FPS         float64       `json:"fps"`
	Frames      uint64        `json:"frames"`
	WriteErrors uint64        `json:"write_errors"`
	Duration    time.Duration `json:"duration_ns"`
}

// Sessions returns all recording sessions, oldest first.
func (db *DB) Sessions() ([]SessionRecord, error) {
	rows, err := db.Query(`SELECT session_id, path, started_unix_ms, stopped_unix_ms, width, height, fps, frames, write_errors
		FROM recording_sessions ORDER BY started_unix_ms, session_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var (
			r       SessionRecord
			started int64
			stopped sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.Path, &started, &stopped, &r.Width, &r.Height, &r.FPS, &r.Frames, &r.WriteErrors); err != nil {
			return nil, err
		}
		r.StartedAt = fromUnixMs(started)
		if stopped.Valid {
			t := fromUnixMs(stopped.Int64)
			r.StoppedAt = &t
			r.Duration = t.Sub(r.StartedAt)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecordRetiredTrack stores the lifetime summary of a deleted track. Its
// signature matches the registry's retire hook.
func (db *DB) RecordRetiredTrack(t tracks.Track) {
	if err := db.InsertTrack(t, time.Now()); err != nil {
		logf("failed to record track %d: %v", t.ID, err)
	}
}

// InsertTrack stores a track summary retired at the given time.
func (db *DB) InsertTrack(t tracks.Track, retired time.Time) error {
	_, err := db.Exec(`INSERT INTO tracks (track_id, class_id, first_seen_unix_ms, last_seen_unix_ms,
		age_cycles, trajectory_points, path_length_px, retired_unix_ms) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ClassID, unixMs(t.FirstSeen), unixMs(t.LastSeen), t.Age, len(t.Trajectory), t.PathLength(), unixMs(retired))
	return err
}

// TrackRecord is a stored track summary.
type TrackRecord struct {
	TrackID          int       `json:"track_id"`
	ClassID          int       `json:"class_id"`
	FirstSeen        time.Time `json:"first_seen"`
	LastSeen         time.Time `json:"last_seen"`
	AgeCycles        int       `json:"age_cycles"`
	TrajectoryPoints int       `json:"trajectory_points"`
	PathLength       float64   `json:"path_length_px"`
}

// Tracks returns retired track summaries in retirement order.
func (db *DB) Tracks() ([]TrackRecord, error) {
	rows, err := db.Query(`SELECT track_id, class_id, first_seen_unix_ms, last_seen_unix_ms, age_cycles,
		trajectory_points, path_length_px FROM tracks ORDER BY retired_unix_ms, rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TrackRecord
	for rows.Next() {
		var (
			r           TrackRecord
			first, last int64
		)
		if err := rows.Scan(&r.TrackID, &r.ClassID, &first, &last, &r.AgeCycles, &r.TrajectoryPoints, &r.PathLength); err != nil {
			return nil, err
		}
		r.FirstSeen = fromUnixMs(first)
		r.LastSeen = fromUnixMs(last)
		out = append(out, r)
	}
	return out, rows.Err()
}
