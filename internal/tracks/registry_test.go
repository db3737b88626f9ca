package tracks

import (
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ErihKoh/video-detecting-and-tracking/internal/config"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/detect"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/timeutil"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/video"
)

// scriptedAssociator replays one observation list per call.
type scriptedAssociator struct {
	script [][]Observation
	errAt  map[int]error
	calls  int
}

func (s *scriptedAssociator) Associate([]detect.Detection, *video.Frame) ([]Observation, error) {
	i := s.calls
	s.calls++
	if err, ok := s.errAt[i]; ok {
		return nil, err
	}
	if i < len(s.script) {
		return s.script[i], nil
	}
	return nil, nil
}

func obsAt(id int, x float64) Observation {
	return Observation{ID: id, ClassID: 0, Box: video.Box{X: x, Y: 10, W: 20, H: 40}}
}

func repeatObs(n int, o ...Observation) [][]Observation {
	out := make([][]Observation, n)
	for i := range out {
		out[i] = o
	}
	return out
}

// allTracks returns every live track sorted by ID.
func allTracks(r *Registry) []Track {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Track, 0, len(r.tracks))
	for _, trk := range r.tracks {
		out = append(out, trk.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func frameAt(seq int) *video.Frame {
	f := video.NewFrame(4, 4, 3)
	f.Seq = uint64(seq)
	f.Timestamp = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(seq) * 30 * time.Millisecond)
	return f
}

func TestRegistry_ConfirmBoundary(t *testing.T) {
	t.Parallel()

	a := &scriptedAssociator{script: repeatObs(3, obsAt(7, 0))}
	r := NewRegistry(DefaultTrackerConfig(), a)

	for i := 1; i <= 2; i++ {
		got, err := r.Update(nil, frameAt(i))
		require.NoError(t, err)
		assert.Empty(t, got, "tentative after %d hits", i)
		trk, ok := r.Lookup(7)
		require.True(t, ok)
		assert.Equal(t, TrackTentative, trk.State)
		assert.Equal(t, i, trk.Hits)
	}

	got, err := r.Update(nil, frameAt(3))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 7, got[0].ID)
	assert.Equal(t, TrackConfirmed, got[0].State)
	assert.Len(t, got[0].Trajectory, 1, "trajectory starts on confirmation")
}

func TestRegistry_DeleteBoundary(t *testing.T) {
	t.Parallel()

	script := repeatObs(3, obsAt(1, 0))
	a := &scriptedAssociator{script: script}
	r := NewRegistry(DefaultTrackerConfig(), a)

	var retired []Track
	r.SetRetireHook(func(t Track) { retired = append(retired, t) })

	for i := 0; i < 3; i++ {
		_, err := r.Update(nil, frameAt(i))
		require.NoError(t, err)
	}

	for miss := 1; miss <= 29; miss++ {
		got, err := r.Update(nil, frameAt(3+miss))
		require.NoError(t, err)
		require.Len(t, got, 1, "confirmed track coasts through miss %d", miss)
		assert.Equal(t, miss, got[0].Misses)
		assert.Equal(t, 0, got[0].Hits)
	}
	assert.Empty(t, retired)

	got, err := r.Update(nil, frameAt(33))
	require.NoError(t, err)
	assert.Empty(t, got)
	trk, ok := r.Lookup(1)
	require.True(t, ok, "deleted track is visible until the next update")
	assert.Equal(t, TrackDeleted, trk.State)
	require.Len(t, retired, 1)
	assert.Equal(t, 1, retired[0].ID)

	_, err = r.Update(nil, frameAt(34))
	require.NoError(t, err)
	_, ok = r.Lookup(1)
	assert.False(t, ok)
}

func TestRegistry_TrajectoryGrowsWhileConfirmed(t *testing.T) {
	t.Parallel()

	var script [][]Observation
	for i := 0; i < 6; i++ {
		script = append(script, []Observation{obsAt(3, float64(i*10))})
	}
	a := &scriptedAssociator{script: script}
	r := NewRegistry(TrackerConfig{HitsToConfirm: 3, MaxMisses: 30, MaxTrajectoryLength: 2}, a)

	var got []Track
	for i := 0; i < 7; i++ {
		var err error
		got, err = r.Update(nil, frameAt(i))
		require.NoError(t, err)
	}

	require.Len(t, got, 1)
	// Frames 2..5 matched with x=20..50, frame 6 coasted at x=50. The
	// capacity-two trail keeps the last two centroids.
	assert.Equal(t, []video.Point{{X: 60, Y: 30}, {X: 60, Y: 30}}, got[0].Trajectory)
	assert.Equal(t, 1, got[0].Misses)
}

func TestRegistry_IdentityStability(t *testing.T) {
	t.Parallel()

	var script [][]Observation
	for i := 0; i < 10; i++ {
		script = append(script, []Observation{obsAt(11, float64(i)), obsAt(12, float64(200+i))})
	}
	r := NewRegistry(DefaultTrackerConfig(), &scriptedAssociator{script: script})

	for i := 0; i < 10; i++ {
		got, err := r.Update(nil, frameAt(i))
		require.NoError(t, err)
		if i >= 2 {
			require.Len(t, got, 2)
			assert.Equal(t, 11, got[0].ID)
			assert.Equal(t, 12, got[1].ID)
			assert.Len(t, got[0].Trajectory, i-1)
		}
	}
	created, confirmed := r.Stats()
	assert.Equal(t, 2, created)
	assert.Equal(t, 2, confirmed)
}

func TestRegistry_AssociationFailureKeepsState(t *testing.T) {
	t.Parallel()

	boom := errors.New("reid model crashed")
	a := &scriptedAssociator{
		script: repeatObs(5, obsAt(4, 0)),
		errAt:  map[int]error{3: boom},
	}
	r := NewRegistry(DefaultTrackerConfig(), a)

	for i := 0; i < 3; i++ {
		_, err := r.Update(nil, frameAt(i))
		require.NoError(t, err)
	}
	before := allTracks(r)

	got, err := r.Update(nil, frameAt(3))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAssociationFailed)
	assert.Contains(t, err.Error(), "reid model crashed")
	require.Len(t, got, 1)
	assert.Equal(t, before, allTracks(r), "no track mutated on failure")
}

func TestRegistry_RebirthOfDeletedID(t *testing.T) {
	t.Parallel()

	cfg := TrackerConfig{HitsToConfirm: 2, MaxMisses: 1, MaxTrajectoryLength: 8}
	a := &scriptedAssociator{script: [][]Observation{
		{obsAt(9, 0)},
		{},
		{obsAt(9, 0)},
	}}
	r := NewRegistry(cfg, a)

	_, err := r.Update(nil, frameAt(0))
	require.NoError(t, err)
	_, err = r.Update(nil, frameAt(1))
	require.NoError(t, err)
	trk, _ := r.Lookup(9)
	assert.Equal(t, TrackDeleted, trk.State)

	_, err = r.Update(nil, frameAt(2))
	require.NoError(t, err)
	trk, ok := r.Lookup(9)
	require.True(t, ok)
	assert.Equal(t, TrackTentative, trk.State)
	assert.Equal(t, 1, trk.Hits)
}

func TestRegistry_TrustAssociatorConfirmation(t *testing.T) {
	t.Parallel()

	o := obsAt(2, 0)
	o.Confirmed = true
	cfg := DefaultTrackerConfig()
	cfg.TrustAssociatorConfirmation = true
	r := NewRegistry(cfg, &scriptedAssociator{script: [][]Observation{{o}}})

	got, err := r.Update(nil, frameAt(0))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, TrackConfirmed, got[0].State)
}

func TestRegistry_CountsAndConfig(t *testing.T) {
	t.Parallel()

	a := &scriptedAssociator{script: repeatObs(3, obsAt(1, 0), obsAt(2, 50))}
	r := NewRegistry(TrackerConfigFromTuning(config.EmptyTuningConfig()), a)

	_, err := r.Update(nil, frameAt(0))
	require.NoError(t, err)
	total, tentative, confirmed, deleted := r.Counts()
	assert.Equal(t, []int{2, 2, 0, 0}, []int{total, tentative, confirmed, deleted})

	hits := 1
	r.UpdateConfig(func(c *TrackerConfig) {
		c.ApplyTuning(&config.TuningConfig{HitsToConfirm: &hits})
	})
	got, err := r.Update(nil, frameAt(1))
	require.NoError(t, err)
	assert.Len(t, got, 2, "lowered confirm threshold applies to live tracks")

	total, tentative, confirmed, deleted = r.Counts()
	assert.Equal(t, []int{2, 0, 2, 0}, []int{total, tentative, confirmed, deleted})
	created, confirmedTotal := r.Stats()
	assert.Equal(t, 2, created)
	assert.Equal(t, 2, confirmedTotal)
}

func TestTrackerConfig_ApplyTuningKeepsOtherFields(t *testing.T) {
	t.Parallel()

	hits, misses, trail := 5, 12, 16
	c := TrackerConfig{HitsToConfirm: 3, MaxMisses: 30, MaxTrajectoryLength: 128, TrustAssociatorConfirmation: true}
	c.ApplyTuning(&config.TuningConfig{HitsToConfirm: &hits, MaxMisses: &misses, MaxTrajectoryLength: &trail})
	assert.Equal(t, TrackerConfig{HitsToConfirm: 5, MaxMisses: 12, MaxTrajectoryLength: 16, TrustAssociatorConfirmation: true}, c)
}

func TestRegistry_StampsUntimedFramesWithClock(t *testing.T) {
	t.Parallel()

	clock := timeutil.NewMockClock(time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC))
	r := NewRegistry(DefaultTrackerConfig(), &scriptedAssociator{script: repeatObs(2, obsAt(3, 0))})
	r.SetClock(clock)

	_, err := r.Update(nil, video.NewFrame(4, 4, 3))
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = r.Update(nil, nil)
	require.NoError(t, err)

	trk, ok := r.Lookup(3)
	require.True(t, ok)
	assert.Equal(t, clock.Now().Add(-time.Second), trk.FirstSeen)
	assert.Equal(t, clock.Now(), trk.LastSeen)
}

func TestRegistry_DuplicateObservationCountsOnce(t *testing.T) {
	t.Parallel()

	a := &scriptedAssociator{script: [][]Observation{{obsAt(5, 0), obsAt(5, 100)}}}
	r := NewRegistry(DefaultTrackerConfig(), a)
	_, err := r.Update(nil, frameAt(0))
	require.NoError(t, err)

	trk, ok := r.Lookup(5)
	require.True(t, ok)
	assert.Equal(t, 1, trk.Hits)
	assert.Equal(t, 0.0, trk.Box.X)
}
