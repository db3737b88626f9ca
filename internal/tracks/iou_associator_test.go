package tracks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ErihKoh/video-detecting-and-tracking/internal/detect"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/video"
)

func boxDet(x, y float64, class int) detect.Detection {
	return detect.Detection{Box: video.Box{X: x, Y: y, W: 40, H: 80}, Confidence: 0.9, ClassID: class}
}

func TestIoUAssociator_KeepsIdentityAcrossSmallMoves(t *testing.T) {
	t.Parallel()

	a := NewIoUAssociator(DefaultIoUAssociatorConfig())

	first, err := a.Associate([]detect.Detection{boxDet(0, 0, 0), boxDet(300, 0, 2)}, nil)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, 1, first[0].ID)
	assert.Equal(t, 2, first[1].ID)

	// Swapped input order with a small shift keeps the ids.
	second, err := a.Associate([]detect.Detection{boxDet(305, 2, 2), boxDet(4, 2, 0)}, nil)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, 2, second[0].ID)
	assert.Equal(t, 1, second[1].ID)
	assert.Equal(t, 4.0, second[1].Box.X)
}

func TestIoUAssociator_ClassGate(t *testing.T) {
	t.Parallel()

	a := NewIoUAssociator(DefaultIoUAssociatorConfig())
	_, err := a.Associate([]detect.Detection{boxDet(0, 0, 0)}, nil)
	require.NoError(t, err)

	obs, err := a.Associate([]detect.Detection{boxDet(0, 0, 1)}, nil)
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, 2, obs[0].ID, "a different class never inherits an identity")
}

func TestIoUAssociator_ConfirmedAndAgeing(t *testing.T) {
	t.Parallel()

	a := NewIoUAssociator(IoUAssociatorConfig{MinIoU: 0.3, MaxAge: 2, MinHits: 3})
	var obs []Observation
	for i := 0; i < 3; i++ {
		var err error
		obs, err = a.Associate([]detect.Detection{boxDet(0, 0, 0)}, nil)
		require.NoError(t, err)
	}
	require.Len(t, obs, 1)
	assert.True(t, obs[0].Confirmed)

	obs, err := a.Associate(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, obs)
	assert.Equal(t, 1, a.Live())

	_, err = a.Associate(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, a.Live(), "forgotten after MaxAge unmatched cycles")

	obs, err = a.Associate([]detect.Detection{boxDet(0, 0, 0)}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, obs[0].ID)
	assert.False(t, obs[0].Confirmed)
}

func TestIoUAssociator_LowOverlapIsNewIdentity(t *testing.T) {
	t.Parallel()

	a := NewIoUAssociator(DefaultIoUAssociatorConfig())
	_, err := a.Associate([]detect.Detection{boxDet(0, 0, 0)}, nil)
	require.NoError(t, err)

	obs, err := a.Associate([]detect.Detection{boxDet(35, 0, 0)}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, obs[0].ID)
}

// Five frames of one static object: tentative for the first two, confirmed
// from the third on, with the same id throughout.
func TestFiveFrameStream(t *testing.T) {
	t.Parallel()

	r := NewRegistry(DefaultTrackerConfig(), NewIoUAssociator(DefaultIoUAssociatorConfig()))
	dets := []detect.Detection{{Box: video.Box{X: 100, Y: 100, W: 50, H: 100}, Confidence: 0.9, ClassID: 0}}

	for i := 1; i <= 5; i++ {
		got, err := r.Update(dets, frameAt(i))
		require.NoError(t, err)

		if i < 3 {
			assert.Empty(t, got, "frame %d", i)
			trk, ok := r.Lookup(1)
			require.True(t, ok)
			assert.Equal(t, TrackTentative, trk.State)
			continue
		}
		require.Len(t, got, 1, "frame %d", i)
		assert.Equal(t, 1, got[0].ID)
		assert.Equal(t, TrackConfirmed, got[0].State)
		assert.Len(t, got[0].Trajectory, i-2)
		assert.Equal(t, video.Point{X: 125, Y: 150}, got[0].Trajectory[0])
	}
}
