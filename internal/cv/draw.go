package cv

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ErihKoh/video-detecting-and-tracking/internal/hud"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/pipeline"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/tracks"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/video"
)

// Preprocessor smooths noise with a 5x5 Gaussian blur and stretches the
// intensity range to [0, 255]. It implements pipeline.Preprocessor.
type Preprocessor struct{}

func (Preprocessor) Preprocess(frame *video.Frame) (*video.Frame, error) {
	src, err := ToMat(frame)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(src, &blurred, image.Pt(5, 5), 0, 0, gocv.BorderDefault)
	norm := gocv.NewMat()
	defer norm.Close()
	gocv.Normalize(blurred, &norm, 0, 255, gocv.NormMinMax)

	out, err := FromMat(norm)
	if err != nil {
		return nil, err
	}
	out.Seq, out.Timestamp = frame.Seq, frame.Timestamp
	return out, nil
}

var (
	white = color.RGBA{255, 255, 255, 0}
	red   = color.RGBA{255, 0, 0, 0}
	green = color.RGBA{0, 255, 0, 0}
	blue  = color.RGBA{0, 0, 255, 0}
)

const font = gocv.FontHersheySimplex

// Annotator draws the live overlay. It implements pipeline.Annotator.
type Annotator struct {
	// ShowControls adds the key binding hint under the status line.
	ShowControls bool
}

func (a Annotator) Annotate(frame *video.Frame, ov pipeline.Overlay) error {
	m, err := ToMat(frame)
	if err != nil {
		return err
	}
	defer m.Close()

	for _, t := range ov.Tracks {
		if t.State != tracks.TrackConfirmed {
			continue
		}
		drawTrack(&m, t, ov)
	}

	right := m.Cols() - 300
	gocv.PutText(&m, hud.ClockLabel(ov.Now), image.Pt(right, 30), font, 0.8, white, 2)
	if ov.Recording {
		gocv.PutText(&m, hud.Stopwatch(ov.RecordingElapsed), image.Pt(right, 70), font, 0.7, red, 2)
	}

	gocv.PutText(&m, hud.FPSLabel(ov.FPS), image.Pt(10, 30), font, 0.7, green, 2)
	status := red
	if ov.Recording {
		status = green
	}
	gocv.PutText(&m, hud.RecordingLabel(ov.Recording), image.Pt(10, 60), font, 0.7, status, 2)
	y := 90
	if a.ShowControls {
		gocv.PutText(&m, hud.ControlsHint, image.Pt(10, y), font, 0.5, white, 1)
		y += 30
	}
	if ov.Notification != "" {
		gocv.PutText(&m, ov.Notification, image.Pt(10, y), font, 0.8, green, 2)
	}
	return copyInto(frame, m)
}

// drawTrack draws the box, the label and the centroid trail. Class 0 is
// drawn green, everything else blue.
func drawTrack(m *gocv.Mat, t tracks.Track, ov pipeline.Overlay) {
	c := blue
	if t.ClassID == 0 {
		c = green
	}
	r := image.Rect(int(t.Box.X), int(t.Box.Y), int(t.Box.X+t.Box.W), int(t.Box.Y+t.Box.H))
	gocv.Rectangle(m, r, c, 2)
	gocv.PutText(m, hud.TrackLabel(ov.ClassNames.Name(t.ClassID), t.ID), image.Pt(r.Min.X+5, r.Min.Y-8), font, 0.5, c, 2)

	if len(t.Trajectory) < 2 {
		return
	}
	pts := make([]image.Point, len(t.Trajectory))
	for i, p := range t.Trajectory {
		pts[i] = image.Pt(int(p.X), int(p.Y))
	}
	pv := gocv.NewPointsVectorFromPoints([][]image.Point{pts})
	defer pv.Close()
	gocv.Polylines(m, pv, false, c, 2)
}
