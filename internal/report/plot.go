package report

import (
	"fmt"
	"image/color"
	"path/filepath"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ErihKoh/video-detecting-and-tracking/internal/detect"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/fsutil"
)

// Plot files produced by WritePlots.
const (
	TrajectoryPlotPrefix = "trajectories"
	FPSPlotPrefix        = "fps"
)

// WritePlots renders the trajectory and frame-rate plots as PNG files in
// dir and returns their paths. Nothing is written for an empty run.
func (c *Collector) WritePlots(dir string, names detect.ClassNames, frameW, frameH int, at time.Time) ([]string, error) {
	samples := c.Samples()
	if len(samples) == 0 {
		return nil, nil
	}

	trajPath := filepath.Join(dir, fsutil.TimestampedName(TrajectoryPlotPrefix, at, "png"))
	if err := c.writeTrajectoryPlot(trajPath, names, frameW, frameH); err != nil {
		return nil, err
	}
	fpsPath := filepath.Join(dir, fsutil.TimestampedName(FPSPlotPrefix, at, "png"))
	if err := writeFPSPlot(fpsPath, samples); err != nil {
		return []string{trajPath}, err
	}
	return []string{trajPath, fpsPath}, nil
}

// writeTrajectoryPlot draws each track's centroid path in image
// coordinates, with the y axis pointing down like the frame.
func (c *Collector) writeTrajectoryPlot(path string, names detect.ClassNames, frameW, frameH int) error {
	p := plot.New()
	p.Title.Text = "Track trajectories"
	p.X.Label.Text = "x (px)"
	p.Y.Label.Text = "y (px)"
	p.Y.Scale = plot.InvertedScale{Normalizer: plot.LinearScale{}}
	if frameW > 0 && frameH > 0 {
		p.X.Min, p.X.Max = 0, float64(frameW)
		p.Y.Min, p.Y.Max = 0, float64(frameH)
	}

	paths := c.Paths()
	colors := generateColors(len(paths))
	for i, tp := range paths {
		if len(tp.Points) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(tp.Points))
		for j, pt := range tp.Points {
			pts[j] = plotter.XY{X: pt.X, Y: pt.Y}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = colors[i]
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("%s #%d", names.Name(tp.ClassID), tp.ID), line)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(10*vg.Inch, 7.5*vg.Inch, path); err != nil {
		return fmt.Errorf("save trajectory plot: %w", err)
	}
	return nil
}

func writeFPSPlot(path string, samples []Sample) error {
	p := plot.New()
	p.Title.Text = "Frame rate"
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "FPS"

	fps := make(plotter.XYs, 0, len(samples))
	tracks := make(plotter.XYs, 0, len(samples))
	for _, s := range samples {
		if s.FPS > 0 {
			fps = append(fps, plotter.XY{X: float64(s.Seq), Y: s.FPS})
		}
		tracks = append(tracks, plotter.XY{X: float64(s.Seq), Y: float64(s.ConfirmedTracks)})
	}

	if len(fps) > 0 {
		line, err := plotter.NewLine(fps)
		if err != nil {
			return err
		}
		line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add("fps", line)
	}
	trackLine, err := plotter.NewLine(tracks)
	if err != nil {
		return err
	}
	trackLine.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	trackLine.Width = vg.Points(1)
	trackLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(trackLine)
	p.Legend.Add("confirmed tracks", trackLine)
	p.Legend.Top = true

	if err := p.Save(14*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save fps plot: %w", err)
	}
	return nil
}

// generateColors returns n distinct hues.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		r, g, b := hslToRGB(float64(i)/float64(n), 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q
	return uint8(hueToRGB(p, q, h+1.0/3.0) * 255), uint8(hueToRGB(p, q, h) * 255), uint8(hueToRGB(p, q, h-1.0/3.0) * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 0.5:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
