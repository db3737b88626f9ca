package video

import "math"

// Point is a position in source-frame pixels.
type Point struct {
	X, Y float64
}

// Box is an axis-aligned rectangle in source-frame pixels, anchored at its
// top-left corner.
type Box struct {
	X, Y, W, H float64
}

// BoxFromCorners builds a Box from (xmin, ymin, xmax, ymax).
func BoxFromCorners(xmin, ymin, xmax, ymax float64) Box {
	return Box{X: xmin, Y: ymin, W: xmax - xmin, H: ymax - ymin}
}

func (b Box) Min() Point { return Point{b.X, b.Y} }
func (b Box) Max() Point { return Point{b.X + b.W, b.Y + b.H} }

// Centroid returns ((xmin+xmax)/2, (ymin+ymax)/2).
func (b Box) Centroid() Point {
	return Point{X: b.X + b.W/2, Y: b.Y + b.H/2}
}

// Area returns W*H, or zero for degenerate boxes.
func (b Box) Area() float64 {
	if b.W <= 0 || b.H <= 0 {
		return 0
	}
	return b.W * b.H
}

// IoU returns the intersection-over-union of b and o in [0, 1].
func (b Box) IoU(o Box) float64 {
	ix := math.Min(b.X+b.W, o.X+o.W) - math.Max(b.X, o.X)
	iy := math.Min(b.Y+b.H, o.Y+o.H) - math.Max(b.Y, o.Y)
	if ix <= 0 || iy <= 0 {
		return 0
	}
	inter := ix * iy
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Scale multiplies all coordinates by sx horizontally and sy vertically.
func (b Box) Scale(sx, sy float64) Box {
	return Box{X: b.X * sx, Y: b.Y * sy, W: b.W * sx, H: b.H * sy}
}

// Clamp limits the box to a width x height frame.
func (b Box) Clamp(width, height int) Box {
	w, h := float64(width), float64(height)
	x0 := math.Max(0, math.Min(b.X, w))
	y0 := math.Max(0, math.Min(b.Y, h))
	x1 := math.Max(0, math.Min(b.X+b.W, w))
	y1 := math.Max(0, math.Min(b.Y+b.H, h))
	return BoxFromCorners(x0, y0, x1, y1)
}
