package overlay

import (
	"math"

	"github.com/golang/geo/r2"
)

// Target is the pixel size of the raster image at render time.
type Target struct {
	Width  float64
	Height float64
}

// Valid reports if both dimensions are positive.
func (t Target) Valid() bool {
	return t.Width > 0 && t.Height > 0
}

// fraction maps a point stored as a 0-1 proportion into pixel space.
func (t Target) fraction(x, y float64) r2.Point {
	return r2.Point{X: x * t.Width, Y: y * t.Height}
}

// percent maps a point stored as a 0-100 proportion into pixel space.
func (t Target) percent(x, y float64) r2.Point {
	return r2.Point{X: x / 100 * t.Width, Y: y / 100 * t.Height}
}

// shortSide is the reference dimension for percentage radii.
func (t Target) shortSide() float64 {
	return math.Min(t.Width, t.Height)
}

// box normalizes two corners into a rectangle, the order in which the corners were authored doesn't matter.
func box(a, b r2.Point) r2.Rect {
	return r2.RectFromPoints(a, b)
}

// cornerCircle is the circle inscribed by the two corners of a drag: centered at their midpoint, with half their
// distance as radius.
func cornerCircle(a, b r2.Point) (r2.Point, float64) {
	return a.Add(b).Mul(0.5), a.Sub(b).Norm() / 2
}
