package overlay

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// Segments used to approximate a circle outline.
const circleSegments = 96

// Composite draws the overlay into the image. The overlay is scaled when its size differs from the image bounds.
func Composite(dst draw.Image, o Overlay) {
	bounds := dst.Bounds()
	if bounds.Empty() || o.Empty() {
		return
	}

	scaleX, scaleY := 1.0, 1.0
	if o.Width > 0 && o.Height > 0 {
		scaleX = float64(bounds.Dx()) / o.Width
		scaleY = float64(bounds.Dy()) / o.Height
	}
	c := compositor{
		dst:    dst,
		bounds: bounds,
		scaleX: scaleX,
		scaleY: scaleY,
		raster: vector.NewRasterizer(bounds.Dx(), bounds.Dy()),
	}
	for _, primitive := range o.Primitives {
		c.draw(primitive)
	}
}

type compositor struct {
	dst    draw.Image
	bounds image.Rectangle
	scaleX float64
	scaleY float64
	raster *vector.Rasterizer
}

type point struct{ x, y float64 }

func (c compositor) draw(primitive Primitive) {
	switch p := primitive.(type) {
	case Circle:
		outline := make([]point, 0, circleSegments+1)
		for i := 0; i <= circleSegments; i++ {
			angle := 2 * math.Pi * float64(i) / circleSegments
			outline = append(outline, c.point(p.CX+p.Radius*math.Cos(angle), p.CY+p.Radius*math.Sin(angle)))
		}
		c.stroke(outline, p.Style)
	case Rect:
		c.stroke([]point{
			c.point(p.X, p.Y),
			c.point(p.X+p.Width, p.Y),
			c.point(p.X+p.Width, p.Y+p.Height),
			c.point(p.X, p.Y+p.Height),
			c.point(p.X, p.Y),
		}, p.Style)
	case Line:
		c.stroke([]point{c.point(p.X1, p.Y1), c.point(p.X2, p.Y2)}, p.Style)
	case Path:
		outline := make([]point, 0, len(p.Points))
		for _, pt := range p.Points {
			outline = append(outline, c.point(pt.X, pt.Y))
		}
		c.stroke(outline, p.Style)
	case Text:
		c.text(p)
	}
}

func (c compositor) point(x, y float64) point {
	return point{x: x * c.scaleX, y: y * c.scaleY}
}

// stroke rasterizes every segment of the polyline as a quad. All the quads share the same winding, so overlapping
// joints don't cancel each other.
func (c compositor) stroke(points []point, style Style) {
	if len(points) < 2 {
		return
	}
	half := style.StrokeWidth * math.Sqrt(c.scaleX*c.scaleY) / 2
	if half <= 0 {
		return
	}

	c.raster.Reset(c.bounds.Dx(), c.bounds.Dy())
	c.raster.DrawOp = draw.Over
	for i := 1; i < len(points); i++ {
		a, b := points[i-1], points[i]
		dx, dy := b.x-a.x, b.y-a.y
		length := math.Hypot(dx, dy)
		if length == 0 {
			continue
		}
		nx, ny := -dy/length*half, dx/length*half
		c.raster.MoveTo(float32(a.x+nx), float32(a.y+ny))
		c.raster.LineTo(float32(b.x+nx), float32(b.y+ny))
		c.raster.LineTo(float32(b.x-nx), float32(b.y-ny))
		c.raster.LineTo(float32(a.x-nx), float32(a.y-ny))
		c.raster.ClosePath()
	}
	c.raster.Draw(c.dst, c.bounds, image.NewUniform(styleColor(style)), image.Point{})
}

// text uses the fixed size basic face, the font size of the primitive is not honoured on rasters.
func (c compositor) text(t Text) {
	anchor := c.point(t.X, t.Y)
	d := font.Drawer{
		Dst:  c.dst,
		Src:  image.NewUniform(styleColor(t.Style)),
		Face: basicfont.Face7x13,
		Dot: fixed.Point26_6{
			X: fixed.I(c.bounds.Min.X + int(math.Round(anchor.x))),
			Y: fixed.I(c.bounds.Min.Y + int(math.Round(anchor.y))),
		},
	}
	d.DrawString(t.Content)
}

func styleColor(style Style) color.Color {
	if c, ok := parseColor(style.Stroke); ok {
		return c
	}
	return defaultColor
}
