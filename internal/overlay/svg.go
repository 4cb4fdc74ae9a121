package overlay

import (
	"fmt"
	"io"

	svg "github.com/ajstarks/svgo/float"
)

// The overlay sits on top of the image and must let pointer input through to it.
const svgRootStyle = `style="position:absolute;top:0;left:0;pointer-events:none"`

// Sub-pixel positions from the percentage scheme need more than integer precision.
const svgDecimals = 2

// WriteSVG writes the overlay as a standalone SVG document sized to the render target.
func WriteSVG(w io.Writer, o Overlay) error {
	ew := &errWriter{w: w}

	canvas := svg.New(ew)
	canvas.Decimals = svgDecimals
	canvas.Start(o.Width, o.Height, fmt.Sprintf(`viewBox="0 0 %g %g"`, o.Width, o.Height), svgRootStyle)
	for _, primitive := range o.Primitives {
		writePrimitive(canvas, primitive)
	}
	canvas.End()
	return ew.err
}

func writePrimitive(canvas *svg.SVG, primitive Primitive) {
	switch p := primitive.(type) {
	case Circle:
		canvas.Circle(p.CX, p.CY, p.Radius, strokeStyle(p.Style))
	case Rect:
		canvas.Rect(p.X, p.Y, p.Width, p.Height, strokeStyle(p.Style))
	case Line:
		canvas.Line(p.X1, p.Y1, p.X2, p.Y2, strokeStyle(p.Style))
	case Path:
		xs := make([]float64, len(p.Points))
		ys := make([]float64, len(p.Points))
		for i, point := range p.Points {
			xs[i], ys[i] = point.X, point.Y
		}
		canvas.Polyline(xs, ys, strokeStyle(p.Style)+";stroke-linecap:round;stroke-linejoin:round")
	case Text:
		canvas.Text(p.X, p.Y, p.Content, fmt.Sprintf("fill:%s;font-size:%.*fpx;font-family:sans-serif", p.Stroke, svgDecimals, p.FontSize))
	}
}

func strokeStyle(s Style) string {
	return fmt.Sprintf("fill:none;stroke:%s;stroke-width:%g", s.Stroke, s.StrokeWidth)
}

// errWriter keeps the first write error, svgo doesn't report them.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) Write(p []byte) (int, error) {
	if ew.err != nil {
		return 0, ew.err
	}
	n, err := ew.w.Write(p)
	if err != nil {
		ew.err = err
	}
	return n, err
}
