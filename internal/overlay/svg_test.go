package overlay

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nitro/annoverlay/internal/domain"
)

func TestWriteSVG(t *testing.T) {
	t.Parallel()

	o := Overlay{
		Width:  200,
		Height: 100,
		Primitives: []Primitive{
			Rect{X: 40, Y: 20, Width: 120, Height: 60, Style: defaultStyle},
			Circle{CX: 100, CY: 0, Radius: 100, Style: Style{Stroke: "#0000ff", StrokeWidth: 2}},
			Line{X1: 0, Y1: 0, X2: 200, Y2: 100, Style: defaultStyle},
			Path{Points: []domain.Point{{X: 1, Y: 2}, {X: 3, Y: 4}}, Style: defaultStyle},
			Text{X: 10, Y: 20, FontSize: 16, Content: "a < b", Style: defaultStyle},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSVG(&buf, o))
	result := buf.String()

	require.Contains(t, result, `width="200.00"`)
	require.Contains(t, result, `height="100.00"`)
	require.Contains(t, result, `viewBox="0 0 200 100"`)
	require.Contains(t, result, `pointer-events:none`)
	require.Contains(t, result, `<rect x="40.00" y="20.00" width="120.00" height="60.00" style="fill:none;stroke:#ff0000;stroke-width:3"`)
	require.Contains(t, result, `<circle cx="100.00" cy="0.00" r="100.00" style="fill:none;stroke:#0000ff;stroke-width:2"`)
	require.Contains(t, result, `<line x1="0.00" y1="0.00" x2="200.00" y2="100.00"`)
	require.Contains(t, result, `<polyline points="1.00,2.00 3.00,4.00"`)
	require.Contains(t, result, `a &lt; b`)
	require.Contains(t, result, `</svg>`)
}

func TestWriteSVGSubPixel(t *testing.T) {
	t.Parallel()

	o := Overlay{
		Width:  333,
		Height: 111,
		Primitives: []Primitive{
			Circle{CX: 10.25, CY: 20.5, Radius: 0.4, Style: defaultStyle},
			Text{X: 1.5, Y: 2.25, FontSize: 13.32, Content: "note", Style: defaultStyle},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSVG(&buf, o))
	result := buf.String()

	require.Contains(t, result, `viewBox="0 0 333 111"`)
	require.Contains(t, result, `<circle cx="10.25" cy="20.50" r="0.40"`)
	require.Contains(t, result, `<text x="1.50" y="2.25"`)
	require.Contains(t, result, `font-size:13.32px`)
}

func TestWriteSVGEmpty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteSVG(&buf, Overlay{Width: 10, Height: 5}))
	require.Contains(t, buf.String(), `width="10.00"`)
	require.NotContains(t, buf.String(), "<rect")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestWriteSVGWriterError(t *testing.T) {
	t.Parallel()

	require.EqualError(t, WriteSVG(failingWriter{}, Overlay{Width: 10, Height: 5}), "broken pipe")
}
