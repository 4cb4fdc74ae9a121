package overlay

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nitro/annoverlay/internal/domain"
)

func fractional(kind domain.Kind, startX, startY, endX, endY float64) domain.Record {
	return domain.Record{
		Kind:       kind,
		Scheme:     domain.SchemeFractional,
		Fractional: domain.Fractional{StartX: startX, StartY: startY, EndX: endX, EndY: endY},
	}
}

var defaultStyle = Style{Stroke: defaultStroke, StrokeWidth: defaultStrokeWidth} // nolint: gochecknoglobals

func TestDecode(t *testing.T) {
	t.Parallel()

	target := Target{Width: 200, Height: 100}
	tests := []struct {
		message  string
		record   domain.Record
		expected Primitive
	}{
		{
			message:  "decode a rectangle",
			record:   fractional(domain.KindRectangle, 0.2, 0.2, 0.8, 0.8),
			expected: Rect{X: 40, Y: 20, Width: 120, Height: 60, Style: defaultStyle},
		},
		{
			message:  "decode a rectangle authored from the opposite corner",
			record:   fractional(domain.KindRectangle, 0.8, 0.8, 0.2, 0.2),
			expected: Rect{X: 40, Y: 20, Width: 120, Height: 60, Style: defaultStyle},
		},
		{
			message:  "decode a rectangle authored from the top right corner",
			record:   fractional(domain.KindRectangle, 0.8, 0.2, 0.2, 0.8),
			expected: Rect{X: 40, Y: 20, Width: 120, Height: 60, Style: defaultStyle},
		},
		{
			message:  "decode a circle with half the corner distance as radius",
			record:   fractional(domain.KindCircle, 0, 0, 1, 0),
			expected: Circle{CX: 100, CY: 0, Radius: 100, Style: defaultStyle},
		},
		{
			message:  "decode a line keeping the endpoint order",
			record:   fractional(domain.KindLine, 0.5, 1, 0, 0),
			expected: Line{X1: 100, Y1: 100, X2: 0, Y2: 0, Style: defaultStyle},
		},
		{
			message: "decode a text",
			record: domain.Record{
				Kind:       domain.KindText,
				Scheme:     domain.SchemeFractional,
				Fractional: domain.Fractional{StartX: 0.5, StartY: 0.5},
				Text:       "Left molar",
			},
			expected: Text{X: 100, Y: 50, FontSize: defaultFontSize, Content: "Left molar", Style: defaultStyle},
		},
		{
			message: "decode a freehand path",
			record: domain.Record{
				Kind:   domain.KindFreehand,
				Points: []domain.Point{{X: 0, Y: 0}, {X: 0.5, Y: 0.5}, {X: 1, Y: 1}},
			},
			expected: Path{
				Points: []domain.Point{{X: 0, Y: 0}, {X: 100, Y: 50}, {X: 200, Y: 100}},
				Style:  defaultStyle,
			},
		},
		{
			message: "decode a percentage circle against the short side",
			record: domain.Record{
				Kind:       domain.KindCircle,
				Scheme:     domain.SchemePercentage,
				Percentage: domain.Percentage{Left: 50, Top: 50, Radius: 10},
			},
			expected: Circle{CX: 100, CY: 50, Radius: 10, Style: defaultStyle},
		},
		{
			message: "decode a percentage rectangle with a negative size",
			record: domain.Record{
				Kind:       domain.KindRectangle,
				Scheme:     domain.SchemePercentage,
				Percentage: domain.Percentage{Left: 50, Top: 50, Width: -25, Height: -20},
			},
			expected: Rect{X: 50, Y: 30, Width: 50, Height: 20, Style: defaultStyle},
		},
		{
			message: "decode a percentage line",
			record: domain.Record{
				Kind:       domain.KindLine,
				Scheme:     domain.SchemePercentage,
				Percentage: domain.Percentage{Left: 10, Top: 10, X2: 50, Y2: 100},
			},
			expected: Line{X1: 20, Y1: 10, X2: 100, Y2: 100, Style: defaultStyle},
		},
		{
			message: "decode a percentage text with a relative font size",
			record: domain.Record{
				Kind:       domain.KindText,
				Scheme:     domain.SchemePercentage,
				Percentage: domain.Percentage{Left: 25, Top: 50, FontSize: 20},
				Text:       "note",
			},
			expected: Text{X: 50, Y: 50, FontSize: 20, Content: "note", Style: defaultStyle},
		},
		{
			message: "honour the record colour and stroke width",
			record: domain.Record{
				Kind:        domain.KindLine,
				Scheme:      domain.SchemeFractional,
				Fractional:  domain.Fractional{EndX: 1, EndY: 1},
				Color:       "Blue",
				StrokeWidth: 5,
			},
			expected: Line{X2: 200, Y2: 100, Style: Style{Stroke: "#0000ff", StrokeWidth: 5}},
		},
		{
			message: "fall back to red on an invalid colour",
			record: domain.Record{
				Kind:       domain.KindLine,
				Scheme:     domain.SchemeFractional,
				Fractional: domain.Fractional{EndX: 1},
				Color:      `red" onload="alert(1)`,
			},
			expected: Line{X2: 200, Style: defaultStyle},
		},
	}
	for _, tt := range tests {
		t.Run("Should "+tt.message, func(t *testing.T) {
			t.Parallel()

			primitive, ok := Decode(tt.record, target)
			require.True(t, ok)
			require.Equal(t, tt.expected, primitive)
		})
	}
}

func TestDecodeSkips(t *testing.T) {
	t.Parallel()

	target := Target{Width: 200, Height: 100}
	tests := []struct {
		message string
		record  domain.Record
	}{
		{
			message: "skip an unknown kind",
			record:  fractional(domain.KindUnknown, 0, 0, 1, 1),
		},
		{
			message: "skip a path without points",
			record:  domain.Record{Kind: domain.KindFreehand},
		},
		{
			message: "skip a path with a single point",
			record:  domain.Record{Kind: domain.KindFreehand, Points: []domain.Point{{X: 0.5, Y: 0.5}}},
		},
		{
			message: "skip a rectangle without a position",
			record:  domain.Record{Kind: domain.KindRectangle},
		},
		{
			message: "skip a circle without a position",
			record:  domain.Record{Kind: domain.KindCircle},
		},
		{
			message: "skip a line without a position",
			record:  domain.Record{Kind: domain.KindLine},
		},
		{
			message: "skip a text without a position",
			record:  domain.Record{Kind: domain.KindText, Text: "floating"},
		},
	}
	for _, tt := range tests {
		t.Run("Should "+tt.message, func(t *testing.T) {
			t.Parallel()

			primitive, ok := Decode(tt.record, target)
			require.False(t, ok)
			require.Nil(t, primitive)
		})
	}
}

func TestPrimitiveMarshalJSON(t *testing.T) {
	t.Parallel()

	payload, err := json.Marshal(Overlay{
		Width:      200,
		Height:     100,
		Primitives: []Primitive{Circle{CX: 1, CY: 2, Radius: 3, Style: defaultStyle}},
	})
	require.NoError(t, err)
	require.JSONEq(t, `{
		"width": 200,
		"height": 100,
		"primitives": [{"type":"circle","cx":1,"cy":2,"r":3,"stroke":"#ff0000","strokeWidth":3}]
	}`, string(payload))

	payload, err = json.Marshal(Overlay{Width: 1, Height: 1})
	require.NoError(t, err)
	require.JSONEq(t, `{"width":1,"height":1,"primitives":[]}`, string(payload))
}
