package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordUnmarshalJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		message  string
		payload  string
		expected Record
	}{
		{
			message: "decode a fractional rectangle",
			payload: `{"type":"rect","startX":0.2,"startY":0.3,"endX":0.8,"endY":0.9,"color":"blue"}`,
			expected: Record{
				Kind:       KindRectangle,
				Scheme:     SchemeFractional,
				Fractional: Fractional{StartX: 0.2, StartY: 0.3, EndX: 0.8, EndY: 0.9},
				Color:      "blue",
			},
		},
		{
			message: "decode a percentage circle using the kind field",
			payload: `{"kind":"circle","leftPercent":50,"topPercent":25,"radiusPercent":10}`,
			expected: Record{
				Kind:       KindCircle,
				Scheme:     SchemePercentage,
				Percentage: Percentage{Left: 50, Top: 25, Radius: 10},
			},
		},
		{
			message: "prefer stroke over color",
			payload: `{"type":"line","startX":0,"startY":0,"endX":1,"endY":1,"color":"blue","stroke":"green","strokeWidth":5}`,
			expected: Record{
				Kind:        KindLine,
				Scheme:      SchemeFractional,
				Fractional:  Fractional{EndX: 1, EndY: 1},
				Color:       "green",
				StrokeWidth: 5,
			},
		},
		{
			message: "flag a record carrying both schemes",
			payload: `{"type":"rect","startX":0.1,"leftPercent":10}`,
			expected: Record{
				Kind:       KindRectangle,
				Scheme:     SchemeMixed,
				Fractional: Fractional{StartX: 0.1},
				Percentage: Percentage{Left: 10},
			},
		},
		{
			message: "keep the points of a freehand path",
			payload: `{"type":"pencil","points":[{"x":0.1,"y":0.2},{"x":0.3,"y":0.4}]}`,
			expected: Record{
				Kind:   KindFreehand,
				Scheme: SchemeNone,
				Points: []Point{{X: 0.1, Y: 0.2}, {X: 0.3, Y: 0.4}},
			},
		},
		{
			message: "map an unknown type to KindUnknown",
			payload: `{"type":"hexagon","startX":0.1}`,
			expected: Record{
				Kind:       KindUnknown,
				Scheme:     SchemeFractional,
				Fractional: Fractional{StartX: 0.1},
			},
		},
	}
	for _, tt := range tests {
		t.Run("Should "+tt.message, func(t *testing.T) {
			t.Parallel()

			var record Record
			require.NoError(t, json.Unmarshal([]byte(tt.payload), &record))
			require.Equal(t, tt.expected, record)
		})
	}
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	require.Equal(t, KindRectangle, ParseKind(" Rectangle "))
	require.Equal(t, KindFreehand, ParseKind("path"))
	require.Equal(t, KindUnknown, ParseKind(""))
	require.Equal(t, "freehand", KindFreehand.String())
}
