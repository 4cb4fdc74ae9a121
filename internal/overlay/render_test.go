package overlay

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const records = `[
	{"type":"rectangle","startX":0.2,"startY":0.2,"endX":0.8,"endY":0.8},
	{"type":"circle","startX":0,"startY":0,"endX":1,"endY":0,"color":"blue"},
	{"type":"line","startX":0.1,"startY":0.1,"endX":0.9,"endY":0.5},
	{"type":"freehand","points":[{"x":0.1,"y":0.1},{"x":0.2,"y":0.4},{"x":0.3,"y":0.2}]},
	{"type":"text","startX":0.5,"startY":0.5,"text":"Lesion"},
	{"type":"hexagon","startX":0.5,"startY":0.5},
	{"type":"freehand","points":[{"x":0.1,"y":0.1}]}
]`

type recordingMetrics struct {
	payloads   []string
	primitives []string
	dropped    []string
	renders    int
}

func (m *recordingMetrics) ObservePayload(format string)  { m.payloads = append(m.payloads, format) }
func (m *recordingMetrics) ObservePrimitive(kind string)  { m.primitives = append(m.primitives, kind) }
func (m *recordingMetrics) ObserveDropped(reason string)  { m.dropped = append(m.dropped, reason) }
func (m *recordingMetrics) ObserveRender(seconds float64) { m.renders++ }

func TestRendererFormatIndependence(t *testing.T) {
	t.Parallel()

	r := Renderer{Logger: zerolog.Nop()}
	target := Target{Width: 200, Height: 100}
	expected := r.RenderRaw([]byte(records), target)
	require.Len(t, expected.Primitives, 5)

	for _, payload := range []string{
		`{"shapes":` + records + `}`,
		`{"annotations":` + records + `}`,
	} {
		require.Equal(t, expected, r.RenderRaw([]byte(payload), target))
	}
}

func TestRendererEmptyOverlays(t *testing.T) {
	t.Parallel()

	target := Target{Width: 200, Height: 100}
	tests := []struct {
		message string
		payload string
		target  Target
	}{
		{
			message: "render nothing for the obsolete format",
			payload: `{"objects":` + records + `}`,
			target:  target,
		},
		{
			message: "render nothing for mixed schemes",
			payload: `[{"type":"rect","startX":0.1,"startY":0.1,"endX":0.2,"endY":0.2},{"type":"rect","leftPercent":10}]`,
			target:  target,
		},
		{
			message: "render nothing for an empty payload",
			payload: `[]`,
			target:  target,
		},
		{
			message: "render nothing for invalid JSON",
			payload: `[{`,
			target:  target,
		},
		{
			message: "render nothing for a zero target",
			payload: records,
		},
	}
	for _, tt := range tests {
		t.Run("Should "+tt.message, func(t *testing.T) {
			t.Parallel()

			r := Renderer{Logger: zerolog.Nop()}
			result := r.RenderRaw([]byte(tt.payload), tt.target)
			require.True(t, result.Empty())
			require.Equal(t, tt.target.Width, result.Width)
			require.Equal(t, tt.target.Height, result.Height)
		})
	}
}

func TestRendererRescales(t *testing.T) {
	t.Parallel()

	r := Renderer{Logger: zerolog.Nop()}
	payload, err := Reconcile([]byte(records))
	require.NoError(t, err)

	small := r.Render(payload, Target{Width: 200, Height: 100})
	large := r.Render(payload, Target{Width: 400, Height: 200})
	require.Len(t, large.Primitives, len(small.Primitives))
	require.Equal(t, 400.0, large.Width)
	require.Equal(t, 200.0, large.Height)

	for i := range small.Primitives {
		switch s := small.Primitives[i].(type) {
		case Rect:
			l := large.Primitives[i].(Rect)
			require.InDelta(t, s.X*2, l.X, 1e-9)
			require.InDelta(t, s.Y*2, l.Y, 1e-9)
			require.InDelta(t, s.Width*2, l.Width, 1e-9)
			require.InDelta(t, s.Height*2, l.Height, 1e-9)
		case Circle:
			l := large.Primitives[i].(Circle)
			require.InDelta(t, s.CX*2, l.CX, 1e-9)
			require.InDelta(t, s.CY*2, l.CY, 1e-9)
			require.InDelta(t, s.Radius*2, l.Radius, 1e-9)
		case Line:
			l := large.Primitives[i].(Line)
			require.InDelta(t, s.X1*2, l.X1, 1e-9)
			require.InDelta(t, s.Y2*2, l.Y2, 1e-9)
		case Path:
			l := large.Primitives[i].(Path)
			require.Len(t, l.Points, len(s.Points))
			for j := range s.Points {
				require.InDelta(t, s.Points[j].X*2, l.Points[j].X, 1e-9)
				require.InDelta(t, s.Points[j].Y*2, l.Points[j].Y, 1e-9)
			}
		case Text:
			l := large.Primitives[i].(Text)
			require.InDelta(t, s.X*2, l.X, 1e-9)
			require.InDelta(t, s.Y*2, l.Y, 1e-9)
		default:
			t.Fatalf("unexpected primitive %T", s)
		}
	}
}

func TestRendererGated(t *testing.T) {
	t.Parallel()

	r := Renderer{Logger: zerolog.Nop()}
	payload, err := Reconcile([]byte(records))
	require.NoError(t, err)

	var gate Gate
	require.True(t, r.RenderGated(payload, &gate, Target{Width: 200, Height: 100}).Empty())
	require.True(t, r.RenderGated(payload, nil, Target{Width: 200, Height: 100}).Empty())

	img := newFakeImage()
	gate.Attach(img)
	require.True(t, r.RenderGated(payload, &gate, Target{Width: 200, Height: 100}).Empty())

	img.load(200, 100)
	natural := r.RenderGated(payload, &gate, Target{})
	require.Equal(t, 200.0, natural.Width)
	require.Equal(t, 100.0, natural.Height)
	require.Len(t, natural.Primitives, 5)

	resized := r.RenderGated(payload, &gate, Target{Width: 400, Height: 200})
	require.Equal(t, 400.0, resized.Width)
	require.Equal(t, Rect{X: 80, Y: 40, Width: 240, Height: 120, Style: defaultStyle}, resized.Primitives[0])
}

func TestRendererMetrics(t *testing.T) {
	t.Parallel()

	metrics := &recordingMetrics{}
	r := Renderer{Logger: zerolog.Nop(), Metrics: metrics}
	r.RenderRaw([]byte(`[1,`+records[1:]), Target{Width: 200, Height: 100})

	require.Equal(t, []string{"array"}, metrics.payloads)
	require.Equal(t, []string{"rectangle", "circle", "line", "freehand", "text"}, metrics.primitives)
	require.Equal(t, []string{"malformed", "record", "record"}, metrics.dropped)
	require.Equal(t, 1, metrics.renders)
}
