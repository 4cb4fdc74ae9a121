package overlay

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Overlay is the vector drawing produced for one render pass. It's sized to the target and anchored at the top
// left corner of the image.
type Overlay struct {
	Width      float64
	Height     float64
	Primitives []Primitive
}

// Empty reports if there is nothing to draw.
func (o Overlay) Empty() bool {
	return len(o.Primitives) == 0
}

func (o Overlay) MarshalJSON() ([]byte, error) {
	primitives := o.Primitives
	if primitives == nil {
		primitives = []Primitive{}
	}
	return json.Marshal(struct {
		Width      float64     `json:"width"`
		Height     float64     `json:"height"`
		Primitives []Primitive `json:"primitives"`
	}{Width: o.Width, Height: o.Height, Primitives: primitives})
}

type rendererMetrics interface {
	ObservePayload(format string)
	ObservePrimitive(kind string)
	ObserveDropped(reason string)
	ObserveRender(seconds float64)
}

// Renderer maps annotation payloads into overlays. It never fails: every condition that prevents drawing results
// in an empty overlay.
type Renderer struct {
	Logger  zerolog.Logger
	Metrics rendererMetrics
}

// Render the payload at the given target.
func (r Renderer) Render(payload Payload, target Target) Overlay {
	start := time.Now()
	result := Overlay{Width: target.Width, Height: target.Height}
	r.observePayload(payload)

	if err := payload.Validate(); err != nil {
		msg := "Annotation payload mixes coordinate schemes"
		if errors.Is(err, ErrObsoleteFormat) {
			msg = "Obsolete annotation format, re-authoring required"
		}
		r.Logger.Warn().Err(err).Str("format", payload.Format.String()).Msg(msg)
		return result
	}
	if !target.Valid() || len(payload.Records) == 0 {
		return result
	}

	result.Primitives = make([]Primitive, 0, len(payload.Records))
	for i, record := range payload.Records {
		primitive, ok := Decode(record, target)
		if !ok {
			r.Logger.Debug().Int("index", i).Str("kind", record.Kind.String()).Msg("Annotation record skipped")
			r.observeDropped("record")
			continue
		}
		result.Primitives = append(result.Primitives, primitive)
		if r.Metrics != nil {
			r.Metrics.ObservePrimitive(primitive.Kind().String())
		}
	}

	if r.Metrics != nil {
		r.Metrics.ObserveRender(time.Since(start).Seconds())
	}
	return result
}

// RenderGated renders the payload only once the gate is ready. A target without a valid size falls back to the
// natural size of the image.
func (r Renderer) RenderGated(payload Payload, gate *Gate, target Target) Overlay {
	if gate == nil || !gate.Ready() {
		return Overlay{Width: target.Width, Height: target.Height}
	}
	if !target.Valid() {
		target = gate.Size()
	}
	return r.Render(payload, target)
}

// RenderRaw reconciles and renders a raw payload. Payloads that aren't valid JSON render nothing.
func (r Renderer) RenderRaw(raw []byte, target Target) Overlay {
	payload, err := Reconcile(raw)
	if err != nil {
		r.Logger.Warn().Err(err).Msg("Fail to reconcile the annotation payload")
		r.observeDropped("payload")
		return Overlay{Width: target.Width, Height: target.Height}
	}
	return r.Render(payload, target)
}

func (r Renderer) observePayload(payload Payload) {
	if r.Metrics == nil {
		return
	}
	r.Metrics.ObservePayload(payload.Format.String())
	for i := 0; i < payload.Dropped; i++ {
		r.Metrics.ObserveDropped("malformed")
	}
}

func (r Renderer) observeDropped(reason string) {
	if r.Metrics != nil {
		r.Metrics.ObserveDropped(reason)
	}
}
