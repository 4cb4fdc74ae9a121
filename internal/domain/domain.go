package domain

import (
	"encoding/json"
	"strings"
)

// Kind is the geometric kind of an annotation record.
type Kind int

const (
	KindUnknown Kind = iota
	KindCircle
	KindRectangle
	KindLine
	KindFreehand
	KindText
)

// ParseKind maps the wire name of a shape to its Kind. Unrecognised names map to KindUnknown.
func ParseKind(name string) Kind {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "circle":
		return KindCircle
	case "rectangle", "rect":
		return KindRectangle
	case "line":
		return KindLine
	case "freehand", "path", "pencil":
		return KindFreehand
	case "text":
		return KindText
	default:
		return KindUnknown
	}
}

func (k Kind) String() string {
	switch k {
	case KindCircle:
		return "circle"
	case KindRectangle:
		return "rectangle"
	case KindLine:
		return "line"
	case KindFreehand:
		return "freehand"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// Scheme is the coordinate space a record stores its position in.
type Scheme int

const (
	// SchemeNone is used by records without any position field, they don't take part on the payload scheme.
	SchemeNone Scheme = iota
	// SchemeFractional stores positions as a 0-1 proportion of the image dimension.
	SchemeFractional
	// SchemePercentage stores positions as a 0-100 proportion of the image dimension.
	SchemePercentage
	// SchemeMixed flags a record or payload that carries both schemes.
	SchemeMixed
)

func (s Scheme) String() string {
	switch s {
	case SchemeFractional:
		return "fractional"
	case SchemePercentage:
		return "percentage"
	case SchemeMixed:
		return "mixed"
	default:
		return "none"
	}
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Fractional struct {
	StartX float64
	StartY float64
	EndX   float64
	EndY   float64
}

type Percentage struct {
	Left     float64
	Top      float64
	Width    float64
	Height   float64
	Radius   float64
	X2       float64
	Y2       float64
	FontSize float64
}

// Record is one drawn shape as produced by the annotation authoring tool.
type Record struct {
	Kind        Kind
	Scheme      Scheme
	Fractional  Fractional
	Percentage  Percentage
	Points      []Point
	Color       string
	StrokeWidth float64
	Text        string
}

type rawRecord struct {
	Type        string   `json:"type"`
	Kind        string   `json:"kind"`
	StartX      *float64 `json:"startX"`
	StartY      *float64 `json:"startY"`
	EndX        *float64 `json:"endX"`
	EndY        *float64 `json:"endY"`
	Left        *float64 `json:"leftPercent"`
	Top         *float64 `json:"topPercent"`
	Width       *float64 `json:"widthPercent"`
	Height      *float64 `json:"heightPercent"`
	Radius      *float64 `json:"radiusPercent"`
	X2          *float64 `json:"x2Percent"`
	Y2          *float64 `json:"y2Percent"`
	FontSize    *float64 `json:"fontSizePercent"`
	Points      []Point  `json:"points"`
	Color       string   `json:"color"`
	Stroke      string   `json:"stroke"`
	StrokeWidth float64  `json:"strokeWidth"`
	Text        string   `json:"text"`
}

// UnmarshalJSON decodes a record and resolves its kind and coordinate scheme.
func (r *Record) UnmarshalJSON(payload []byte) error {
	var raw rawRecord
	if err := json.Unmarshal(payload, &raw); err != nil {
		return err
	}

	name := raw.Type
	if name == "" {
		name = raw.Kind
	}

	fractional := anySet(raw.StartX, raw.StartY, raw.EndX, raw.EndY)
	percentage := anySet(raw.Left, raw.Top, raw.Width, raw.Height, raw.Radius, raw.X2, raw.Y2, raw.FontSize)
	scheme := SchemeNone
	switch {
	case fractional && percentage:
		scheme = SchemeMixed
	case fractional:
		scheme = SchemeFractional
	case percentage:
		scheme = SchemePercentage
	}

	color := raw.Stroke
	if color == "" {
		color = raw.Color
	}

	*r = Record{
		Kind:   ParseKind(name),
		Scheme: scheme,
		Fractional: Fractional{
			StartX: value(raw.StartX),
			StartY: value(raw.StartY),
			EndX:   value(raw.EndX),
			EndY:   value(raw.EndY),
		},
		Percentage: Percentage{
			Left:     value(raw.Left),
			Top:      value(raw.Top),
			Width:    value(raw.Width),
			Height:   value(raw.Height),
			Radius:   value(raw.Radius),
			X2:       value(raw.X2),
			Y2:       value(raw.Y2),
			FontSize: value(raw.FontSize),
		},
		Points:      raw.Points,
		Color:       color,
		StrokeWidth: raw.StrokeWidth,
		Text:        raw.Text,
	}
	return nil
}

func anySet(values ...*float64) bool {
	for _, v := range values {
		if v != nil {
			return true
		}
	}
	return false
}

func value(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
