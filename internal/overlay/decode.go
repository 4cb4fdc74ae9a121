package overlay

import (
	"encoding/json"

	"github.com/golang/geo/r2"

	"github.com/nitro/annoverlay/internal/domain"
)

const (
	defaultStroke      = "#ff0000"
	defaultStrokeWidth = 3
	defaultFontSize    = 16
)

// Style is shared by every primitive.
type Style struct {
	Stroke      string  `json:"stroke"`
	StrokeWidth float64 `json:"strokeWidth"`
}

// Primitive is a fully resolved, pixel space, shape. The set of implementations is closed: Circle, Rect, Line,
// Path and Text.
type Primitive interface {
	Kind() domain.Kind
	primitive()
}

type Circle struct {
	CX     float64 `json:"cx"`
	CY     float64 `json:"cy"`
	Radius float64 `json:"r"`
	Style
}

type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Style
}

type Line struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
	Style
}

type Path struct {
	Points []domain.Point `json:"points"`
	Style
}

type Text struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	FontSize float64 `json:"fontSize"`
	Content  string  `json:"content"`
	Style
}

func (Circle) Kind() domain.Kind { return domain.KindCircle }
func (Rect) Kind() domain.Kind   { return domain.KindRectangle }
func (Line) Kind() domain.Kind   { return domain.KindLine }
func (Path) Kind() domain.Kind   { return domain.KindFreehand }
func (Text) Kind() domain.Kind   { return domain.KindText }

func (Circle) primitive() {}
func (Rect) primitive()   {}
func (Line) primitive()   {}
func (Path) primitive()   {}
func (Text) primitive()   {}

func (c Circle) MarshalJSON() ([]byte, error) {
	type alias Circle
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: c.Kind().String(), alias: alias(c)})
}

func (r Rect) MarshalJSON() ([]byte, error) {
	type alias Rect
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: r.Kind().String(), alias: alias(r)})
}

func (l Line) MarshalJSON() ([]byte, error) {
	type alias Line
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: l.Kind().String(), alias: alias(l)})
}

func (p Path) MarshalJSON() ([]byte, error) {
	type alias Path
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: p.Kind().String(), alias: alias(p)})
}

func (t Text) MarshalJSON() ([]byte, error) {
	type alias Text
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: t.Kind().String(), alias: alias(t)})
}

// Decode resolves one record into a drawable primitive at the given target. The boolean is false when the record
// doesn't produce anything: unknown kinds, paths with less than two points and shapes without a position.
func Decode(record domain.Record, target Target) (Primitive, bool) {
	if record.Kind != domain.KindFreehand && record.Scheme == domain.SchemeNone {
		return nil, false
	}
	style := styleOf(record)
	percent := record.Scheme == domain.SchemePercentage
	f, p := record.Fractional, record.Percentage

	switch record.Kind {
	case domain.KindCircle:
		if percent {
			center := target.percent(p.Left, p.Top)
			return Circle{CX: center.X, CY: center.Y, Radius: p.Radius / 100 * target.shortSide(), Style: style}, true
		}
		center, radius := cornerCircle(target.fraction(f.StartX, f.StartY), target.fraction(f.EndX, f.EndY))
		return Circle{CX: center.X, CY: center.Y, Radius: radius, Style: style}, true

	case domain.KindRectangle:
		var a, b r2.Point
		if percent {
			a, b = target.percent(p.Left, p.Top), target.percent(p.Left+p.Width, p.Top+p.Height)
		} else {
			a, b = target.fraction(f.StartX, f.StartY), target.fraction(f.EndX, f.EndY)
		}
		rect := box(a, b)
		size := rect.Size()
		return Rect{X: rect.X.Lo, Y: rect.Y.Lo, Width: size.X, Height: size.Y, Style: style}, true

	case domain.KindLine:
		var a, b r2.Point
		if percent {
			a, b = target.percent(p.Left, p.Top), target.percent(p.X2, p.Y2)
		} else {
			a, b = target.fraction(f.StartX, f.StartY), target.fraction(f.EndX, f.EndY)
		}
		return Line{X1: a.X, Y1: a.Y, X2: b.X, Y2: b.Y, Style: style}, true

	case domain.KindFreehand:
		if len(record.Points) < 2 {
			return nil, false
		}
		points := make([]domain.Point, 0, len(record.Points))
		for _, point := range record.Points {
			pixel := target.fraction(point.X, point.Y)
			points = append(points, domain.Point{X: pixel.X, Y: pixel.Y})
		}
		return Path{Points: points, Style: style}, true

	case domain.KindText:
		if percent {
			anchor := target.percent(p.Left, p.Top)
			fontSize := float64(defaultFontSize)
			if p.FontSize > 0 {
				fontSize = p.FontSize / 100 * target.Height
			}
			return Text{X: anchor.X, Y: anchor.Y, FontSize: fontSize, Content: record.Text, Style: style}, true
		}
		anchor := target.fraction(f.StartX, f.StartY)
		return Text{X: anchor.X, Y: anchor.Y, FontSize: defaultFontSize, Content: record.Text, Style: style}, true

	case domain.KindUnknown:
		return nil, false
	}
	return nil, false
}

func styleOf(record domain.Record) Style {
	style := Style{Stroke: defaultStroke, StrokeWidth: defaultStrokeWidth}
	if stroke, ok := normalizeColor(record.Color); ok {
		style.Stroke = stroke
	}
	if record.StrokeWidth > 0 {
		style.StrokeWidth = record.StrokeWidth
	}
	return style
}
