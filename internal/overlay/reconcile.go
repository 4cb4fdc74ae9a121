package overlay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nitro/annoverlay/internal/domain"
)

// Format identifies the envelope an annotation payload was stored in.
type Format int

const (
	FormatEmpty Format = iota
	FormatArray
	FormatShapes
	FormatAnnotations
	FormatObsolete
)

func (f Format) String() string {
	switch f {
	case FormatArray:
		return "array"
	case FormatShapes:
		return "shapes"
	case FormatAnnotations:
		return "annotations"
	case FormatObsolete:
		return "obsolete"
	default:
		return "empty"
	}
}

// Payload errors.
var (
	ErrObsoleteFormat = errors.New("obsolete annotation format, re-authoring required")
	ErrMixedSchemes   = errors.New("annotation payload mixes fractional and percentage coordinates")
)

// Payload is the reconciled form of a stored annotation payload. The envelope is resolved once, here, and never
// inspected again downstream.
type Payload struct {
	Format  Format
	Scheme  domain.Scheme
	Records []domain.Record

	// Dropped counts the entries that could not be decoded as a record.
	Dropped int
}

// Validate reports the payload level conditions that prevent rendering.
func (p Payload) Validate() error {
	if p.Format == FormatObsolete {
		return ErrObsoleteFormat
	}
	if p.Scheme == domain.SchemeMixed {
		return ErrMixedSchemes
	}
	return nil
}

var envelopes = []struct { // nolint: gochecknoglobals
	field  string
	format Format
}{
	{field: "shapes", format: FormatShapes},
	{field: "annotations", format: FormatAnnotations},
	{field: "objects", format: FormatObsolete},
}

// Reconcile classifies a raw annotation payload. The first matching shape wins: a bare array, an object with a
// `shapes` array, an object with an `annotations` array, and finally the obsolete `objects` graph, which is
// rejected without converting its content. Anything else is an empty payload. An error is only returned when
// the input is not valid JSON.
func Reconcile(raw []byte) (Payload, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Payload{Format: FormatEmpty}, nil
	}
	if !json.Valid(raw) {
		return Payload{}, errors.New("invalid annotation payload")
	}

	switch raw[0] {
	case '[':
		return newPayload(FormatArray, raw)
	case '{':
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return Payload{}, fmt.Errorf("fail to decode the annotation envelope: %w", err)
		}
		for _, e := range envelopes {
			field, ok := envelope[e.field]
			if !ok || !isArray(field) {
				continue
			}
			if e.format == FormatObsolete {
				return Payload{Format: FormatObsolete}, nil
			}
			return newPayload(e.format, field)
		}
	}
	return Payload{Format: FormatEmpty}, nil
}

func newPayload(format Format, rawRecords json.RawMessage) (Payload, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(rawRecords, &entries); err != nil {
		return Payload{}, fmt.Errorf("fail to decode the annotation records: %w", err)
	}

	p := Payload{Format: format, Records: make([]domain.Record, 0, len(entries))}
	for _, entry := range entries {
		var record domain.Record
		if err := json.Unmarshal(entry, &record); err != nil {
			p.Dropped++
			continue
		}
		p.Records = append(p.Records, record)
	}
	p.Scheme = resolveScheme(p.Records)
	return p, nil
}

func resolveScheme(records []domain.Record) domain.Scheme {
	result := domain.SchemeNone
	for _, record := range records {
		switch record.Scheme {
		case domain.SchemeNone:
			continue
		case domain.SchemeMixed:
			return domain.SchemeMixed
		}
		if result == domain.SchemeNone {
			result = record.Scheme
		} else if result != record.Scheme {
			return domain.SchemeMixed
		}
	}
	return result
}

func isArray(payload json.RawMessage) bool {
	payload = bytes.TrimSpace(payload)
	return len(payload) > 0 && payload[0] == '['
}
