// ABOUTME: Encoder abstraction between the annotation model and backend JSON
// ABOUTME: Defines RawEntry, the Encoder interface, and the per-set dispatcher

package wire

import (
	"log/slog"

	"github.com/2389/annosync/internal/annotation"
)

// RawEntry is an annotation as stored by a remote backend. Its shape is
// family- and version-specific and is never interpreted outside this package.
type RawEntry map[string]any

// Encoder converts between the internal annotation representation and one
// backend family's raw JSON entry for one geometry.
//
// Encode reports ok=false when a required precondition is missing (for
// example no authenticated user); that means "do not upload", not a schema
// error. Decode reports ok=false on any schema mismatch; callers log and
// skip the entry, never abort a batch.
type Encoder interface {
	Encode(a annotation.Annotation) (RawEntry, bool)
	Decode(key string, raw RawEntry) (annotation.Annotation, bool)

	// Uploadable is the policy gate deciding whether an annotation is
	// eligible for remote persistence at all, independent of whether it
	// encodes successfully. Delete paths apply it to the decoded cached
	// entry to decide whether the backend ever saw the annotation.
	Uploadable(a annotation.Annotation) bool
}

// Set holds the encoders for one (family, kind, version) collection, keyed
// by geometry, plus the dispatch logic that picks an encoder for an
// incoming raw entry.
type Set struct {
	family  annotation.Family
	kind    string
	version int
	byGeom  map[annotation.Geometry]Encoder
}

// Family returns the backend family this set encodes for.
func (s *Set) Family() annotation.Family { return s.family }

// Kind returns the collection's configured default kind.
func (s *Set) Kind() string { return s.kind }

// Version returns the wire schema version.
func (s *Set) Version() int { return s.version }

// ForGeometry returns the encoder for a geometry.
func (s *Set) ForGeometry(g annotation.Geometry) (Encoder, bool) {
	e, ok := s.byGeom[g]
	return e, ok
}

// ForAnnotation returns the encoder matching the annotation's geometry.
func (s *Set) ForAnnotation(a annotation.Annotation) (Encoder, bool) {
	return s.ForGeometry(a.Geometry)
}

// ForID classifies an id and returns the matching encoder.
func (s *Set) ForID(id string) (Encoder, bool) {
	return s.ForGeometry(annotation.TypeOf(id))
}

// Decode dispatches a raw entry to the right geometry encoder and decodes
// it. Legacy entries missing their discriminant tag get one synthesized
// before dispatch: family A entries default their "Kind" label from the
// collection kind, family B entries default their "kind" geometry tag from
// the key shape.
func (s *Set) Decode(key string, raw RawEntry, logger *slog.Logger) (annotation.Annotation, bool) {
	var g annotation.Geometry
	switch s.family {
	case annotation.FamilyA:
		g = annotation.TypeOf(key)
		if _, ok := raw["Kind"]; !ok && s.kind != "" {
			raw["Kind"] = s.kind
		}
	case annotation.FamilyB:
		tag, ok := raw["kind"].(string)
		if !ok || tag == "" {
			g = annotation.TypeOf(key)
			if g != annotation.GeometryInvalid {
				raw["kind"] = geometryTag(g)
			}
		} else {
			g = tagGeometry(tag)
		}
	}
	enc, ok := s.byGeom[g]
	if !ok {
		if logger != nil {
			logger.Warn("no encoder for entry", "key", key, "geometry", g.String())
		}
		return annotation.Annotation{}, false
	}
	return enc.Decode(key, raw)
}

// geometryTag maps a geometry to the family B wire tag.
func geometryTag(g annotation.Geometry) string {
	switch g {
	case annotation.GeometryPoint:
		return "point"
	case annotation.GeometryLine:
		return "lineseg"
	case annotation.GeometrySphere:
		return "sphere"
	default:
		return ""
	}
}

// tagGeometry maps a family B wire tag back to a geometry.
func tagGeometry(tag string) annotation.Geometry {
	switch tag {
	case "point":
		return annotation.GeometryPoint
	case "lineseg":
		return annotation.GeometryLine
	case "sphere":
		return annotation.GeometrySphere
	default:
		return annotation.GeometryInvalid
	}
}

// floats coerces a decoded JSON value into exactly n numbers. JSON arrays
// arrive as []any of float64 after unmarshaling; anything else fails.
func floats(v any, n int) ([]float64, bool) {
	arr, ok := v.([]any)
	if !ok || len(arr) != n {
		return nil, false
	}
	out := make([]float64, n)
	for i, e := range arr {
		switch x := e.(type) {
		case float64:
			out[i] = x
		case int:
			out[i] = float64(x)
		case int64:
			out[i] = float64(x)
		default:
			return nil, false
		}
	}
	return out, true
}

// optString reads a string field, tolerating absence but not wrong types.
func optString(raw RawEntry, field string) (string, bool) {
	v, ok := raw[field]
	if !ok {
		return "", true
	}
	s, ok := v.(string)
	return s, ok
}
