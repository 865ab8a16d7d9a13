// ABOUTME: Family A v1 codec: flat key/value entries with optional Pos field
// ABOUTME: Position is recoverable from the storage key when the payload omits it

package wire

import (
	"github.com/2389/annosync/internal/annotation"
)

// familyAEncoder encodes one geometry for the family A v1 wire schema.
// Entries are flat maps: Kind, description, title, user, Pos, and a Prop
// sub-map for extras (with comment/user/title stripped to avoid duplicating
// the explicit fields).
type familyAEncoder struct {
	geometry annotation.Geometry
	kind     string
}

func (e *familyAEncoder) Encode(a annotation.Annotation) (RawEntry, bool) {
	user := a.User()
	if user == "" {
		return nil, false
	}

	kind := a.Kind
	if kind == "" {
		kind = e.kind
	}
	entry := RawEntry{
		"Kind": kind,
		"user": user,
	}
	if c := a.Comment(); c != "" {
		entry["description"] = c
	}
	if t := a.Title(); t != "" {
		entry["title"] = t
	}

	p := a.RoundedA()
	if e.geometry == annotation.GeometryPoint {
		entry["Pos"] = []any{p[0], p[1], p[2]}
	} else {
		q := a.RoundedB()
		entry["Pos"] = []any{p[0], p[1], p[2], q[0], q[1], q[2]}
	}

	extras := extraProps(a.Prop)
	if len(extras) > 0 {
		prop := make(map[string]any, len(extras))
		for k, v := range extras {
			prop[k] = v
		}
		entry["Prop"] = prop
	}
	return entry, true
}

func (e *familyAEncoder) Decode(key string, raw RawEntry) (annotation.Annotation, bool) {
	if annotation.TypeOf(key) != e.geometry {
		return annotation.Annotation{}, false
	}

	a := annotation.Annotation{
		Geometry: e.geometry,
		Key:      key,
		Prop:     map[string]string{},
		Ext:      map[string]string{},
	}

	if !decodePositionA(&a, key, raw, e.geometry) {
		return annotation.Annotation{}, false
	}

	kind, ok := optString(raw, "Kind")
	if !ok {
		return annotation.Annotation{}, false
	}
	if kind == "" {
		kind = e.kind
	}
	a.Kind = kind

	desc, ok := optString(raw, "description")
	if !ok {
		return annotation.Annotation{}, false
	}
	if desc != "" {
		if parsed, isSentinel := ParseSentinel(desc); isSentinel {
			for k, v := range parsed {
				a.Prop[k] = v
			}
		} else {
			a.Prop[annotation.PropComment] = desc
		}
	}

	if title, ok := optString(raw, "title"); !ok {
		return annotation.Annotation{}, false
	} else if title != "" {
		a.Prop[annotation.PropTitle] = title
	}
	if user, ok := optString(raw, "user"); !ok {
		return annotation.Annotation{}, false
	} else if user != "" {
		a.Prop[annotation.PropUser] = user
	}

	if extras, present := raw["Prop"]; present {
		m, ok := extras.(map[string]any)
		if !ok {
			return annotation.Annotation{}, false
		}
		mergeExtras(a.Prop, m)
	}

	return annotation.Recompute(a), true
}

// decodePositionA fills the endpoints from the Pos field, falling back to
// recovering them from the key when the payload omits Pos. A Pos that is
// present but malformed is a schema error, never silently ignored.
func decodePositionA(a *annotation.Annotation, key string, raw RawEntry, g annotation.Geometry) bool {
	if v, present := raw["Pos"]; present {
		if g == annotation.GeometryPoint {
			pos, ok := floats(v, 3)
			if !ok {
				return false
			}
			a.PointA = [3]float64{pos[0], pos[1], pos[2]}
			return true
		}
		pos, ok := floats(v, 6)
		if !ok {
			return false
		}
		a.PointA = [3]float64{pos[0], pos[1], pos[2]}
		a.PointB = [3]float64{pos[3], pos[4], pos[5]}
		return true
	}

	if g == annotation.GeometryPoint {
		p, ok := annotation.PointFromKey(key)
		if !ok {
			return false
		}
		a.PointA = p
		return true
	}
	p, q, ok := annotation.EndpointsFromKey(key)
	if !ok {
		return false
	}
	a.PointA = p
	a.PointB = q
	return true
}

func (e *familyAEncoder) Uploadable(a annotation.Annotation) bool {
	return uploadPolicy(a)
}

// extraProps copies prop entries that are not carried in explicit wire
// fields. comment/user/title are stripped so the flat fields stay the single
// source of truth.
func extraProps(prop map[string]string) map[string]string {
	out := make(map[string]string)
	for k, v := range prop {
		switch k {
		case annotation.PropComment, annotation.PropUser, annotation.PropTitle:
			continue
		}
		out[k] = v
	}
	return out
}

// mergeExtras folds stored extras into a prop map without clobbering
// explicit fields already decoded.
func mergeExtras(prop map[string]string, extras map[string]any) {
	for k, v := range extras {
		if _, exists := prop[k]; exists {
			continue
		}
		if s, ok := v.(string); ok {
			prop[k] = s
		}
	}
}

// uploadPolicy is the kind-level upload gate shared by both families:
// unfinished drafts never upload, and Atlas annotations upload only once
// they carry a title.
func uploadPolicy(a annotation.Annotation) bool {
	if a.Prop["draft"] == "1" {
		return false
	}
	if a.Kind == annotation.KindAtlas && a.Title() == "" {
		return false
	}
	return true
}
