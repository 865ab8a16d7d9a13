// ABOUTME: Family B v2/v3 codec: enveloped entries with explicit geometry tag
// ABOUTME: v2 embeds structured metadata via the description sentinel, v3 uses a prop object

package wire

import (
	"strings"

	"github.com/2389/annosync/internal/annotation"
)

// familyBEncoder encodes one geometry for the family B wire schema.
// Entries carry an explicit kind tag ("point"|"lineseg"|"sphere"), a pos
// array of 3 or 6 numbers, optional tags, a verified flag, and structured
// metadata: v3 in an explicit prop sub-object, v2 folded into the
// description field via the ${...:JSON} sentinel.
type familyBEncoder struct {
	geometry annotation.Geometry
	version  int
	kind     string
	atlas    bool
}

func (e *familyBEncoder) Encode(a annotation.Annotation) (RawEntry, bool) {
	user := a.User()
	if user == "" {
		return nil, false
	}

	entry := RawEntry{
		"kind": geometryTag(e.geometry),
		"pos":  e.encodePos(a),
		"user": user,
	}
	if a.Checked() {
		entry["verified"] = true
	}
	if t := a.Title(); t != "" {
		entry["title"] = t
	}
	if tags := a.Prop["tags"]; tags != "" {
		parts := strings.Split(tags, ",")
		arr := make([]any, len(parts))
		for i, p := range parts {
			arr[i] = strings.TrimSpace(p)
		}
		entry["tags"] = arr
	}

	structured := e.structuredProp(a)
	if e.version >= 3 {
		if c := a.Comment(); c != "" {
			entry["description"] = c
		}
		if len(structured) > 0 {
			prop := make(map[string]any, len(structured))
			for k, v := range structured {
				prop[k] = v
			}
			entry["prop"] = prop
		}
	} else {
		// v2 has no prop sub-object; structured metadata rides inside the
		// description as a sentinel.
		if len(structured) > 0 {
			if c := a.Comment(); c != "" {
				structured[annotation.PropComment] = c
			}
			entry["description"] = BuildSentinel(structured)
		} else if c := a.Comment(); c != "" {
			entry["description"] = c
		}
	}
	return entry, true
}

// structuredProp collects the metadata that travels in the prop sub-object
// (or the v2 sentinel): everything not held in an explicit envelope field,
// plus the kind label when it differs from the collection default.
func (e *familyBEncoder) structuredProp(a annotation.Annotation) map[string]string {
	out := make(map[string]string)
	for k, v := range a.Prop {
		switch k {
		case annotation.PropComment, annotation.PropUser, annotation.PropTitle,
			annotation.PropChecked, "tags":
			continue
		}
		out[k] = v
	}
	if a.Kind != "" && a.Kind != e.kind {
		out["kind"] = a.Kind
	}
	return out
}

func (e *familyBEncoder) encodePos(a annotation.Annotation) []any {
	p := a.RoundedA()
	if e.geometry == annotation.GeometryPoint {
		return []any{p[0], p[1], p[2]}
	}
	q := a.RoundedB()
	return []any{p[0], p[1], p[2], q[0], q[1], q[2]}
}

func (e *familyBEncoder) Decode(key string, raw RawEntry) (annotation.Annotation, bool) {
	tag, ok := raw["kind"].(string)
	if !ok || tagGeometry(tag) != e.geometry {
		return annotation.Annotation{}, false
	}

	a := annotation.Annotation{
		Geometry: e.geometry,
		Key:      key,
		Prop:     map[string]string{},
		Ext:      map[string]string{},
	}

	n := 3
	if e.geometry != annotation.GeometryPoint {
		n = 6
	}
	pos, ok := floats(raw["pos"], n)
	if !ok {
		return annotation.Annotation{}, false
	}
	a.PointA = [3]float64{pos[0], pos[1], pos[2]}
	if n == 6 {
		a.PointB = [3]float64{pos[3], pos[4], pos[5]}
	}

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

	if sub, present := raw["prop"]; present {
		m, ok := sub.(map[string]any)
		if !ok {
			return annotation.Annotation{}, false
		}
		for k, v := range m {
			if s, ok := v.(string); ok {
				a.Prop[k] = s
			}
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

	if v, present := raw["verified"]; present {
		b, ok := v.(bool)
		if !ok {
			return annotation.Annotation{}, false
		}
		if b {
			a.Ext[annotation.ExtVerified] = "1"
			a.Prop[annotation.PropChecked] = "1"
		}
	}

	if v, present := raw["tags"]; present {
		arr, ok := v.([]any)
		if !ok {
			return annotation.Annotation{}, false
		}
		parts := make([]string, 0, len(arr))
		for _, t := range arr {
			s, ok := t.(string)
			if !ok {
				return annotation.Annotation{}, false
			}
			parts = append(parts, s)
		}
		if len(parts) > 0 {
			a.Prop["tags"] = strings.Join(parts, ",")
		}
	}

	// The kind label travels in the structured metadata; absent that, the
	// collection default applies.
	if kind, present := a.Prop["kind"]; present {
		a.Kind = kind
		delete(a.Prop, "kind")
	} else {
		a.Kind = e.kind
	}

	return annotation.Recompute(a), true
}

func (e *familyBEncoder) Uploadable(a annotation.Annotation) bool {
	if e.atlas && a.Title() == "" {
		return false
	}
	return uploadPolicy(a)
}
