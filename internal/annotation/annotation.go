// ABOUTME: Core annotation data model for volumetric imagery markup
// ABOUTME: Tagged union over point/line/sphere geometry with derived fields

package annotation

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Geometry is the geometric discriminant of an annotation. It is distinct
// from Kind, which is a free-form classification label ("Note", "PreSyn").
type Geometry int

const (
	GeometryInvalid Geometry = iota
	GeometryPoint
	GeometryLine
	GeometrySphere
)

// String returns the lowercase name used in logs and family B wire tags.
func (g Geometry) String() string {
	switch g {
	case GeometryPoint:
		return "point"
	case GeometryLine:
		return "line"
	case GeometrySphere:
		return "sphere"
	default:
		return "invalid"
	}
}

// Well-known Prop keys. Prop is an open map; these are the keys this layer
// reads and writes itself.
const (
	PropTitle     = "title"
	PropComment   = "comment"
	PropUser      = "user"
	PropTimestamp = "timestamp"
	PropChecked   = "checked"
)

// ExtVerified is the server-computed verification flag echoed back in Ext.
const ExtVerified = "verified"

// KindNote is the default kind applied to points that carry none.
const KindNote = "Note"

// KindAtlas marks atlas points, which require a title before upload.
const KindAtlas = "Atlas"

// Annotation is the central entity synchronized with the remote backends.
// Geometry discriminates which position fields are meaningful: points use
// PointA only; lines and spheres use both endpoints (a sphere's pair defines
// its center and radius).
type Annotation struct {
	Geometry Geometry
	PointA   [3]float64
	PointB   [3]float64

	// Key is the server-assigned storage key. When set it is authoritative
	// and bypasses derivation; it is immutable once assigned.
	Key string

	// Kind is the free-form classification label, not the geometry.
	Kind string

	// Description is derived from Prop title/comment. Never hand-set.
	Description string

	// Properties are recomputed numeric render hints, not semantic data.
	Properties []int

	// Prop carries open string-keyed metadata (title, comment, user,
	// timestamp, checked flag, backend-specific extras).
	Prop map[string]string

	// Ext is reserved for fields the backend computes and echoes back.
	Ext map[string]string

	// RelatedSegments optionally groups associated segment ids.
	RelatedSegments [][]uint64

	// Source is a provenance tag ("downloaded:3/17"), diagnostics only.
	Source string
}

// Title returns the annotation's title, or "" when unset.
func (a Annotation) Title() string { return a.Prop[PropTitle] }

// Comment returns the annotation's comment, or "" when unset.
func (a Annotation) Comment() string { return a.Prop[PropComment] }

// User returns the authoring user, preferring the server echo in Ext.
func (a Annotation) User() string {
	if u, ok := a.Ext[PropUser]; ok && u != "" {
		return u
	}
	return a.Prop[PropUser]
}

// Checked reports whether the annotation is locally marked verified.
func (a Annotation) Checked() bool { return a.Prop[PropChecked] == "1" }

// Verified reports the server-side verification flag from Ext.
func (a Annotation) Verified() bool { return a.Ext[ExtVerified] == "1" }

// Describe computes the derived description: "title: comment" when a title
// is present, otherwise the comment alone.
func Describe(a Annotation) string {
	title := a.Title()
	comment := a.Comment()
	if title != "" && comment != "" {
		return title + ": " + comment
	}
	if title != "" {
		return title
	}
	return comment
}

// Recompute returns a copy with Description and Properties re-derived from
// the current Prop/Ext contents. Every updater funnels through this so the
// derived fields can never drift from their inputs.
func Recompute(a Annotation) Annotation {
	a.Description = Describe(a)
	a.Properties = []int{RenderingAttribute(a)}
	return a
}

// WithTitle returns a copy with the title replaced and derived fields
// recomputed. An empty title removes the key.
func WithTitle(a Annotation, title string) Annotation {
	a.Prop = cloneProp(a.Prop)
	if title == "" {
		delete(a.Prop, PropTitle)
	} else {
		a.Prop[PropTitle] = title
	}
	return Recompute(a)
}

// WithComment returns a copy with the comment replaced and derived fields
// recomputed.
func WithComment(a Annotation, comment string) Annotation {
	a.Prop = cloneProp(a.Prop)
	if comment == "" {
		delete(a.Prop, PropComment)
	} else {
		a.Prop[PropComment] = comment
	}
	return Recompute(a)
}

// WithChecked returns a copy with the local verified flag set or cleared.
func WithChecked(a Annotation, checked bool) Annotation {
	a.Prop = cloneProp(a.Prop)
	if checked {
		a.Prop[PropChecked] = "1"
	} else {
		delete(a.Prop, PropChecked)
	}
	return Recompute(a)
}

// WithUser returns a copy stamped with the authoring user.
func WithUser(a Annotation, user string) Annotation {
	a.Prop = cloneProp(a.Prop)
	a.Prop[PropUser] = user
	return Recompute(a)
}

// Stamp applies the creation metadata for a new annotation: timestamp, user,
// and the default kind for points, then recomputes derived fields.
func Stamp(a Annotation, user string, now time.Time) Annotation {
	a.Prop = cloneProp(a.Prop)
	a.Prop[PropTimestamp] = fmt.Sprintf("%d", now.UnixMilli())
	a.Prop[PropUser] = user
	if a.Kind == "" && a.Geometry == GeometryPoint {
		a.Kind = KindNote
	}
	a.PointA = roundVec(a.PointA)
	a.PointB = roundVec(a.PointB)
	return Recompute(a)
}

func cloneProp(m map[string]string) map[string]string {
	out := make(map[string]string, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// BookmarkType classifies the explanatory free-text of an annotation into
// the coarse categories the renderer distinguishes.
type BookmarkType int

const (
	BookmarkGeneral BookmarkType = iota
	BookmarkSplit
	BookmarkMerge
)

// ClassifyBookmark inspects the annotation's text for the split/merge
// markers used by proofreading workflows.
func ClassifyBookmark(a Annotation) BookmarkType {
	text := a.Title() + " " + a.Comment()
	switch {
	case strings.Contains(text, "Split"):
		return BookmarkSplit
	case strings.Contains(text, "Merge"):
		return BookmarkMerge
	default:
		return BookmarkGeneral
	}
}

// Rendering attribute values consumed by the (external) renderer. The
// attribute is a hint, not semantic data; it is always recomputed.
const (
	RenderDefault = 0
	RenderChecked = 1
	RenderSplit   = 2
	RenderMerge   = 3
	RenderPreSyn  = 4
	RenderPostSyn = 5
	RenderAtlas   = 6
)

// RenderingAttribute derives the render hint from kind, verification state,
// and bookmark classification, in that priority order.
func RenderingAttribute(a Annotation) int {
	switch a.Kind {
	case "PreSyn":
		return RenderPreSyn
	case "PostSyn":
		return RenderPostSyn
	case KindAtlas:
		return RenderAtlas
	}
	if a.Checked() || a.Verified() {
		return RenderChecked
	}
	switch ClassifyBookmark(a) {
	case BookmarkSplit:
		return RenderSplit
	case BookmarkMerge:
		return RenderMerge
	}
	return RenderDefault
}

// roundVec rounds each coordinate half away from zero. Remote stores only
// accept integer coordinates; in-memory values may be fractional mid-edit.
func roundVec(v [3]float64) [3]float64 {
	return [3]float64{math.Round(v[0]), math.Round(v[1]), math.Round(v[2])}
}

// RoundedA returns PointA as rounded integers.
func (a Annotation) RoundedA() [3]int64 { return roundInts(a.PointA) }

// RoundedB returns PointB as rounded integers.
func (a Annotation) RoundedB() [3]int64 { return roundInts(a.PointB) }

func roundInts(v [3]float64) [3]int64 {
	return [3]int64{int64(math.Round(v[0])), int64(math.Round(v[1])), int64(math.Round(v[2]))}
}
