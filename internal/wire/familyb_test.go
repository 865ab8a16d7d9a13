// ABOUTME: Tests for the family B v2/v3 enveloped codec.
// ABOUTME: Covers pos packing, sentinel vs prop metadata, atlas policy, round-trips.

package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/annosync/internal/annotation"
)

func familyBSet(t *testing.T, kind string, version int) *Set {
	t.Helper()
	s, err := NewRegistry(nil).For(annotation.FamilyB, kind, version)
	require.NoError(t, err)
	return s
}

func TestFamilyB_EncodeSphere_PosPacking(t *testing.T) {
	s := familyBSet(t, "Note", 2)
	enc, ok := s.ForGeometry(annotation.GeometrySphere)
	require.True(t, ok)

	a := annotation.Annotation{
		Geometry: annotation.GeometrySphere,
		PointA:   [3]float64{0, 0, 0},
		PointB:   [3]float64{4, 0, 0},
		Prop:     map[string]string{annotation.PropUser: "alice"},
	}
	raw, ok := enc.Encode(a)
	require.True(t, ok)

	assert.Equal(t, "sphere", raw["kind"])
	assert.Equal(t, []any{int64(0), int64(0), int64(0), int64(4), int64(0), int64(0)}, raw["pos"])
}

func TestFamilyB_Decode_WrongKindTag(t *testing.T) {
	s := familyBSet(t, "Note", 3)
	enc, _ := s.ForGeometry(annotation.GeometryPoint)

	_, ok := enc.Decode("Pt1_2_3", RawEntry{"kind": "lineseg", "pos": []any{1.0, 2.0, 3.0, 4.0, 5.0, 6.0}})
	assert.False(t, ok, "a mismatched discriminant tag is a schema error")
}

func TestFamilyB_Decode_MissingTagDefaultedFromKey(t *testing.T) {
	s := familyBSet(t, "Note", 3)
	a, ok := s.Decode("Ln1_2_3_4_5_6", RawEntry{"pos": []any{1.0, 2.0, 3.0, 4.0, 5.0, 6.0}}, nil)
	require.True(t, ok)
	assert.Equal(t, annotation.GeometryLine, a.Geometry)
}

func TestFamilyB_Decode_Verified(t *testing.T) {
	s := familyBSet(t, "Note", 3)
	a, ok := s.Decode("Pt1_2_3", RawEntry{
		"kind":     "point",
		"pos":      []any{1.0, 2.0, 3.0},
		"verified": true,
		"user":     "alice",
	}, nil)
	require.True(t, ok)
	assert.True(t, a.Verified())
	assert.Equal(t, []int{annotation.RenderChecked}, a.Properties)
}

func TestFamilyB_V2_SentinelDescription(t *testing.T) {
	s := familyBSet(t, "Note", 2)
	enc, _ := s.ForGeometry(annotation.GeometryPoint)

	a := annotation.Annotation{
		Geometry: annotation.GeometryPoint,
		PointA:   [3]float64{1, 2, 3},
		Kind:     "Note",
		Prop: map[string]string{
			annotation.PropUser:    "alice",
			annotation.PropComment: "dendrite",
			"timestamp":            "1700000000123",
		},
	}
	raw, ok := enc.Encode(a)
	require.True(t, ok)

	desc := raw["description"].(string)
	parsed, isSentinel := ParseSentinel(desc)
	require.True(t, isSentinel, "v2 folds structured metadata into the description")
	assert.Equal(t, "dendrite", parsed["comment"])
	assert.Equal(t, "1700000000123", parsed["timestamp"])
	assert.NotContains(t, raw, "prop")

	got, ok := enc.Decode("Pt1_2_3", raw)
	require.True(t, ok)
	assert.Equal(t, "dendrite", got.Comment())
	assert.Equal(t, "1700000000123", got.Prop["timestamp"])
}

func TestFamilyB_V3_PropObject(t *testing.T) {
	s := familyBSet(t, "Note", 3)
	enc, _ := s.ForGeometry(annotation.GeometryPoint)

	a := annotation.Annotation{
		Geometry: annotation.GeometryPoint,
		PointA:   [3]float64{1, 2, 3},
		Kind:     "PreSyn",
		Prop: map[string]string{
			annotation.PropUser: "alice",
			"timestamp":         "17",
		},
	}
	raw, ok := enc.Encode(a)
	require.True(t, ok)

	prop := raw["prop"].(map[string]any)
	assert.Equal(t, "17", prop["timestamp"])
	assert.Equal(t, "PreSyn", prop["kind"], "non-default kind labels travel in prop")

	got, ok := enc.Decode("Pt1_2_3", raw)
	require.True(t, ok)
	assert.Equal(t, "PreSyn", got.Kind)
	assert.NotContains(t, got.Prop, "kind")
}

func TestFamilyB_RoundTrip_DerivedID(t *testing.T) {
	for _, version := range []int{2, 3} {
		s := familyBSet(t, "Note", version)
		for _, a := range []annotation.Annotation{
			{
				Geometry: annotation.GeometryPoint,
				PointA:   [3]float64{10, 20, 30},
				Kind:     "Note",
				Prop: map[string]string{
					annotation.PropUser:    "alice",
					annotation.PropComment: "soma",
					annotation.PropTitle:   "cell 7",
				},
			},
			{
				Geometry: annotation.GeometryLine,
				PointA:   [3]float64{1, 2, 3},
				PointB:   [3]float64{4, 5, 6},
				Kind:     "Note",
				Prop:     map[string]string{annotation.PropUser: "alice"},
			},
			{
				Geometry: annotation.GeometrySphere,
				PointA:   [3]float64{0, 0, 0},
				PointB:   [3]float64{4, 0, 0},
				Kind:     "Note",
				Prop:     map[string]string{annotation.PropUser: "alice"},
			},
		} {
			enc, ok := s.ForAnnotation(a)
			require.True(t, ok)
			raw, ok := enc.Encode(a)
			require.True(t, ok, "v%d %s", version, a.Geometry)

			key := annotation.DeriveKey(a)
			got, ok := s.Decode(key, raw, nil)
			require.True(t, ok)
			assert.Equal(t, annotation.DeriveID(annotation.FamilyB, a),
				annotation.DeriveID(annotation.FamilyB, got),
				"v%d %s", version, a.Geometry)
			assert.Equal(t, a.Title(), got.Title())
			assert.Equal(t, a.Comment(), got.Comment())
		}
	}
}

func TestFamilyB_AtlasPolicy(t *testing.T) {
	s := familyBSet(t, annotation.KindAtlas, 3)
	enc, _ := s.ForGeometry(annotation.GeometryPoint)

	bare := annotation.Annotation{
		Geometry: annotation.GeometryPoint,
		Kind:     annotation.KindAtlas,
		Prop:     map[string]string{annotation.PropUser: "alice"},
	}
	assert.False(t, enc.Uploadable(bare), "atlas points need a title to upload")

	_, ok := enc.Encode(bare)
	assert.True(t, ok, "uploadability is policy, not encodability")

	titled := annotation.WithTitle(bare, "L5 landmark")
	assert.True(t, enc.Uploadable(titled))

	lineEnc, _ := s.ForGeometry(annotation.GeometryLine)
	line := annotation.Annotation{Geometry: annotation.GeometryLine, Kind: annotation.KindAtlas}
	assert.False(t, lineEnc.Uploadable(line),
		"atlas kind without title stays local for any geometry")
}

func TestFamilyB_TagsRoundTrip(t *testing.T) {
	s := familyBSet(t, "Note", 3)
	enc, _ := s.ForGeometry(annotation.GeometryPoint)

	a := annotation.Annotation{
		Geometry: annotation.GeometryPoint,
		PointA:   [3]float64{1, 1, 1},
		Kind:     "Note",
		Prop: map[string]string{
			annotation.PropUser: "alice",
			"tags":              "Split,review",
		},
	}
	raw, ok := enc.Encode(a)
	require.True(t, ok)
	assert.Equal(t, []any{"Split", "review"}, raw["tags"])

	got, ok := enc.Decode("Pt1_1_1", raw)
	require.True(t, ok)
	assert.Equal(t, "Split,review", got.Prop["tags"])
}
