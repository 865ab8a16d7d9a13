// ABOUTME: Tests for the family A v1 flat-map codec.
// ABOUTME: Covers key-based position recovery, extras stripping, and round-trips.

package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/annosync/internal/annotation"
)

func familyASet(t *testing.T, kind string) *Set {
	t.Helper()
	s, err := NewRegistry(nil).For(annotation.FamilyA, kind, 1)
	require.NoError(t, err)
	return s
}

func TestFamilyA_DecodePoint_PosField(t *testing.T) {
	s := familyASet(t, "Note")
	raw := RawEntry{"Kind": "Note", "Pos": []any{float64(10), float64(20), float64(30)}}

	a, ok := s.Decode("10_20_30", raw, nil)
	require.True(t, ok)
	assert.Equal(t, annotation.GeometryPoint, a.Geometry)
	assert.Equal(t, [3]float64{10, 20, 30}, a.PointA)
	assert.Equal(t, "Note", a.Kind)
	assert.Equal(t, "10_20_30", annotation.DeriveID(annotation.FamilyA, a),
		"family A id is the storage key alone")
}

func TestFamilyA_DecodePoint_PositionFromKey(t *testing.T) {
	s := familyASet(t, "Note")
	a, ok := s.Decode("10_20_30", RawEntry{"Kind": "Note"}, nil)
	require.True(t, ok)
	assert.Equal(t, [3]float64{10, 20, 30}, a.PointA)
}

func TestFamilyA_DecodePoint_BadPosFails(t *testing.T) {
	s := familyASet(t, "Note")
	_, ok := s.Decode("10_20_30", RawEntry{"Kind": "Note", "Pos": "garbage"}, nil)
	assert.False(t, ok, "a present but malformed Pos is a schema error")

	_, ok = s.Decode("10_20_30", RawEntry{"Kind": "Note", "Pos": []any{float64(1)}}, nil)
	assert.False(t, ok)
}

func TestFamilyA_Decode_MissingKindDefaulted(t *testing.T) {
	s := familyASet(t, "PreSyn")
	a, ok := s.Decode("1_2_3", RawEntry{}, nil)
	require.True(t, ok)
	assert.Equal(t, "PreSyn", a.Kind, "legacy entries without a Kind tag decode with the collection kind")
}

func TestFamilyA_Decode_LineFromKey(t *testing.T) {
	s := familyASet(t, "Note")
	a, ok := s.Decode("Ln1_2_3_4_5_6", RawEntry{"Kind": "Note"}, nil)
	require.True(t, ok)
	assert.Equal(t, annotation.GeometryLine, a.Geometry)
	assert.Equal(t, [3]float64{1, 2, 3}, a.PointA)
	assert.Equal(t, [3]float64{4, 5, 6}, a.PointB)
}

func TestFamilyA_Encode_RequiresUser(t *testing.T) {
	s := familyASet(t, "Note")
	enc, ok := s.ForGeometry(annotation.GeometryPoint)
	require.True(t, ok)

	a := annotation.Annotation{Geometry: annotation.GeometryPoint, PointA: [3]float64{1, 2, 3}}
	_, ok = enc.Encode(a)
	assert.False(t, ok, "encoding without an authenticated user signals do-not-upload")
}

func TestFamilyA_Encode_StripsExplicitFieldsFromExtras(t *testing.T) {
	s := familyASet(t, "Note")
	enc, _ := s.ForGeometry(annotation.GeometryPoint)

	a := annotation.Annotation{
		Geometry: annotation.GeometryPoint,
		PointA:   [3]float64{1, 2, 3},
		Kind:     "Note",
		Prop: map[string]string{
			annotation.PropUser:    "alice",
			annotation.PropTitle:   "cell 7",
			annotation.PropComment: "soma",
			"timestamp":            "1700000000123",
		},
	}
	raw, ok := enc.Encode(a)
	require.True(t, ok)

	assert.Equal(t, "alice", raw["user"])
	assert.Equal(t, "cell 7", raw["title"])
	assert.Equal(t, "soma", raw["description"])
	extras := raw["Prop"].(map[string]any)
	assert.Equal(t, "1700000000123", extras["timestamp"])
	assert.NotContains(t, extras, "user")
	assert.NotContains(t, extras, "title")
	assert.NotContains(t, extras, "comment")
}

func TestFamilyA_RoundTrip(t *testing.T) {
	s := familyASet(t, "Note")

	for _, a := range []annotation.Annotation{
		{
			Geometry: annotation.GeometryPoint,
			PointA:   [3]float64{10, 20, 30},
			Kind:     "Note",
			Prop: map[string]string{
				annotation.PropUser:    "alice",
				annotation.PropComment: "soma",
				"timestamp":            "1700000000123",
			},
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
		require.True(t, ok)

		key := annotation.DeriveKey(a)
		got, ok := s.Decode(key, raw, nil)
		require.True(t, ok)
		assert.Equal(t, annotation.DeriveID(annotation.FamilyA, a),
			annotation.DeriveID(annotation.FamilyA, got))
		assert.Equal(t, a.Prop[annotation.PropComment], got.Comment())
		assert.Equal(t, "alice", got.User())
	}
}

func TestFamilyA_Uploadable(t *testing.T) {
	s := familyASet(t, "Note")
	enc, _ := s.ForGeometry(annotation.GeometryPoint)

	assert.True(t, enc.Uploadable(annotation.Annotation{Kind: "Note"}))
	assert.False(t, enc.Uploadable(annotation.Annotation{
		Kind: "Note",
		Prop: map[string]string{"draft": "1"},
	}), "drafts never upload")
	assert.False(t, enc.Uploadable(annotation.Annotation{Kind: annotation.KindAtlas}),
		"atlas annotations need a title")
	assert.True(t, enc.Uploadable(annotation.Annotation{
		Kind: annotation.KindAtlas,
		Prop: map[string]string{annotation.PropTitle: "L5"},
	}))
}
