// ABOUTME: Tests for the annotation model's derived fields and pure updaters.
// ABOUTME: Validates description recomputation, stamping, and render attributes.

package annotation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		comment string
		want    string
	}{
		{"title and comment", "soma", "looks split", "soma: looks split"},
		{"comment only", "", "looks split", "looks split"},
		{"title only", "soma", "", "soma"},
		{"neither", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Annotation{Prop: map[string]string{}}
			if tt.title != "" {
				a.Prop[PropTitle] = tt.title
			}
			if tt.comment != "" {
				a.Prop[PropComment] = tt.comment
			}
			assert.Equal(t, tt.want, Describe(a))
		})
	}
}

func TestWithTitle_RecomputesDescription(t *testing.T) {
	a := Annotation{Geometry: GeometryPoint, Prop: map[string]string{PropComment: "dendrite"}}
	a = Recompute(a)
	assert.Equal(t, "dendrite", a.Description)

	b := WithTitle(a, "cell 7")
	assert.Equal(t, "cell 7: dendrite", b.Description)
	assert.Equal(t, "dendrite", a.Description, "updater must not mutate its input")
}

func TestWithComment_EmptyRemoves(t *testing.T) {
	a := Annotation{Prop: map[string]string{PropComment: "old"}}
	b := WithComment(a, "")
	_, ok := b.Prop[PropComment]
	assert.False(t, ok)
	assert.Equal(t, "", b.Description)
}

func TestWithChecked_DrivesRenderAttribute(t *testing.T) {
	a := Recompute(Annotation{Geometry: GeometryPoint, Prop: map[string]string{}})
	require.Equal(t, []int{RenderDefault}, a.Properties)

	b := WithChecked(a, true)
	assert.Equal(t, []int{RenderChecked}, b.Properties)

	c := WithChecked(b, false)
	assert.Equal(t, []int{RenderDefault}, c.Properties)
}

func TestStamp(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	a := Annotation{Geometry: GeometryPoint, PointA: [3]float64{1.6, 2.2, 3.5}}
	s := Stamp(a, "alice", now)

	assert.Equal(t, "alice", s.Prop[PropUser])
	assert.Equal(t, "1700000000123", s.Prop[PropTimestamp])
	assert.Equal(t, KindNote, s.Kind, "points default to the Note kind")
	assert.Equal(t, [3]float64{2, 2, 4}, s.PointA, "coordinates round before encode")
}

func TestStamp_KeepsExplicitKind(t *testing.T) {
	a := Annotation{Geometry: GeometryPoint, Kind: "PreSyn"}
	s := Stamp(a, "alice", time.Now())
	assert.Equal(t, "PreSyn", s.Kind)
}

func TestRenderingAttribute(t *testing.T) {
	tests := []struct {
		name string
		a    Annotation
		want int
	}{
		{"default", Annotation{Kind: KindNote}, RenderDefault},
		{"presyn kind wins", Annotation{Kind: "PreSyn", Prop: map[string]string{PropChecked: "1"}}, RenderPreSyn},
		{"postsyn", Annotation{Kind: "PostSyn"}, RenderPostSyn},
		{"atlas", Annotation{Kind: KindAtlas}, RenderAtlas},
		{"checked", Annotation{Kind: KindNote, Prop: map[string]string{PropChecked: "1"}}, RenderChecked},
		{"server verified", Annotation{Kind: KindNote, Ext: map[string]string{ExtVerified: "1"}}, RenderChecked},
		{"split bookmark", Annotation{Kind: KindNote, Prop: map[string]string{PropComment: "Split at branch"}}, RenderSplit},
		{"merge bookmark", Annotation{Kind: KindNote, Prop: map[string]string{PropTitle: "Merge candidates"}}, RenderMerge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderingAttribute(tt.a))
		})
	}
}

func TestClassifyBookmark(t *testing.T) {
	assert.Equal(t, BookmarkSplit, ClassifyBookmark(Annotation{Prop: map[string]string{PropComment: "Split here"}}))
	assert.Equal(t, BookmarkMerge, ClassifyBookmark(Annotation{Prop: map[string]string{PropComment: "Merge with 42"}}))
	assert.Equal(t, BookmarkGeneral, ClassifyBookmark(Annotation{Prop: map[string]string{PropComment: "soma"}}))
}

func TestRounded(t *testing.T) {
	a := Annotation{PointA: [3]float64{1.5, -1.5, 2.4}}
	assert.Equal(t, [3]int64{2, -2, 2}, a.RoundedA())
}
