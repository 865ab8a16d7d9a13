// ABOUTME: Tests for the bulk chunk download and reconcile protocol.
// ABOUTME: Covers cache resync, per-entry skip behavior, packing, and notifications.

package source

import (
	"context"
	"encoding/binary"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/annosync/internal/annotation"
	"github.com/2389/annosync/internal/wire"
)

func listServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDownloadChunk_SkipsBadEntries(t *testing.T) {
	// Entry #2 has an unparseable Pos: the other two must still land.
	srv := listServer(t, `{
		"1_1_1": {"Kind": "Note", "user": "alice"},
		"2_2_2": {"Kind": "Note", "user": "alice", "Pos": "garbage"},
		"3_3_3": {"Kind": "Note", "user": "alice"}
	}`)

	s := newTestSource(t, srv.URL, sourceOptions{family: annotation.FamilyA, version: 1, user: "alice"})

	result, err := s.DownloadChunk(context.Background(), ChunkOptions{})
	require.NoError(t, err)

	assert.Len(t, result.Annotations, 2)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 2, s.Cache().Len())
	assert.True(t, s.Cache().Has("1_1_1"))
	assert.True(t, s.Cache().Has("3_3_3"))
}

func TestDownloadChunk_ClearsCacheFirst(t *testing.T) {
	srv := listServer(t, `{"1_1_1": {"Kind": "Note"}}`)

	s := newTestSource(t, srv.URL, sourceOptions{family: annotation.FamilyA, version: 1, user: "alice"})
	s.Cache().Add("stale_id", wire.RawEntry{"Kind": "Note"})

	_, err := s.DownloadChunk(context.Background(), ChunkOptions{})
	require.NoError(t, err)

	assert.False(t, s.Cache().Has("stale_id"), "bulk download is a full resync")
	assert.Equal(t, 1, s.Cache().Len())
}

func TestDownloadChunk_SourceTags(t *testing.T) {
	srv := listServer(t, `{
		"1_1_1": {"Kind": "Note"},
		"2_2_2": {"Kind": "Note"},
		"3_3_3": {"Kind": "Note"}
	}`)

	s := newTestSource(t, srv.URL, sourceOptions{family: annotation.FamilyA, version: 1, user: "alice"})
	result, err := s.DownloadChunk(context.Background(), ChunkOptions{})
	require.NoError(t, err)
	require.Len(t, result.Annotations, 3)

	assert.Equal(t, "downloaded:1/3", result.Annotations[0].Source)
	assert.Equal(t, "downloaded:2/3", result.Annotations[1].Source)
	assert.Equal(t, "downloaded:last", result.Annotations[2].Source)
}

func TestDownloadChunk_SourceTagsIgnoreSkippedEntries(t *testing.T) {
	// The final raw entry fails to decode; the tags must still index the
	// decoded sequence and end with the last marker.
	srv := listServer(t, `{
		"1_1_1": {"Kind": "Note"},
		"2_2_2": {"Kind": "Note"},
		"3_3_3": {"Kind": "Note", "Pos": "garbage"}
	}`)

	s := newTestSource(t, srv.URL, sourceOptions{family: annotation.FamilyA, version: 1, user: "alice"})
	result, err := s.DownloadChunk(context.Background(), ChunkOptions{})
	require.NoError(t, err)
	require.Len(t, result.Annotations, 2)
	require.Equal(t, 1, result.Skipped)

	assert.Equal(t, "downloaded:1/2", result.Annotations[0].Source)
	assert.Equal(t, "downloaded:last", result.Annotations[1].Source)
}

func TestDownloadChunk_PackedBuffers(t *testing.T) {
	srv := listServer(t, `{
		"Ln1_2_3_4_5_6": {"Kind": "Note"},
		"10_20_30": {"Kind": "Note"}
	}`)

	s := newTestSource(t, srv.URL, sourceOptions{family: annotation.FamilyA, version: 1, user: "alice"})
	result, err := s.DownloadChunk(context.Background(), ChunkOptions{})
	require.NoError(t, err)

	points := result.Buffers[annotation.GeometryPoint]
	require.Len(t, points, PackedPointSize)
	assert.Equal(t, float32(10), math.Float32frombits(binary.LittleEndian.Uint32(points[0:4])))
	assert.Equal(t, float32(20), math.Float32frombits(binary.LittleEndian.Uint32(points[4:8])))
	assert.Equal(t, float32(30), math.Float32frombits(binary.LittleEndian.Uint32(points[8:12])))
	assert.Equal(t, uint32(annotation.RenderDefault), binary.LittleEndian.Uint32(points[12:16]))

	lines := result.Buffers[annotation.GeometryLine]
	require.Len(t, lines, PackedPairSize)
	assert.Equal(t, float32(1), math.Float32frombits(binary.LittleEndian.Uint32(lines[0:4])))
	assert.Equal(t, float32(6), math.Float32frombits(binary.LittleEndian.Uint32(lines[20:24])))
}

func TestDownloadChunk_EmitAdds(t *testing.T) {
	srv := listServer(t, `{
		"1_1_1": {"Kind": "Note"},
		"2_2_2": {"Kind": "Note"}
	}`)

	s := newTestSource(t, srv.URL, sourceOptions{family: annotation.FamilyA, version: 1, user: "alice"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _ := s.Events().Subscribe(ctx)

	_, err := s.DownloadChunk(context.Background(), ChunkOptions{EmitAdds: true})
	require.NoError(t, err)

	var seen []string
	for i := 0; i < 2; i++ {
		a := <-events
		seen = append(seen, a.Key)
	}
	assert.ElementsMatch(t, []string{"1_1_1", "2_2_2"}, seen)
}

func TestDownloadChunk_NoEmitWithoutOptIn(t *testing.T) {
	srv := listServer(t, `{"1_1_1": {"Kind": "Note"}}`)

	s := newTestSource(t, srv.URL, sourceOptions{family: annotation.FamilyA, version: 1, user: "alice"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _ := s.Events().Subscribe(ctx)

	_, err := s.DownloadChunk(context.Background(), ChunkOptions{})
	require.NoError(t, err)

	select {
	case a := <-events:
		t.Fatalf("unexpected notification for %s", a.Key)
	default:
	}
}

func TestDownloadChunk_FamilyB(t *testing.T) {
	srv := listServer(t, `{
		"Pt1_2_3": {"kind": "point", "pos": [1, 2, 3], "user": "alice", "verified": true},
		"Sp0_0_0_4_0_0": {"pos": [0, 0, 0, 4, 0, 0], "user": "alice"}
	}`)

	s := newTestSource(t, srv.URL, sourceOptions{family: annotation.FamilyB, version: 3, user: "alice"})
	result, err := s.DownloadChunk(context.Background(), ChunkOptions{})
	require.NoError(t, err)
	require.Len(t, result.Annotations, 2)
	assert.Equal(t, 0, result.Skipped,
		"the sphere's missing kind tag is synthesized from its key")

	assert.True(t, s.Cache().Has("Pt1_2_3[user:alice]"),
		"family B cache ids embed authorship")
}
