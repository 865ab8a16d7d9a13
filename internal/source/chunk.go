// ABOUTME: Bulk chunk download: one-shot fetch, decode, cache, notify, pack
// ABOUTME: Per-entry decode failures are logged and skipped, never fatal to the batch

package source

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/2389/annosync/internal/annotation"
	"github.com/2389/annosync/internal/wire"
)

// ChunkOptions controls one bulk download.
type ChunkOptions struct {
	// EmitAdds publishes a child-added notification for every decoded
	// annotation, so live observers pick up entries this was their first
	// sight of.
	EmitAdds bool
}

// ChunkResult is the outcome of one bulk download.
type ChunkResult struct {
	// Annotations are the successfully decoded entries, in key order.
	Annotations []annotation.Annotation

	// Buffers hold the packed render data per geometry.
	Buffers map[annotation.Geometry][]byte

	// Skipped counts entries that failed to decode.
	Skipped int
}

// DownloadChunk fetches the entire remote collection in one request and
// reconciles it into the cache: the cache is cleared first (a full resync,
// not a diff), every returned entry is decoded and stored, and the packed
// render buffers are rebuilt. Individual undecodable entries are logged and
// skipped; they never abort the batch.
func (s *Source) DownloadChunk(ctx context.Context, opts ChunkOptions) (*ChunkResult, error) {
	s.cache.Clear()

	var listing map[string]wire.RawEntry
	if err := s.client.GetJSON(ctx, s.endpoint.ListURL(), &listing); err != nil {
		return nil, fmt.Errorf("downloading annotations: %w", err)
	}

	keys := make([]string, 0, len(listing))
	for key := range listing {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := &ChunkResult{
		Buffers: make(map[annotation.Geometry][]byte),
	}
	packer := newPacker()

	type entry struct {
		key string
		ann annotation.Annotation
	}
	decoded := make([]entry, 0, len(keys))
	for _, key := range keys {
		a, ok := s.set.Decode(key, listing[key], s.logger)
		if !ok {
			result.Skipped++
			s.logger.Warn("skipping undecodable entry", "key", key)
			continue
		}
		decoded = append(decoded, entry{key: key, ann: a})
	}

	// Provenance tags index over the decoded sequence, so the last decoded
	// annotation carries "downloaded:last" even when later raw entries were
	// skipped.
	for i, e := range decoded {
		a := e.ann
		if i == len(decoded)-1 {
			a.Source = "downloaded:last"
		} else {
			a.Source = fmt.Sprintf("downloaded:%d/%d", i+1, len(decoded))
		}

		id := annotation.DeriveID(s.endpoint.Family, a)
		s.cache.Add(id, listing[e.key])

		result.Annotations = append(result.Annotations, a)
		packer.add(a)

		if opts.EmitAdds {
			s.bcast.Publish(a)
		}
	}

	result.Buffers = packer.buffers
	s.logger.Info("chunk downloaded",
		"entries", len(keys),
		"decoded", len(result.Annotations),
		"skipped", result.Skipped)
	return result, nil
}

// PackedPointSize is the byte size of one packed point record: three
// float32 coordinates plus one int32 render property.
const PackedPointSize = 3*4 + 4

// PackedPairSize is the byte size of one packed line/sphere record: six
// float32 coordinates plus one int32 render property.
const PackedPairSize = 6*4 + 4

// packer accumulates the per-geometry binary buffers the renderer
// consumes: little-endian positions followed by the packed render
// properties for each entry, grouped by geometric type.
type packer struct {
	buffers map[annotation.Geometry][]byte
}

func newPacker() *packer {
	return &packer{buffers: make(map[annotation.Geometry][]byte)}
}

func (p *packer) add(a annotation.Annotation) {
	buf := p.buffers[a.Geometry]
	buf = appendVec(buf, a.PointA)
	if a.Geometry != annotation.GeometryPoint {
		buf = appendVec(buf, a.PointB)
	}
	prop := int32(annotation.RenderDefault)
	if len(a.Properties) > 0 {
		prop = int32(a.Properties[0])
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(prop))
	p.buffers[a.Geometry] = buf
}

func appendVec(buf []byte, v [3]float64) []byte {
	for _, c := range v {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(c)))
	}
	return buf
}
