// ABOUTME: Thread-safe registry of encoder sets keyed by family, kind, version
// ABOUTME: Sets are built once per combination and reused for the process lifetime

package wire

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/2389/annosync/internal/annotation"
)

// ErrUnknownVersion indicates a wire schema version the family does not speak.
var ErrUnknownVersion = errors.New("unknown wire schema version")

// setKey identifies one encoder set.
type setKey struct {
	family  annotation.Family
	kind    string
	version int
}

// Registry builds and memoizes encoder sets. One set exists per
// (family, kind, version) combination for the registry's lifetime.
type Registry struct {
	mu     sync.RWMutex
	sets   map[setKey]*Set
	logger *slog.Logger
}

// NewRegistry creates an empty encoder registry. Pass nil logger for default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sets:   make(map[setKey]*Set),
		logger: logger.With("component", "wire"),
	}
}

// For returns the encoder set for a collection. Family A speaks only v1;
// family B speaks v2 and v3. Collections whose kind is "Atlas" get the
// point encoder variant that requires a title before upload.
func (r *Registry) For(family annotation.Family, kind string, version int) (*Set, error) {
	key := setKey{family: family, kind: kind, version: version}

	r.mu.RLock()
	if s, ok := r.sets[key]; ok {
		r.mu.RUnlock()
		return s, nil
	}
	r.mu.RUnlock()

	s, err := makeSet(family, kind, version)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sets[key]; ok {
		return existing, nil
	}
	r.sets[key] = s
	r.logger.Debug("encoder set built",
		"family", family.String(),
		"kind", kind,
		"version", version)
	return s, nil
}

func makeSet(family annotation.Family, kind string, version int) (*Set, error) {
	s := &Set{
		family:  family,
		kind:    kind,
		version: version,
		byGeom:  make(map[annotation.Geometry]Encoder),
	}
	switch family {
	case annotation.FamilyA:
		if version != 1 {
			return nil, fmt.Errorf("%w: family a v%d", ErrUnknownVersion, version)
		}
		for _, g := range []annotation.Geometry{
			annotation.GeometryPoint, annotation.GeometryLine, annotation.GeometrySphere,
		} {
			s.byGeom[g] = &familyAEncoder{geometry: g, kind: kind}
		}
	case annotation.FamilyB:
		if version != 2 && version != 3 {
			return nil, fmt.Errorf("%w: family b v%d", ErrUnknownVersion, version)
		}
		atlas := kind == annotation.KindAtlas
		for _, g := range []annotation.Geometry{
			annotation.GeometryPoint, annotation.GeometryLine, annotation.GeometrySphere,
		} {
			s.byGeom[g] = &familyBEncoder{
				geometry: g,
				version:  version,
				kind:     kind,
				atlas:    atlas && g == annotation.GeometryPoint,
			}
		}
	}
	return s, nil
}
