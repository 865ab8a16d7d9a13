// ABOUTME: CRUD orchestration for a single remote annotation collection
// ABOUTME: Add/Update/Delete/Get with ownership, conflict, and upload-policy gates

package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/annosync/internal/annotation"
	"github.com/2389/annosync/internal/cache"
	"github.com/2389/annosync/internal/drafts"
	"github.com/2389/annosync/internal/httpx"
	"github.com/2389/annosync/internal/wire"
)

// ErrNoUser indicates a mutating operation without an authenticated user.
var ErrNoUser = errors.New("cannot upload annotation without a user")

// ErrEncode indicates the encoder refused the annotation for a write.
var ErrEncode = errors.New("unable to encode annotation")

// ErrConflict indicates a non-overwrite update hit an id already cached.
var ErrConflict = errors.New("cannot overwrite existing annotation")

// ErrPermission indicates the annotation is owned by a different user.
var ErrPermission = errors.New("annotation belongs to another user")

// Source is the facade the application uses to mutate and read one remote
// annotation collection. Each method is a short-lived request lifecycle;
// the only long-lived shared state is the per-endpoint cache.
type Source struct {
	endpoint Endpoint
	user     string
	set      *wire.Set
	cache    *cache.Cache
	client   *httpx.Client
	drafts   *drafts.Store
	bcast    *Broadcaster
	logger   *slog.Logger
}

// Config assembles a Source.
type Config struct {
	Endpoint Endpoint

	// User is the session's authenticated user. Mutating operations fail
	// without one.
	User string

	Encoders *wire.Registry
	Caches   *cache.Registry
	Client   *httpx.Client

	// Drafts optionally persists non-uploadable annotations locally.
	Drafts *drafts.Store

	Logger *slog.Logger
}

// New builds a Source for an endpoint. The encoder set and cache are shared
// through their registries, so two Sources for the same endpoint observe
// the same entries.
func New(cfg Config) (*Source, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	set, err := cfg.Encoders.For(cfg.Endpoint.Family, cfg.Endpoint.Kind, cfg.Endpoint.Version)
	if err != nil {
		return nil, fmt.Errorf("building encoders for %s: %w", cfg.Endpoint.Name, err)
	}
	return &Source{
		endpoint: cfg.Endpoint,
		user:     cfg.User,
		set:      set,
		cache:    cfg.Caches.For(cfg.Endpoint.ListURL()),
		client:   cfg.Client,
		drafts:   cfg.Drafts,
		bcast:    NewBroadcaster(logger),
		logger: logger.With(
			"component", "source",
			"endpoint", cfg.Endpoint.Name),
	}, nil
}

// Events returns the broadcaster delivering child-added notifications from
// bulk downloads.
func (s *Source) Events() *Broadcaster { return s.bcast }

// Cache exposes the endpoint's cache, mainly for diagnostics.
func (s *Source) Cache() *cache.Cache { return s.cache }

// Endpoint returns the endpoint this Source mutates.
func (s *Source) Endpoint() Endpoint { return s.endpoint }

// Add stamps creation metadata onto a new annotation (timestamp, user,
// default kind, rounded coordinates, recomputed derived fields) and stores
// it as a non-overwriting update.
func (s *Source) Add(ctx context.Context, a annotation.Annotation) (annotation.Annotation, error) {
	if s.user == "" {
		return a, ErrNoUser
	}
	return s.Update(ctx, annotation.Stamp(a, s.user, time.Now()), false)
}

// Update encodes and persists an annotation. With overwrite=false an id
// already present in the cache fails with ErrConflict before any network
// call. Annotations the upload policy keeps local are cached (and drafted)
// without touching the network.
func (s *Source) Update(ctx context.Context, a annotation.Annotation, overwrite bool) (annotation.Annotation, error) {
	user := a.User()
	if user == "" {
		return a, ErrNoUser
	}
	if user != s.user {
		return a, fmt.Errorf("%w: %s is not the session user", ErrPermission, user)
	}

	enc, ok := s.set.ForAnnotation(a)
	if !ok {
		return a, fmt.Errorf("%w: no encoder for geometry %s", ErrEncode, a.Geometry)
	}
	raw, ok := enc.Encode(a)
	if !ok {
		return a, ErrEncode
	}

	id := annotation.DeriveID(s.endpoint.Family, a)
	if !overwrite && s.cache.Has(id) {
		return a, fmt.Errorf("%w: %s", ErrConflict, id)
	}
	s.cache.Add(id, raw)

	if !enc.Uploadable(a) {
		if s.drafts != nil {
			if err := s.drafts.Put(ctx, s.endpoint.ListURL(), id, a); err != nil {
				return a, fmt.Errorf("storing draft: %w", err)
			}
		}
		s.logger.Debug("annotation kept local", "id", id, "kind", a.Kind)
		return a, nil
	}

	key := annotation.DeriveKey(a)
	ack, err := s.client.PostJSON(ctx, s.endpoint.WriteURL(key), raw)
	if err != nil {
		return a, fmt.Errorf("uploading %s: %w", id, err)
	}

	// The server may assign a key different from the locally derived one;
	// the acknowledged key is authoritative from here on.
	if serverKey := ackKey(ack); serverKey != "" && serverKey != key {
		a.Key = serverKey
		s.cache.Remove(id)
		s.cache.Add(annotation.DeriveID(s.endpoint.Family, a), raw)
		s.logger.Debug("server re-keyed annotation", "local", key, "server", serverKey)
	}
	return a, nil
}

// Delete removes an annotation. An id that classifies as invalid resolves
// as a silent no-op: the caller may be deleting something never persisted.
// Ownership is checked against the cached entry before any network call.
func (s *Source) Delete(ctx context.Context, id string) error {
	if annotation.TypeOf(id) == annotation.GeometryInvalid {
		s.logger.Debug("delete of unrecognized id is a no-op", "id", id)
		return nil
	}

	if raw, ok := s.cache.Value(id); ok {
		if owner, _ := raw["user"].(string); owner != "" && owner != s.user {
			return fmt.Errorf("%w: owned by %s", ErrPermission, owner)
		}
	}

	// Drafts were never uploaded; the backend has nothing to delete.
	if s.drafts != nil {
		if _, err := s.drafts.Get(ctx, s.endpoint.ListURL(), id); err == nil {
			s.removeLocal(ctx, id)
			return nil
		}
	}

	enc, ok := s.set.ForID(id)
	if !ok {
		return fmt.Errorf("%w: %s", annotation.ErrInvalidID, id)
	}

	// The upload policy gate mirrors Update: anything the policy kept local
	// was never uploaded, so the backend has nothing to delete. The policy
	// needs the annotation, not just the id, so consult the cached entry.
	if raw, ok := s.cache.Value(id); ok {
		if a, ok := s.set.Decode(annotation.KeyOf(id), cloneRaw(raw), s.logger); ok && !enc.Uploadable(a) {
			s.removeLocal(ctx, id)
			return nil
		}
	}

	if err := s.client.Delete(ctx, s.endpoint.DeleteURL(annotation.KeyOf(id))); err != nil {
		return fmt.Errorf("deleting %s: %w", id, err)
	}
	// Only after server confirmation.
	s.removeLocal(ctx, id)
	return nil
}

func (s *Source) removeLocal(ctx context.Context, id string) {
	s.cache.Remove(id)
	if s.drafts != nil {
		if err := s.drafts.Delete(ctx, s.endpoint.ListURL(), id); err != nil {
			s.logger.Warn("failed to delete draft", "id", id, "error", err)
		}
	}
}

// Get resolves an annotation's metadata purely from the cache; the bulk
// chunk protocol is the only network-backed reconciliation path. A miss
// reports found=false, not an error.
func (s *Source) Get(ctx context.Context, id string) (annotation.Annotation, bool, error) {
	raw, ok := s.cache.Value(id)
	if !ok {
		return annotation.Annotation{}, false, nil
	}
	a, ok := s.set.Decode(annotation.KeyOf(id), cloneRaw(raw), s.logger)
	if !ok {
		return annotation.Annotation{}, false,
			fmt.Errorf("%w: cached entry for %s does not decode", annotation.ErrInvalidID, id)
	}
	return a, true, nil
}

// ackKey extracts the server-assigned key from a write acknowledgment.
// Both families acknowledge with a JSON object carrying "key" when they
// re-key; anything else means the local key stands.
func ackKey(ack []byte) string {
	if len(ack) == 0 {
		return ""
	}
	var body struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(ack, &body); err != nil {
		return ""
	}
	return body.Key
}

// cloneRaw copies a raw entry one level deep so decode-side discriminant
// injection never mutates the cached value.
func cloneRaw(raw wire.RawEntry) wire.RawEntry {
	out := make(wire.RawEntry, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	return out
}
