// ABOUTME: Token provider with caching, invalidation, and per-realm acquisition
// ABOUTME: Expiry is inferred from 401/403 responses, never tracked locally

package credentials

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoHubFlow is returned when a hub realm is used without a hub auth flow
// configured.
var ErrNoHubFlow = errors.New("no hub auth flow configured")

// Provider produces an opaque bearer token and discards it on demand. Get
// blocks until a token is available or ctx is done; Invalidate drops any
// cached token so the next Get re-acquires one.
type Provider interface {
	Get(ctx context.Context) (string, error)
	Invalidate()
}

// HubFlow resolves a symbolic hub name to a bearer token. The concrete flow
// is platform-specific and supplied by the embedding application.
type HubFlow func(ctx context.Context, hub string) (string, error)

// CachedProvider caches the last acquired token for a realm. Acquisition is
// serialized: concurrent Get calls during a refresh wait for the single
// in-flight fetch rather than issuing their own.
type CachedProvider struct {
	realm  Realm
	hub    HubFlow
	hc     *http.Client
	logger *slog.Logger

	mu    sync.Mutex
	token string
}

// Option configures a CachedProvider.
type Option func(*CachedProvider)

// WithHubFlow supplies the auth flow used for hub realms.
func WithHubFlow(flow HubFlow) Option {
	return func(p *CachedProvider) { p.hub = flow }
}

// WithHTTPClient overrides the HTTP client used for URL realms.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *CachedProvider) { p.hc = hc }
}

// NewProvider creates a provider for a realm. Pass nil logger for default.
func NewProvider(realm Realm, logger *slog.Logger, opts ...Option) *CachedProvider {
	if logger == nil {
		logger = slog.Default()
	}
	p := &CachedProvider{
		realm:  realm,
		hc:     http.DefaultClient,
		logger: logger.With("component", "credentials"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Realm returns the provider's parsed realm.
func (p *CachedProvider) Realm() Realm { return p.realm }

// Get returns the current token, acquiring one if none is cached. Literal
// realms always return their literal.
func (p *CachedProvider) Get(ctx context.Context) (string, error) {
	if p.realm.Kind == RealmLiteral {
		return p.realm.Value, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token != "" {
		return p.token, nil
	}

	token, err := p.acquire(ctx)
	if err != nil {
		return "", err
	}
	p.token = token
	p.logExpiry(token)
	return token, nil
}

// Invalidate discards the cached token. The next Get re-acquires. Literal
// realms have nothing to discard.
func (p *CachedProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = ""
}

func (p *CachedProvider) acquire(ctx context.Context) (string, error) {
	switch p.realm.Kind {
	case RealmHub:
		if p.hub == nil {
			return "", fmt.Errorf("%w: realm %q", ErrNoHubFlow, p.realm.Value)
		}
		return p.hub(ctx, p.realm.Value)
	case RealmURL:
		return p.fetchURL(ctx)
	default:
		return p.realm.Value, nil
	}
}

// fetchURL re-fetches the realm URL; the response body is the token text.
func (p *CachedProvider) fetchURL(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.realm.Value, nil)
	if err != nil {
		return "", fmt.Errorf("building token request: %w", err)
	}
	resp, err := p.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", fmt.Errorf("reading token response: %w", err)
	}
	token := strings.TrimSpace(string(body))
	if token == "" {
		return "", errors.New("token endpoint returned an empty body")
	}
	return token, nil
}

// logExpiry peeks at a JWT-shaped token's exp claim for diagnostics. Tokens
// stay opaque to the sync layer: expiry is only ever inferred from 401/403
// responses, never from this claim.
func (p *CachedProvider) logExpiry(token string) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return
	}
	p.logger.Debug("token acquired",
		"realm", p.realm.Value,
		"expires", exp.Format(time.RFC3339))
}
