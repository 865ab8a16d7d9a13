// ABOUTME: Credentialed HTTP client wrapping bearer injection and retry policy
// ABOUTME: 401/403 triggers one refresh-and-retry, 504 retries with capped backoff

package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/2389/annosync/internal/credentials"
)

// ErrAuth indicates a 401/403 that could not be recovered by a token
// refresh (or the realm was not refreshable).
var ErrAuth = errors.New("authentication failed")

// ErrGatewayTimeout indicates the 504 retry allowance ran out.
var ErrGatewayTimeout = errors.New("gateway timeout")

// StatusError is any other terminal non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

const (
	defaultRetryCap  = 5
	defaultRetryBase = 250 * time.Millisecond
	maxErrorBody     = 512
)

// Config assembles a Client.
type Config struct {
	// Provider supplies bearer tokens. Nil means unauthenticated calls.
	Provider credentials.Provider

	// Refreshable marks the call site as allowed to refresh-and-retry on
	// 401/403. Set it from the realm: hub and URL realms are refreshable,
	// a literal token realm is not.
	Refreshable bool

	// RetryCap bounds the 504 retry loop. The observed upstream behavior
	// retries without limit; the cap is deliberate hardening.
	RetryCap int

	// RetryBase is the first 504 backoff; it doubles per attempt.
	RetryBase time.Duration

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client layers credential injection, auth-failure refresh, and gateway
// timeout retry around a bare HTTP client.
type Client struct {
	hc          *http.Client
	provider    credentials.Provider
	refreshable bool
	retryCap    int
	retryBase   time.Duration
	logger      *slog.Logger
}

// New creates a Client from cfg, filling defaults for unset fields.
func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retryCap := cfg.RetryCap
	if retryCap <= 0 {
		retryCap = defaultRetryCap
	}
	retryBase := cfg.RetryBase
	if retryBase <= 0 {
		retryBase = defaultRetryBase
	}
	return &Client{
		hc:          hc,
		provider:    cfg.Provider,
		refreshable: cfg.Refreshable,
		retryCap:    retryCap,
		retryBase:   retryBase,
		logger:      logger.With("component", "httpx"),
	}
}

// Get issues a GET and returns the response body.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, url, nil, "")
}

// GetJSON issues a GET and unmarshals the response body into v.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	body, err := c.do(ctx, http.MethodGet, url, nil, "")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding response from %s: %w", url, err)
	}
	return nil
}

// PostJSON issues a POST with a JSON body and returns the response body.
func (c *Client) PostJSON(ctx context.Context, url string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, url, body, "application/json")
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, url string) error {
	_, err := c.do(ctx, http.MethodDelete, url, nil, "")
	return err
}

// do runs one logical request through the full policy stack. The request is
// rebuilt on every attempt so retries never reuse a consumed body.
func (c *Client) do(ctx context.Context, method, url string, body []byte, contentType string) ([]byte, error) {
	refreshed := false
	timeouts := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("building request: %w", err)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		if err := c.authorize(ctx, req); err != nil {
			return nil, err
		}

		resp, err := c.hc.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, url, err)
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			drain(resp)
			if c.refreshable && !refreshed && c.provider != nil {
				refreshed = true
				c.provider.Invalidate()
				c.logger.Debug("auth failure, refreshing token",
					"status", resp.StatusCode, "url", url)
				continue
			}
			return nil, fmt.Errorf("%w: status %d from %s", ErrAuth, resp.StatusCode, url)

		case resp.StatusCode == http.StatusGatewayTimeout:
			drain(resp)
			timeouts++
			if timeouts > c.retryCap {
				return nil, fmt.Errorf("%w: gave up after %d attempts against %s",
					ErrGatewayTimeout, timeouts, url)
			}
			delay := c.retryBase << (timeouts - 1)
			c.logger.Warn("gateway timeout, retrying",
				"attempt", timeouts, "delay", delay, "url", url)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue

		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			data, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("reading response body: %w", err)
			}
			return data, nil

		default:
			snippet := readSnippet(resp)
			return nil, &StatusError{Code: resp.StatusCode, Body: snippet}
		}
	}
}

// authorize injects the bearer token. When the provider yields no token and
// the target uses secure transport, the request proceeds on the ambient
// cookie credentials carried by the underlying client's jar instead of
// failing outright.
func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	if c.provider == nil {
		return nil
	}
	token, err := c.provider.Get(ctx)
	if err != nil {
		if req.URL.Scheme == "https" {
			c.logger.Debug("no token available, relying on ambient credentials",
				"url", req.URL.String())
			return nil
		}
		return fmt.Errorf("acquiring token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}

func readSnippet(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
	return strings.TrimSpace(string(data))
}
