// Package fetch is the shared resilient HTTP layer used by every provider
// client: fixed inter-request spacing, retry with exponential backoff on a
// fixed allow-list of transient statuses, and a typed error that
// distinguishes timeouts, rate limiting and server errors.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	defaultMaxRetries     = 2
	defaultBackoffBase    = 500 * time.Millisecond
	defaultTimeoutSeconds = 30
	defaultSpacing        = 500 * time.Millisecond
	defaultUserAgent      = "macroscope/0.1"
)

// Kind categorizes a fetch failure so provider clients can phrase the
// reason they record without inspecting status codes themselves.
type Kind string

const (
	KindTimeout     Kind = "timeout"
	KindRateLimited Kind = "rate_limited"
	KindServer      Kind = "server_error"
	KindHTTP        Kind = "http_error"
	KindNetwork     Kind = "network_error"
)

// Error is returned when a request fails with a non-retryable status or
// when all retry attempts are exhausted.
type Error struct {
	Kind     Kind
	Status   int
	URL      string
	Attempts int
	Body     string
	cause    error
}

func (e *Error) Error() string {
	switch {
	case e.cause != nil:
		return fmt.Sprintf("fetch: %s after %d attempt(s): %v", e.Kind, e.Attempts, e.cause)
	case e.Status != 0:
		return fmt.Sprintf("fetch: %s after %d attempt(s): HTTP %d", e.Kind, e.Attempts, e.Status)
	default:
		return fmt.Sprintf("fetch: %s after %d attempt(s)", e.Kind, e.Attempts)
	}
}

func (e *Error) Unwrap() error {
	return e.cause
}

type Config struct {
	MaxRetries  int
	BackoffBase time.Duration
	Timeout     time.Duration
	// Spacing is the minimum delay enforced before every request,
	// including the first, serialized across concurrent callers.
	Spacing   time.Duration
	UserAgent string
	// Transport overrides the HTTP round tripper. Nil uses the default
	// pooled transport.
	Transport http.RoundTripper
}

// Client issues rate-limited GET requests. One instance is shared by all
// calls against the same upstream so concurrent load still respects the
// inter-request spacing; it is safe for concurrent use.
type Client struct {
	config Config
	http   *http.Client

	mu   sync.Mutex
	last time.Time
}

func New() *Client {
	return NewWithConfig(Config{})
}

func NewWithConfig(cfg Config) *Client {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaultBackoffBase
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeoutSeconds * time.Second
	}
	if cfg.Spacing < 0 {
		cfg.Spacing = 0
	} else if cfg.Spacing == 0 {
		cfg.Spacing = defaultSpacing
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	return &Client{
		config: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
	}
}

// retryableStatus is the fixed allow-list of transient statuses.
func retryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= http.StatusInternalServerError:
		return KindServer
	default:
		return KindHTTP
	}
}

// Get issues a GET with the configured spacing, timeout and retry policy
// and returns the response body. The error, when non-nil, is always a
// *fetch.Error except for context cancellation, which is returned as-is.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values, headers http.Header) ([]byte, error) {
	uri := endpoint
	if len(params) > 0 {
		uri = endpoint + "?" + params.Encode()
	}

	attempts := c.config.MaxRetries + 1
	var lastErr *Error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := c.config.BackoffBase << (attempt - 1)
			if err := sleepWithContext(ctx, backoff); err != nil {
				return nil, err
			}
		}
		if err := c.pace(ctx); err != nil {
			return nil, err
		}

		body, status, err := c.do(ctx, uri, headers)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			kind := KindNetwork
			if isTimeout(err) {
				kind = KindTimeout
			}
			// Timeouts and transport failures are retryable.
			lastErr = &Error{Kind: kind, URL: uri, Attempts: attempt + 1, cause: err}
			continue
		}
		if status >= http.StatusOK && status < http.StatusMultipleChoices {
			return body, nil
		}

		lastErr = &Error{
			Kind:     kindForStatus(status),
			Status:   status,
			URL:      uri,
			Attempts: attempt + 1,
			Body:     strings.TrimSpace(string(body)),
		}
		if !retryableStatus(status) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// pace enforces the minimum inter-request spacing. Concurrent callers are
// serialized only for the duration of the wait bookkeeping.
func (c *Client) pace(ctx context.Context) error {
	if c.config.Spacing <= 0 {
		return nil
	}
	c.mu.Lock()
	now := time.Now()
	next := c.last.Add(c.config.Spacing)
	if next.Before(now) {
		next = now
	}
	c.last = next
	c.mu.Unlock()

	return sleepWithContext(ctx, time.Until(next))
}

func (c *Client) do(ctx context.Context, uri string, headers http.Header) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	for key, values := range headers {
		for _, value := range values {
			req.Header.Set(key, value)
		}
	}
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
