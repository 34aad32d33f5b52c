// Package httpds reads conversion input over HTTP(S). The Client retries
// transient failures (transport errors, 429 and 5xx) with exponential
// backoff; Source streams a remote NDJSON object into the pipeline and
// decompresses it the same way local files are.
package httpds

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// DefaultUserAgent is sent unless Config.UserAgent or a header overrides it.
const DefaultUserAgent = "jsonl2parquet"

// ErrStatus is returned when the server answers with a non-2xx status.
var ErrStatus = errors.New("httpds: unexpected status")

// Config configures the HTTP datasource client.
//
// Zero values are given sensible defaults:
//   - Timeout:        30s
//   - MaxRetries:     0 (negative values clamp to 0)
//   - InitialBackoff: 200ms
//   - MaxBackoff:     5s
type Config struct {
	// Timeout bounds a whole request, or only the wait for response headers
	// when Stream is set.
	Timeout time.Duration

	// MaxRetries is the number of retry attempts after the initial request.
	MaxRetries int

	// InitialBackoff is the wait before the first retry; each further retry
	// doubles it up to MaxBackoff. A Retry-After header replaces the
	// computed wait, still capped by MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Stream drops the whole-request deadline so large bodies can be read
	// for as long as they keep flowing.
	Stream bool

	InsecureSkipVerify bool

	// BaseHeaders are added to every request; per-request headers win.
	BaseHeaders http.Header
	UserAgent   string

	// OnRetry is called before each backoff wait with the 1-based retry
	// number, the wait and the failure being retried.
	OnRetry func(retry int, wait time.Duration, err error)

	// Transport replaces the default *http.Transport.
	Transport http.RoundTripper
}

// Client wraps an http.Client with retry and backoff for GET requests.
type Client struct {
	httpClient     *http.Client
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	headers        http.Header
	onRetry        func(int, time.Duration, error)

	// wait blocks for d or until ctx is done; tests replace it.
	wait func(ctx context.Context, d time.Duration) error
}

// NewClient constructs a Client from Config, applying defaults for zero values.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	transport := cfg.Transport
	if transport == nil {
		tr := &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // explicitly configurable
			},
		}
		if cfg.Stream {
			tr.ResponseHeaderTimeout = cfg.Timeout
		}
		transport = tr
	}

	clientTimeout := cfg.Timeout
	if cfg.Stream {
		clientTimeout = 0
	}

	hdr := cfg.BaseHeaders.Clone()
	if hdr == nil {
		hdr = http.Header{}
	}
	if hdr.Get("User-Agent") == "" {
		hdr.Set("User-Agent", cfg.UserAgent)
	}

	return &Client{
		httpClient:     &http.Client{Timeout: clientTimeout, Transport: transport},
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		headers:        hdr,
		onRetry:        cfg.OnRetry,
		wait:           waitContext,
	}
}

// Get sends a GET for url, retrying transport errors and retryable
// statuses. Any other response, including 4xx, is returned as-is; the
// caller checks the status and must close the body.
func (c *Client) Get(ctx context.Context, url string, headers http.Header) (*http.Response, error) {
	if url == "" {
		return nil, errors.New("httpds: url must not be empty")
	}

	attempts := c.maxRetries + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("httpds: build request: %w", err)
		}
		req.Header = c.headers.Clone()
		for k, vs := range headers {
			req.Header[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
		}

		wait := c.backoff(attempt)
		resp, err := c.httpClient.Do(req)
		switch {
		case err != nil:
			lastErr = err
		case !isRetryableStatus(resp.StatusCode):
			return resp, nil
		default:
			if ra, ok := retryAfter(resp.Header.Get("Retry-After"), time.Now()); ok {
				wait = min(ra, c.maxBackoff)
			}
			discard(resp.Body)
			lastErr = fmt.Errorf("%w %d from %s", ErrStatus, resp.StatusCode, url)
		}

		if attempt+1 >= attempts {
			break
		}
		if c.onRetry != nil {
			c.onRetry(attempt+1, wait, lastErr)
		}
		if err := c.wait(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("httpds: giving up after %d attempts: %w", attempts, lastErr)
}

// discard drains a little of body so the connection can be reused, then
// closes it.
func discard(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}

// isRetryableStatus reports whether code is transient: 429 and 5xx.
func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code <= 599)
}

// backoff returns the wait after the given 0-based attempt.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.initialBackoff
	for i := 0; i < attempt && d < c.maxBackoff; i++ {
		d *= 2
	}
	return min(d, c.maxBackoff)
}

// retryAfter parses a Retry-After value given in seconds or as an HTTP date.
func retryAfter(v string, now time.Time) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	t, err := http.ParseTime(v)
	if err != nil {
		return 0, false
	}
	if d := t.Sub(now); d > 0 {
		return d, true
	}
	return 0, true
}

func waitContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
