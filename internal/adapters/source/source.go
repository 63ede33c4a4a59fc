package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"catalog/internal/adapters/http/perf"
	"catalog/internal/domain/item"
)

// DefaultTimeout bounds a single remote fetch.
const DefaultTimeout = 10 * time.Second

// UserAgent is sent with every remote request.
const UserAgent = "catalog/1.0"

// FetchError reports a source that could not be loaded or decoded.
// StatusCode is zero when no HTTP response was received.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ErrStatus is wrapped by FetchError when the server answered with a non-2xx status.
var ErrStatus = errors.New("unexpected status")

// Loader loads the full item list of a source.
type Loader interface {
	Load(ctx context.Context, src string, kind item.Kind) ([]item.Item, error)
}

// Client loads sources over HTTP(S) or from the local filesystem.
type Client struct {
	http      *resty.Client
	collector *perf.Collector
}

var _ Loader = (*Client)(nil)

// NewClient creates a loader. Remote requests are never retried.
// PRE: collector may be nil
// POST: timeout <= 0 uses DefaultTimeout
func NewClient(timeout time.Duration, collector *perf.Collector) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", UserAgent).
		SetHeader("Accept", "application/json")
	return &Client{http: c, collector: collector}
}

// IsRemote reports whether src is an http or https URL.
func IsRemote(src string) bool {
	u, err := url.Parse(src)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// Load fetches src once and decodes it as kind.
// PRE: kind is a supported Kind
// POST: Returns every item in document order, or a *FetchError; never a partial list
func (c *Client) Load(ctx context.Context, src string, kind item.Kind) ([]item.Item, error) {
	start := time.Now()
	data, status, err := c.read(ctx, src)
	c.observe(src, status, start, err)
	if err != nil {
		return nil, &FetchError{URL: src, StatusCode: status, Err: err}
	}
	items, err := item.Decode(kind, data)
	if err != nil {
		slog.Warn("source_decode_failed", "url", src, "kind", kind, "error", err)
		return nil, &FetchError{URL: src, StatusCode: status, Err: err}
	}
	return items, nil
}

func (c *Client) read(ctx context.Context, src string) ([]byte, int, error) {
	if !IsRemote(src) {
		data, err := os.ReadFile(strings.TrimPrefix(src, "file://"))
		return data, 0, err
	}
	resp, err := c.http.R().SetContext(ctx).Get(src)
	if err != nil {
		return nil, 0, err
	}
	if !resp.IsSuccess() {
		return nil, resp.StatusCode(), fmt.Errorf("%w: %s", ErrStatus, http.StatusText(resp.StatusCode()))
	}
	return resp.Body(), resp.StatusCode(), nil
}

func (c *Client) observe(src string, status int, start time.Time, err error) {
	elapsed := time.Since(start)
	durationMs := float64(elapsed.Microseconds()) / 1000.0
	if err != nil {
		slog.Warn("source_fetch_failed", "url", src, "status", status, "duration_ms", durationMs, "error", err)
	} else {
		slog.Info("source_fetch", "url", src, "status", status, "duration_ms", durationMs)
	}
	c.collector.Record(perf.Entry{
		Kind:       perf.KindFetch,
		Path:       src,
		StatusCode: status,
		DurationMs: durationMs,
		Timestamp:  start,
	})
}
