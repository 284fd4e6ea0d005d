package indexers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/paper-acquisition-service/internal/ratelimit"
)

// Fetcher executes adapter requests.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*Response, error)
}

// FetcherConfig configures the HTTP fetcher.
type FetcherConfig struct {
	// Timeout is the per-request timeout.
	Timeout time.Duration

	// UserAgent is the User-Agent header sent when a request sets none.
	UserAgent string

	// MaxBodySize caps how much of a response body is read.
	MaxBodySize int64

	// RateLimit is the sustained requests per second across all hosts.
	// Zero disables the global limiter.
	RateLimit float64
}

// Default fetcher settings.
const (
	DefaultFetchTimeout = 30 * time.Second
	DefaultUserAgent    = "Helixir-PaperAcquisition/1.0"
	DefaultMaxBodySize  = 10 << 20
)

// HTTPFetcher performs requests over HTTP. It does not retry: the caller
// decides what to do with a failed fetch. It is safe for concurrent use.
type HTTPFetcher struct {
	client  *http.Client
	limiter *ratelimit.Limiter
	config  FetcherConfig
}

// NewHTTPFetcher creates a fetcher. A nil client gets a fresh one with the
// configured timeout.
func NewHTTPFetcher(cfg FetcherConfig, client *http.Client) *HTTPFetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultFetchTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	f := &HTTPFetcher{
		client: client,
		config: cfg,
	}
	if cfg.RateLimit > 0 {
		f.limiter = ratelimit.NewLimiter(cfg.RateLimit, int(cfg.RateLimit)+1)
	}
	return f
}

// Fetch executes req and reads the body. Non-2xx statuses are returned as a
// Response, not an error; adapters decide which statuses mean "empty".
// Transport failures are returned as errors for classification.
func (f *HTTPFetcher) Fetch(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", f.config.UserAgent)
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	finalURL := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Response{
		Request:    req,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		URL:        finalURL,
	}, nil
}

// RetryAfter parses a Retry-After header given in seconds or as an HTTP
// date. It returns 0 when the header is absent or unparsable.
func RetryAfter(h http.Header) time.Duration {
	value := strings.TrimSpace(h.Get("Retry-After"))
	if value == "" {
		return 0
	}

	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return 0
	}

	if t, err := http.ParseTime(value); err == nil {
		if delay := time.Until(t); delay > 0 {
			return delay
		}
	}
	return 0
}
