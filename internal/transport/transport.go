// Package transport performs the single synchronous HTTP request the page
// fetcher needs. It owns timeouts and request pacing; it never retries.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"duck-restfdw/internal/domain"
)

// maxBodyBytes bounds how much of a response is read into memory.
const maxBodyBytes = 64 << 20

// Request is one outbound GET.
type Request struct {
	URL     string
	Headers http.Header
	Body    string
}

// Response is the status and full body of a completed request.
type Response struct {
	StatusCode int
	Body       []byte
}

// Transport performs one request and returns its response. A non-2xx status is
// not an error at this layer.
type Transport interface {
	Get(ctx context.Context, req Request) (*Response, error)
}

// HTTPTransport implements Transport over net/http.
type HTTPTransport struct {
	client  *http.Client
	limiter *rate.Limiter // nil = unpaced
	logger  *slog.Logger
}

// Option customizes an HTTPTransport at construction time.
type Option func(*HTTPTransport)

// WithHTTPClient replaces the tuned default client.
func WithHTTPClient(c *http.Client) Option { return func(t *HTTPTransport) { t.client = c } }

// WithTimeout sets the overall per-request timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(t *HTTPTransport) {
		if d > 0 {
			t.client.Timeout = d
		}
	}
}

// WithRateLimit paces outbound requests to rps with the given burst.
// A non-positive rps disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(t *HTTPTransport) {
		if rps <= 0 {
			t.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger used for request/response debug events.
func WithLogger(l *slog.Logger) Option { return func(t *HTTPTransport) { t.logger = l } }

// NewHTTPTransport constructs an HTTPTransport with safe defaults.
func NewHTTPTransport(opts ...Option) *HTTPTransport {
	t := &HTTPTransport{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
				MaxIdleConns:          20,
				IdleConnTimeout:       90 * time.Second,
			},
		},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Get sends req as an HTTP GET. Failures that produce no response are
// reported as *domain.TransportError.
func (t *HTTPTransport) Get(ctx context.Context, req Request) (*Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, &domain.TransportError{URL: req.URL, Err: fmt.Errorf("rate limit wait: %w", err)}
		}
	}

	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, body)
	if err != nil {
		return nil, &domain.TransportError{URL: req.URL, Err: err}
	}
	for k, vs := range req.Headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	t.logger.Debug("upstream request", "method", http.MethodGet, "url", req.URL, "headers", RedactHeaders(httpReq.Header))

	start := time.Now()
	res, err := t.client.Do(httpReq)
	if err != nil {
		return nil, &domain.TransportError{URL: req.URL, Err: err}
	}
	defer res.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes+1))
	if err != nil {
		return nil, &domain.TransportError{URL: req.URL, Err: fmt.Errorf("read body: %w", err)}
	}
	if len(data) > maxBodyBytes {
		return nil, &domain.TransportError{URL: req.URL, Err: errors.New("response body exceeds 64MiB")}
	}

	t.logger.Debug("upstream response", "url", req.URL, "status", res.StatusCode,
		"bytes", len(data), "duration_ms", time.Since(start).Milliseconds())

	return &Response{StatusCode: res.StatusCode, Body: data}, nil
}

// Compile-time check.
var _ Transport = (*HTTPTransport)(nil)
