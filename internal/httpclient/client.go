// Package httpclient provides the outbound HTTP client shared by the origin
// prober, the stream relay, and the resolver forwarder.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/iconidentify/vidrelay/internal/config"
)

// Client stamps every outbound request with a fixed browser identity and
// follows redirects. It is safe for concurrent use and never mutated after New.
type Client struct {
	http      *http.Client
	userAgent string
	referer   string
}

// New creates the shared client. There is no overall client timeout; callers
// bound each operation with a context deadline instead, since streaming
// requests outlive metadata requests.
func New(cfg config.HTTPConfig) *Client {
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.ResponseHeaderTimeout = cfg.ResponseHeaderTimeout

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = config.DefaultUserAgent
	}

	maxRedirects := cfg.MaxRedirects
	return &Client{
		http: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) > maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		userAgent: userAgent,
		referer:   cfg.Referer,
	}
}

// UserAgent returns the identification header sent on every request.
func (c *Client) UserAgent() string {
	return c.userAgent
}

// NewRequest builds a request carrying the client's identification headers.
func (c *Client) NewRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if c.referer != "" {
		req.Header.Set("Referer", c.referer)
	}
	return req, nil
}

// Do sends req. Redirects are followed up to the configured limit and keep
// the identification headers.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return c.http.Do(req)
}

// IsSuccess reports whether status is a 2xx code.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}
