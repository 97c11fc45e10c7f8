/*
Package upstreamhttp wraps net/http.Client in a small Client type, built
once at startup from config and shared by every connection handler
goroutine — the same "one pooled client, not one
connection per call" shape as a Redis or database connection pool, applied
to outbound HTTP instead.

=== Why pool instead of dialing per request ===

Every gateway request makes exactly one upstream HTTP call. Without a
shared, pooled client, each call would pay a fresh TCP (and TLS, if the
upstream is https) handshake. http.Client already pools idle connections
per host internally; this package just gives that pool process-lifetime
configuration instead of relying on net/http's unconfigured defaults.
*/
package upstreamhttp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Config controls the pooled client's timeouts and connection reuse.
type Config struct {
	// Timeout bounds one upstream request/response round trip.
	Timeout time.Duration

	// MaxIdleConnsPerHost caps how many idle keep-alive connections the
	// client retains per upstream host.
	MaxIdleConnsPerHost int
}

// Client is a pooled HTTP client scoped to one upstream API.
type Client struct {
	http *http.Client
}

// New builds a Client from cfg. Call once at startup; the returned Client
// is safe for concurrent use by every connection handler goroutine.
func New(cfg Config) *Client {
	if cfg.MaxIdleConnsPerHost <= 0 {
		cfg.MaxIdleConnsPerHost = 16
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
	}
}

// PostXML issues one short-lived POST of body to url with
// Content-Type: text/xml, reads the response to completion, and returns
// its bytes. A non-2xx status is reported as an error.
func (c *Client) PostXML(ctx context.Context, url string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upstream response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}
	return respBody, nil
}
