// Package upstream holds the gateway's view of the internal services it
// fronts: where they live and whether they are healthy.
package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 5 * time.Second

// Client probes an internal service over HTTP.
type Client struct {
	name       string
	baseURL    *url.URL
	healthPath string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHealthPath overrides the default /health probe path.
func WithHealthPath(path string) Option {
	return func(c *Client) {
		if strings.TrimSpace(path) != "" {
			c.healthPath = path
		}
	}
}

// WithHTTPClient substitutes the HTTP client (useful for tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New constructs a Client for the service at baseURL.
func New(name, baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("upstream %s: parse base url: %w", name, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("upstream %s: base url %q must be absolute", name, baseURL)
	}
	c := &Client{
		name:       name,
		baseURL:    u,
		healthPath: "/health",
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name returns the service name used in logs and probe errors.
func (c *Client) Name() string { return c.name }

// Target returns the parsed base URL for proxying.
func (c *Client) Target() *url.URL { return c.baseURL }

// CheckHealth pings the service health endpoint. Any non-2xx status is an
// error.
func (c *Client) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL.JoinPath(c.healthPath).String(), nil)
	if err != nil {
		return fmt.Errorf("upstream %s: %w", c.name, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upstream %s: %w", c.name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upstream %s: health status %d", c.name, resp.StatusCode)
	}
	return nil
}
