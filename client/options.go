// Functional options configuring the Client during construction. Keeping
// them in a standalone file makes every available knob discoverable at a
// glance.
package client

import (
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/time/rate"

	"github.com/tidewatch/tidesync/internal/syncq"
)

// Option mutates the Client during New().
type Option func(*Client) error

// WithHTTPClient injects a custom *http.Client. Useful for transport
// timeouts, custom TLS settings, or a test server's client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return fmt.Errorf("nil http client")
		}
		c.http = hc
		return nil
	}
}

// WithDebugLogging wraps the transport so every request and response is
// dumped to the debug log when enabled is true.
func WithDebugLogging(enabled bool) Option {
	return func(c *Client) error {
		if enabled {
			transport := c.http.Transport
			if transport == nil {
				transport = http.DefaultTransport
			}
			c.http.Transport = &debugTransport{base: transport}
		}
		return nil
	}
}

// WithRateLimit caps outgoing requests to rps tokens per second with the
// given burst. rps <= 0 leaves the client unlimited.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) error {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return nil
		}
		if burst < 1 {
			return fmt.Errorf("rate burst must be >= 1")
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		return nil
	}
}

// WithExecutorConfig replaces the background executor tunables loaded from
// the environment.
func WithExecutorConfig(cfg syncq.Config) Option {
	return func(c *Client) error {
		c.exec = syncq.New(cfg)
		return nil
	}
}

// WithEnvironmentURLs overrides the resolved deployment URLs, e.g. to point
// the client at an on-premise install. An empty uploadBase keeps the
// environment's upload host.
func WithEnvironmentURLs(apiBase, uploadBase string) Option {
	return func(c *Client) error {
		a, err := url.Parse(apiBase)
		if err != nil {
			return err
		}
		c.env.APIBaseURL = a
		if uploadBase != "" {
			u, err := url.Parse(uploadBase)
			if err != nil {
				return err
			}
			c.env.UploadBaseURL = u
		}
		return nil
	}
}

// WithoutBackfill disables background profile backfill entirely. Listing
// still reports notes; missing profiles are simply not fetched.
func WithoutBackfill() Option {
	return func(c *Client) error {
		c.exec = noOpExecutor{}
		return nil
	}
}
