package client

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httputil"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/tidewatch/tidesync/internal/syncq"
)

// executor abstracts the background queue so tests and sync-only clients
// can swap it out.
type executor interface {
	Submit(ctx context.Context, key string, job syncq.Job) error
	Barrier(ctx context.Context, key string) error
	Stop()
}

// noOpExecutor drops background work. Cascading profile backfill is
// fire-and-forget, so dropping it is safe for clients that only need the
// synchronous surface.
type noOpExecutor struct{}

func (noOpExecutor) Submit(context.Context, string, syncq.Job) error { return nil }
func (noOpExecutor) Barrier(context.Context, string) error           { return nil }
func (noOpExecutor) Stop()                                           {}

// debugTransport dumps every round trip when debug logging is enabled.
type debugTransport struct{ base http.RoundTripper }

func (dt *debugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if reqDump, err := httputil.DumpRequestOut(req, true); err == nil {
		log.Debug().Str("method", req.Method).Str("url", req.URL.String()).Str("request_dump", string(reqDump)).Msg("HTTP request")
	}
	resp, err := dt.base.RoundTrip(req)
	if err != nil {
		log.Debug().Err(err).Str("method", req.Method).Str("url", req.URL.String()).Msg("HTTP request failed")
		return nil, err
	}
	if respDump, err := httputil.DumpResponse(resp, true); err == nil {
		log.Debug().Str("method", req.Method).Str("url", req.URL.String()).Int("status_code", resp.StatusCode).Str("response_dump", string(respDump)).Msg("HTTP response")
	}
	return resp, nil
}

// Client issues sync operations against one deployment and applies their
// results to one local cache. Methods are safe for concurrent use; cache
// consistency is guaranteed by the transactional apply rules in the cache
// package.
type Client struct {
	db      *gorm.DB
	env     Environment
	http    *http.Client
	exec    executor
	limiter *rate.Limiter

	closedOnce uint32
}

// New constructs a Client over an opened cache handle, bound to the named
// deployment (Production, Development or Staging).
func New(db *gorm.DB, environment string, opts ...Option) (*Client, error) {
	env, err := ResolveEnvironment(environment)
	if err != nil {
		return nil, err
	}
	c := &Client{
		db:      db,
		env:     env,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Inf, 0),
	}

	if os.Getenv("TIDESYNC_DEBUG") == "true" {
		opts = append(opts, WithDebugLogging(true))
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.exec == nil {
		cfg, err := syncq.LoadConfig()
		if err != nil {
			return nil, err
		}
		cfg.ErrorHandler = func(err error) {
			log.Warn().Err(err).Msg("background sync job failed")
		}
		c.exec = syncq.New(cfg)
	}
	return c, nil
}

// DB exposes the cache handle so applications can read previously synced
// entities while offline.
func (c *Client) DB() *gorm.DB { return c.db }

// Environment returns the resolved deployment the client talks to.
func (c *Client) Environment() Environment { return c.env }

// Close stops the background executor. Safe to call multiple times.
func (c *Client) Close() error {
	if !atomic.CompareAndSwapUint32(&c.closedOnce, 0, 1) {
		return nil
	}
	c.exec.Stop()
	return nil
}

// AwaitBackfill blocks until every background job already scheduled for
// userID (profile backfill after a listing) has run.
func (c *Client) AwaitBackfill(ctx context.Context, userID string) error {
	return c.exec.Barrier(ctx, userID)
}

// do sends one request and returns the status code, response headers and
// body. A non-2xx status is reported as an *APIError carrying the method
// name; transport failures are logged with the same context and returned
// unwrapped. The context is honoured before send via the rate limiter and
// request construction.
func (c *Client) do(ctx context.Context, op, method, url string, headers map[string]string, body []byte) (int, http.Header, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		logNetworkError(op, err)
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		logNetworkError(op, err)
		return resp.StatusCode, resp.Header, nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Method: op, StatusCode: resp.StatusCode, Body: string(respBody)}
		logNetworkError(op, apiErr)
		return resp.StatusCode, resp.Header, respBody, apiErr
	}
	return resp.StatusCode, resp.Header, respBody, nil
}

// logNetworkError records a failed request with the sync operation that
// issued it.
func logNetworkError(op string, err error) {
	log.Error().Err(err).Str("method", op).Msg("network error")
}
