// Package httpretry wraps an HTTP client with bounded retries, exponential
// backoff and full jitter. It is used for outbound notification deliveries.
package httpretry

import (
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"time"
)

// HTTPDoer executes HTTP requests. *http.Client and *Client satisfy it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client retries transient failures of the wrapped HTTPDoer.
type Client struct {
	doer       HTTPDoer
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	minDelay   time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithMaxRetries sets the number of retries after the first attempt.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithBackoff sets the base and cap of the exponential backoff. The floor
// applied to jittered delays is lowered to base when base is smaller.
func WithBackoff(base, max time.Duration) Option {
	return func(c *Client) {
		if base > 0 {
			c.baseDelay = base
			if base < c.minDelay {
				c.minDelay = base
			}
		}
		if max > 0 {
			c.maxDelay = max
		}
	}
}

// New wraps doer. A nil doer gets an http.Client with a 10s timeout.
func New(doer HTTPDoer, opts ...Option) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: 10 * time.Second}
	}
	c := &Client{
		doer:       doer,
		maxRetries: 3,
		baseDelay:  500 * time.Millisecond,
		maxDelay:   10 * time.Second,
		minDelay:   100 * time.Millisecond,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Do sends req, retrying on network errors and on 429/5xx gateway statuses.
// Client errors are returned immediately. When retries run out on a
// retryable status the last response is returned unread so the caller can
// inspect it. Requests with a body must set GetBody to be retried.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if req.Body != nil && req.GetBody == nil {
				return nil, lastErr
			}
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("httpretry: reset body: %w", err)
				}
				req.Body = body
			}

			delay := c.backoff(attempt)
			log.Printf("[httpretry] %s %s%s attempt %d/%d in %s: %v",
				req.Method, req.URL.Host, req.URL.Path, attempt, c.maxRetries, delay, lastErr)
			t := time.NewTimer(delay)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := c.doer.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			lastErr = err
			continue
		}
		if !Retryable(resp.StatusCode) || attempt == c.maxRetries {
			return resp, nil
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		lastErr = fmt.Errorf("httpretry: status %d", resp.StatusCode)
	}
	return nil, lastErr
}

// backoff returns a full-jitter delay in [minDelay, min(maxDelay, base*2^(attempt-1))].
func (c *Client) backoff(attempt int) time.Duration {
	ceiling := math.Min(float64(c.maxDelay), float64(c.baseDelay)*math.Pow(2, float64(attempt-1)))
	d := time.Duration(rand.Float64() * ceiling)
	if d < c.minDelay {
		d = c.minDelay
	}
	return d
}

// Retryable reports whether a response status is worth retrying.
func Retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
