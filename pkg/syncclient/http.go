// Package syncclient is a Go client for a board sync server: a health
// probe over HTTP and a reconnecting WebSocket for the event stream.
package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// Health mirrors the server's GET /health response.
type Health struct {
	Status      string `json:"status"`
	Uptime      int64  `json:"uptime"`
	Version     string `json:"version"`
	Rooms       int    `json:"rooms"`
	Connections int    `json:"connections"`
	Services    struct {
		Redis struct {
			Status              string `json:"status"`
			Connected           bool   `json:"connected"`
			UsingMemoryFallback bool   `json:"usingMemoryFallback"`
			MemoryKeys          int    `json:"memoryKeys"`
		} `json:"redis"`
	} `json:"services"`
}

type Client struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetHealth fetches the full health report. A degraded server answers
// 503 with the same body, which is still decoded and returned.
func (c *Client) GetHealth(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/health", &h, true); err != nil {
		return nil, err
	}
	return &h, nil
}

// Ready reports whether GET /health/ready answers 200.
func (c *Client) Ready(ctx context.Context) (bool, error) {
	err := c.doJSON(ctx, fasthttp.MethodGet, "/health/ready", nil, false)
	if err == nil {
		return true, nil
	}
	var se *statusError
	if errors.As(err, &se) {
		return false, nil
	}
	return false, err
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("sync api error: status=%d body=%s", e.status, truncate(e.body, 512))
}

func (c *Client) doJSON(ctx context.Context, method, path string, out any, retry bool) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")

	attempts := 1
	if retry && c.retryMax > 1 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			if attempt == attempts {
				return lastErr
			}
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			// health bodies are meaningful even on 503
			if out != nil && len(resp.Body()) > 0 {
				if derr := json.Unmarshal(resp.Body(), out); derr == nil {
					return nil
				}
			}
			lastErr = &statusError{status: status, body: string(resp.Body())}
			if attempt == attempts || !shouldRetryStatus(status) {
				return lastErr
			}
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		if out != nil {
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}
	return lastErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
