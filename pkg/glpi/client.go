// Package glpi implements the integration engine for the GLPI REST API:
// authenticated request pipeline with retry and backoff, session lifecycle,
// search-option discovery, search parameter building, and the status probe.
package glpi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/centralti/glpi-metrics/pkg/metrics"
)

// slowThreshold is the duration above which a call is reported as slow.
const slowThreshold = 3 * time.Second

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
	http.MethodPatch:  true,
}

// Response is the outcome of one GLPI call after all retries.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// JSON decodes the body into v, mapping failures to DecodeError.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return WrapError(KindDecode, "decode response body", err)
	}
	return nil
}

// TotalCount extracts the pagination total: Content-Range first, then the
// totalcount JSON field, then the length of data[].
func (r *Response) TotalCount() (int, error) {
	if h := r.Header.Get("Content-Range"); h != "" {
		return ParseContentRange(h)
	}
	var body struct {
		TotalCount *int             `json:"totalcount"`
		Data       []map[string]any `json:"data"`
	}
	if err := r.JSON(&body); err != nil {
		return 0, err
	}
	if body.TotalCount != nil {
		return *body.TotalCount, nil
	}
	return len(body.Data), nil
}

// Sessioner supplies authentication headers and accepts invalidation.
// Implemented by SessionManager; stubbed in tests.
type Sessioner interface {
	Headers(ctx context.Context) (map[string]string, error)
	Invalidate()
}

// ClientConfig configures the request pipeline.
type ClientConfig struct {
	BaseURL string

	FastTimeout    time.Duration
	DefaultTimeout time.Duration
	SlowTimeout    time.Duration

	MaxRetries  int
	BackoffUnit time.Duration
}

func (c *ClientConfig) withDefaults() ClientConfig {
	out := *c
	if out.FastTimeout <= 0 {
		out.FastTimeout = 5 * time.Second
	}
	if out.DefaultTimeout <= 0 {
		out.DefaultTimeout = 12 * time.Second
	}
	if out.SlowTimeout <= 0 {
		out.SlowTimeout = 20 * time.Second
	}
	if out.MaxRetries <= 0 {
		out.MaxRetries = 3
	}
	if out.BackoffUnit <= 0 {
		out.BackoffUnit = time.Second
	}
	return out
}

// Client issues authenticated requests to GLPI. Every outbound call of the
// engine funnels through Do.
type Client struct {
	cfg      ClientConfig
	session  Sessioner
	httpc    *http.Client
	observer *metrics.Observer
	logger   *slog.Logger
}

// NewClient builds a client around a session manager. observer may be nil.
func NewClient(cfg ClientConfig, session Sessioner, observer *metrics.Observer, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:      cfg.withDefaults(),
		session:  session,
		httpc:    &http.Client{},
		observer: observer,
		logger:   logger,
	}
}

// Do performs one logical GLPI call with retries.
//
// Transport failures and 5xx responses are retried up to MaxRetries with
// backoff min(2^attempt, 30) units. A 401/403 invalidates the session once,
// waits min(2^attempt, 10) units, and retries without consuming a standard
// retry. The final response is returned regardless of its status code; an
// error is returned only for invalid input or exhausted transport retries.
func (c *Client) Do(ctx context.Context, method, path string, params url.Values, headers map[string]string) (*Response, error) {
	if !allowedMethods[method] {
		return nil, NewError(KindInvalidArgument, fmt.Sprintf("unsupported method %q", method))
	}
	if path == "" {
		return nil, NewError(KindInvalidArgument, "empty path")
	}

	timeout := c.timeoutFor(path)
	correlation := CorrelationFrom(ctx)
	start := time.Now()
	attempt := 0
	authRecovered := false

	for {
		resp, err := c.attempt(ctx, method, path, params, headers, timeout, correlation)

		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, classifyTransport(ctx.Err())
			}
			if attempt >= c.cfg.MaxRetries {
				c.record(method, path, 0, start, attempt, correlation)
				return nil, classifyTransport(err)
			}
			c.logger.Warn("GLPI request failed, retrying",
				"method", method, "endpoint", path,
				"attempt", attempt, "correlation_id", correlation, "error", err)
			c.observer.GLPIRetry()
			if err := sleepCtx(ctx, backoffDelay(attempt, 30, c.cfg.BackoffUnit)); err != nil {
				return nil, classifyTransport(err)
			}
			attempt++

		case resp.Status == http.StatusUnauthorized || resp.Status == http.StatusForbidden:
			if authRecovered {
				c.record(method, path, resp.Status, start, attempt, correlation)
				return resp, nil
			}
			c.logger.Warn("GLPI rejected session, re-authenticating",
				"status", resp.Status, "endpoint", path, "correlation_id", correlation)
			c.session.Invalidate()
			c.observer.GLPIAuthRecovery()
			if err := sleepCtx(ctx, backoffDelay(attempt, 10, c.cfg.BackoffUnit)); err != nil {
				return nil, classifyTransport(err)
			}
			authRecovered = true

		case resp.Status >= 500:
			if attempt >= c.cfg.MaxRetries {
				c.record(method, path, resp.Status, start, attempt, correlation)
				return resp, nil
			}
			c.logger.Warn("GLPI server error, retrying",
				"status", resp.Status, "endpoint", path,
				"attempt", attempt, "correlation_id", correlation)
			c.observer.GLPIRetry()
			if err := sleepCtx(ctx, backoffDelay(attempt, 30, c.cfg.BackoffUnit)); err != nil {
				return nil, classifyTransport(err)
			}
			attempt++

		default:
			c.record(method, path, resp.Status, start, attempt, correlation)
			return resp, nil
		}
	}
}

func (c *Client) attempt(ctx context.Context, method, path string, params url.Values, headers map[string]string, timeout time.Duration, correlation string) (*Response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	u := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(reqCtx, method, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	auth, err := c.session.Headers(ctx)
	if err != nil {
		return nil, err
	}
	for k, v := range auth {
		req.Header.Set(k, v)
	}
	// Caller headers win over session defaults.
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if correlation != "" {
		req.Header.Set("X-Correlation-ID", correlation)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func (c *Client) record(method, path string, status int, start time.Time, attempt int, correlation string) {
	elapsed := time.Since(start)
	c.observer.GLPIRequest(method, endpointLabel(path), status, elapsed)
	if elapsed > slowThreshold {
		c.observer.GLPISlowResponse()
		c.logger.Warn("Slow GLPI response",
			"method", method, "endpoint", path,
			"duration_ms", elapsed.Milliseconds(),
			"attempts", attempt+1, "status", status,
			"correlation_id", correlation)
		return
	}
	c.logger.Debug("GLPI request complete",
		"method", method, "endpoint", path,
		"duration_ms", elapsed.Milliseconds(),
		"attempts", attempt+1, "status", status,
		"correlation_id", correlation)
}

func (c *Client) timeoutFor(path string) time.Duration {
	switch {
	case strings.Contains(path, "initSession"),
		strings.Contains(path, "killSession"),
		strings.Contains(path, "status"):
		return c.cfg.FastTimeout
	case strings.Contains(path, "search"),
		strings.Contains(path, "report"),
		strings.Contains(path, "listSearchOptions"):
		return c.cfg.SlowTimeout
	default:
		return c.cfg.DefaultTimeout
	}
}

// endpointLabel collapses numeric path segments so metric labels stay
// bounded ("/Ticket/123" → "Ticket").
func endpointLabel(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	kept := parts[:0]
	for _, p := range parts {
		if _, err := strconv.Atoi(p); err == nil {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, "/")
}

// backoffDelay is min(2^attempt, cap) backoff units.
func backoffDelay(attempt, capUnits int, unit time.Duration) time.Duration {
	units := 1 << attempt
	if units > capUnits {
		units = capUnits
	}
	return time.Duration(units) * unit
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func classifyTransport(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return WrapError(KindTimeout, "request timed out", err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return WrapError(KindTimeout, "request timed out", err)
	case errors.Is(err, context.Canceled):
		return WrapError(KindConnection, "request cancelled", err)
	default:
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return apiErr
		}
		return WrapError(KindConnection, "request failed", err)
	}
}
