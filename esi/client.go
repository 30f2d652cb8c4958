// Package esi is a small client for the public EVE Swagger Interface endpoints the bot
// needs: name search, ID to name resolution and regional market orders.
//
// Every request passes through the shared API limiter. HTTP 503 responses are retried
// with exponential backoff; any other non-2xx status is returned as a *StatusError
// without retrying.
package esi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/nexis84/Eve-Market-Bot/ratelimit"
	"github.com/nexis84/Eve-Market-Bot/telemetry"
)

// ErrUnavailable is returned once retries for a transient upstream failure are exhausted.
var ErrUnavailable = errors.New("esi: service temporarily unavailable")

// StatusError is a non-2xx response from ESI.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("esi %s: HTTP %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("esi %s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// IsRetryable reports whether err is a transient upstream failure worth retrying.
func IsRetryable(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusServiceUnavailable
}

// Client talks to ESI. Construct with New; the exported fields may be adjusted before use.
type Client struct {
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
	Limiter    *ratelimit.Limiter

	// MaxRetries is the number of retries after the first 503 response.
	MaxRetries int
	// RetryBase is the first backoff delay; each further delay doubles it.
	RetryBase time.Duration
	// RetryJitter is the backoff randomization factor in [0, 1).
	RetryJitter float64

	// Sleep waits between retries. Tests replace it to observe delays without waiting.
	Sleep func(ctx context.Context, d time.Duration) error
}

// New returns a client with the default retry policy (3 retries, 500ms base, 20% jitter).
func New(baseURL, userAgent string, hc *http.Client, lim *ratelimit.Limiter) *Client {
	return &Client{
		BaseURL:     baseURL,
		UserAgent:   userAgent,
		HTTPClient:  hc,
		Limiter:     lim,
		MaxRetries:  3,
		RetryBase:   500 * time.Millisecond,
		RetryJitter: 0.2,
	}
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.RetryBase
	b.Multiplier = 2
	b.RandomizationFactor = c.RetryJitter
	b.MaxInterval = 30 * time.Second
	b.Reset()
	return b
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if c.Sleep != nil {
		return c.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// request describes one ESI call; build is invoked per attempt so bodies can be replayed.
type request struct {
	endpoint string
	build    func(ctx context.Context) (*http.Request, error)
	out      any
}

// do executes req with the retry policy and returns the response headers of the
// successful attempt.
func (c *Client) do(ctx context.Context, req request) (http.Header, error) {
	ctx, span := telemetry.StartSpan(ctx, "esi", req.endpoint, telemetry.EndpointAttr(req.endpoint))
	defer span.End()

	logger := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "esi"), slog.String("endpoint", req.endpoint))
	bo := c.newBackOff()
	for attempt := 0; ; attempt++ {
		hdr, err := ratelimit.Schedule(ctx, c.Limiter, func(ctx context.Context) (http.Header, error) {
			return c.once(ctx, req)
		})
		if err == nil {
			telemetry.SetSpanSuccess(span)
			return hdr, nil
		}
		if !IsRetryable(err) {
			telemetry.RecordError(span, err)
			return nil, err
		}
		if attempt >= c.MaxRetries {
			err = fmt.Errorf("%w: %s after %d retries: %w", ErrUnavailable, req.endpoint, attempt, err)
			telemetry.RecordError(span, err)
			return nil, err
		}
		delay := bo.NextBackOff()
		telemetry.IncRetry(req.endpoint)
		logger.Warn("esi unavailable, retrying", slog.Int("attempt", attempt+1), slog.Duration("delay", delay))
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (c *Client) once(ctx context.Context, req request) (http.Header, error) {
	r, err := req.build(ctx)
	if err != nil {
		return nil, err
	}
	r.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		r.Header.Set("User-Agent", c.UserAgent)
	}
	var resp *http.Response
	telemetry.TimeFunc(telemetry.UpstreamLatency(req.endpoint), func() {
		resp, err = c.http().Do(r)
	})
	if err != nil {
		telemetry.IncUpstream(req.endpoint, 0)
		return nil, fmt.Errorf("esi %s: %w", req.endpoint, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	telemetry.IncUpstream(req.endpoint, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Endpoint: req.endpoint, StatusCode: resp.StatusCode, Body: string(b)}
	}
	if req.out != nil {
		if err := json.NewDecoder(resp.Body).Decode(req.out); err != nil {
			return nil, fmt.Errorf("esi %s: decode response: %w", req.endpoint, err)
		}
	}
	return resp.Header, nil
}
