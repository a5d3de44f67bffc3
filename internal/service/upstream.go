package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	meterName       = "github.com/saferoute/backend"
	maxResponseSize = 16 << 20
)

// UpstreamConfig tunes the HTTP behaviour towards one provider
type UpstreamConfig struct {
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration
	// RatePerSecond throttles outbound calls; 0 disables throttling
	RatePerSecond float64
}

// DefaultUpstreamConfig mirrors the service defaults
func DefaultUpstreamConfig() UpstreamConfig {
	return UpstreamConfig{
		Timeout:    15 * time.Second,
		Retries:    2,
		RetryDelay: 200 * time.Millisecond,
	}
}

// StatusError is returned for non-2xx upstream responses
type StatusError struct {
	Provider string
	Code     int
	Body     []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Provider, e.Code)
}

// upstream is a JSON-over-HTTP client for one provider with retries,
// optional rate limiting and request metrics
type upstream struct {
	name       string
	httpClient *http.Client
	cfg        UpstreamConfig
	limiter    *rate.Limiter
	logger     *zap.Logger
	requests   metric.Int64Counter
}

func newUpstream(name string, cfg UpstreamConfig, logger *zap.Logger) *upstream {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 200 * time.Millisecond
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	u := &upstream{
		name: name,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cfg:    cfg,
		logger: logger.With(zap.String("provider", name)),
	}
	if cfg.RatePerSecond > 0 {
		burst := int(cfg.RatePerSecond * 2)
		if burst < 1 {
			burst = 1
		}
		u.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	u.requests, _ = otel.Meter(meterName).Int64Counter("safety_upstream_requests_total")
	return u
}

// doJSON sends the request built by newReq and decodes a 2xx body into out.
// newReq is called once per attempt since request bodies cannot be replayed.
// Transport errors and 5xx responses are retried; 4xx and decode errors are not.
func (u *upstream) doJSON(ctx context.Context, newReq func(ctx context.Context) (*http.Request, error), out any) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = u.cfg.RetryDelay
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(u.cfg.Retries)), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		if u.limiter != nil {
			if err := u.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		req, err := newReq(ctx)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("%s: failed to create request: %w", u.name, err))
		}

		resp, err := u.httpClient.Do(req)
		if err != nil {
			u.record(ctx, "transport_error")
			u.logger.Debug("upstream call failed", zap.Int("attempt", attempt), zap.Error(err))
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return fmt.Errorf("%s: request failed: %w", u.name, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			u.record(ctx, "transport_error")
			return fmt.Errorf("%s: failed to read response: %w", u.name, err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			statusErr := &StatusError{Provider: u.name, Code: resp.StatusCode, Body: body}
			if resp.StatusCode >= 500 {
				u.record(ctx, "server_error")
				return statusErr
			}
			u.record(ctx, "client_error")
			return backoff.Permanent(statusErr)
		}

		if err := json.Unmarshal(body, out); err != nil {
			u.record(ctx, "decode_error")
			return backoff.Permanent(fmt.Errorf("%s: failed to decode response: %w", u.name, err))
		}
		u.record(ctx, "ok")
		return nil
	}, b)

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	return err
}

func (u *upstream) record(ctx context.Context, outcome string) {
	u.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", u.name),
		attribute.String("outcome", outcome),
	))
}
