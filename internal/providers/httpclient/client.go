// Package httpclient is the shared outbound HTTP client for information
// providers: one timeout, one user agent, one rate limit, one set of
// measurements.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"ynot/internal/config"
	"ynot/internal/ports"
)

const maxBodyBytes = 2 << 20

// StatusError reports a non-2xx response.
type StatusError struct {
	Provider string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s responded with HTTP %d", e.Provider, e.Code)
}

type Client struct {
	http      *http.Client
	userAgent string
	limiter   *rate.Limiter
	latency   metric.Float64Histogram
	recorder  ports.MetricsRecorder
	logger    *zap.Logger
}

func New(cfg config.ProvidersConfig, recorder ports.MetricsRecorder, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	latency, err := otel.Meter("ynot/providers").Float64Histogram(
		"ynot.provider.request.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Information provider request latency"),
	)
	if err != nil {
		logger.Warn("provider latency histogram unavailable", zap.Error(err))
	}

	return &Client{
		http:      &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		latency:   latency,
		recorder:  recorder,
		logger:    logger.With(zap.String("component", "providers")),
	}
}

// Get fetches url on behalf of provider and returns the body of a 2xx
// response. Other statuses yield a *StatusError.
func (c *Client) Get(ctx context.Context, provider string, url string) ([]byte, error) {
	body, err := c.get(ctx, provider, url)
	if c.recorder != nil {
		c.recorder.ObserveProvider(provider, err == nil)
	}
	return body, err
}

func (c *Client) get(ctx context.Context, provider string, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s request not sent: %w", provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", provider, err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if c.latency != nil {
		c.latency.Record(ctx, time.Since(started).Seconds(), metric.WithAttributes(attribute.String("provider", provider)))
	}
	if err != nil {
		c.logger.Debug("provider request failed", zap.String("provider", provider), zap.Error(err))
		return nil, fmt.Errorf("%s request failed: %w", provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &StatusError{Provider: provider, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", provider, err)
	}
	return body, nil
}
