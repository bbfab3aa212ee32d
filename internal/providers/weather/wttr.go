// Package weather reads one-line conditions from a wttr.in compatible service.
package weather

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"ynot/internal/cache"
	"ynot/internal/config"
	"ynot/internal/providers/httpclient"
)

const providerName = "weather"

// Provider implements ports.WeatherProvider.
type Provider struct {
	client   *httpclient.Client
	loader   *cache.Loader
	endpoint string
	ttl      time.Duration
}

func New(cfg config.WeatherConfig, client *httpclient.Client, loader *cache.Loader) (*Provider, error) {
	endpoint, err := conditionsURL(cfg)
	if err != nil {
		return nil, err
	}
	if loader == nil {
		loader = cache.NewLoader(nil, nil)
	}
	return &Provider{client: client, loader: loader, endpoint: endpoint, ttl: cfg.CacheTTL}, nil
}

// Current returns the summary line, e.g. "Delhi: ☀️ +31°C". An empty
// location lets the service pick one from the caller's address.
func (p *Provider) Current(ctx context.Context) (string, error) {
	return p.loader.Fetch(ctx, "weather:"+p.endpoint, p.ttl, func(ctx context.Context) (string, error) {
		body, err := p.client.Get(ctx, providerName, p.endpoint)
		if err != nil {
			return "", err
		}
		line := strings.TrimSpace(string(body))
		if line == "" {
			return "", errors.New("weather service returned an empty report")
		}
		return line, nil
	})
}

func conditionsURL(cfg config.WeatherConfig) (string, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = "https://wttr.in"
	}
	endpoint, err := url.Parse(strings.TrimRight(base, "/") + "/" + url.PathEscape(strings.TrimSpace(cfg.Location)))
	if err != nil {
		return "", err
	}
	format := cfg.Format
	if format == "" {
		format = "3"
	}
	query := endpoint.Query()
	query.Set("format", format)
	endpoint.RawQuery = query.Encode()
	return endpoint.String(), nil
}
