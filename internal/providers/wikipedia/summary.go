// Package wikipedia fetches short article summaries from the Wikipedia REST API.
package wikipedia

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"ynot/internal/cache"
	"ynot/internal/config"
	"ynot/internal/providers/httpclient"
)

const providerName = "wikipedia"

// Provider implements ports.EncyclopediaProvider.
type Provider struct {
	client *httpclient.Client
	loader *cache.Loader
	base   string
	ttl    time.Duration
}

func New(cfg config.WikipediaConfig, client *httpclient.Client, loader *cache.Loader) *Provider {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = "https://en.wikipedia.org"
	}
	if loader == nil {
		loader = cache.NewLoader(nil, nil)
	}
	return &Provider{client: client, loader: loader, base: base, ttl: cfg.CacheTTL}
}

// Summary returns the page extract for topic. A missing page or a page
// without an extract gives "" and no error.
func (p *Provider) Summary(ctx context.Context, topic string) (string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", errors.New("topic is required")
	}

	return p.loader.Fetch(ctx, "wiki:"+strings.ToLower(topic), p.ttl, func(ctx context.Context) (string, error) {
		body, err := p.client.Get(ctx, providerName, p.summaryURL(topic))
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		if !gjson.ValidBytes(body) {
			return "", errors.New("wikipedia returned malformed JSON")
		}
		return strings.TrimSpace(gjson.GetBytes(body, "extract").String()), nil
	})
}

func (p *Provider) summaryURL(topic string) string {
	return p.base + "/api/rest_v1/page/summary/" + url.PathEscape(topic)
}
