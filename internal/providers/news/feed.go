// Package news reads headline titles from an RSS or Atom feed, optionally
// through a CORS-style "raw" proxy that takes the feed URL as a suffix.
package news

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"ynot/internal/cache"
	"ynot/internal/config"
	"ynot/internal/providers/httpclient"
)

const providerName = "news"

// ErrNoHeadlines means the feed parsed but had no titled items.
var ErrNoHeadlines = errors.New("feed has no headlines")

// Provider implements ports.NewsProvider.
type Provider struct {
	client   *httpclient.Client
	loader   *cache.Loader
	parser   *gofeed.Parser
	endpoint string
	ttl      time.Duration
}

func New(cfg config.NewsConfig, client *httpclient.Client, loader *cache.Loader) *Provider {
	if loader == nil {
		loader = cache.NewLoader(nil, nil)
	}
	return &Provider{
		client:   client,
		loader:   loader,
		parser:   gofeed.NewParser(),
		endpoint: feedEndpoint(cfg.FeedURL, cfg.ProxyURL),
		ttl:      cfg.CacheTTL,
	}
}

// Headlines returns at most limit titles in feed order.
func (p *Provider) Headlines(ctx context.Context, limit int) ([]string, error) {
	titles, err := cache.FetchJSON(ctx, p.loader, "news:"+p.endpoint, p.ttl, p.load)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(titles) > limit {
		titles = titles[:limit]
	}
	return titles, nil
}

func (p *Provider) load(ctx context.Context) ([]string, error) {
	body, err := p.client.Get(ctx, providerName, p.endpoint)
	if err != nil {
		return nil, err
	}

	feed, err := p.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse news feed: %w", err)
	}

	titles := make([]string, 0, len(feed.Items))
	for _, item := range feed.Items {
		if title := strings.TrimSpace(item.Title); title != "" {
			titles = append(titles, title)
		}
	}
	if len(titles) == 0 {
		return nil, ErrNoHeadlines
	}
	return titles, nil
}

func feedEndpoint(feedURL, proxyURL string) string {
	feedURL = strings.TrimSpace(feedURL)
	proxyURL = strings.TrimSpace(proxyURL)
	if proxyURL == "" {
		return feedURL
	}
	return proxyURL + url.QueryEscape(feedURL)
}
