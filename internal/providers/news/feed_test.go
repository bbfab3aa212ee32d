package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ynot/internal/cache"
	"ynot/internal/config"
	"ynot/internal/providers/httpclient"
)

const worldFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>World</title>
    <item><title>Monsoon arrives early in Kerala</title></item>
    <item><title>  </title></item>
    <item><title>Markets rally on rate cut</title></item>
    <item><title>Chess champion defends title</title></item>
    <item><title>New metro line opens</title></item>
  </channel>
</rss>`

func TestHeadlinesThroughProxy(t *testing.T) {
	t.Parallel()

	requested := make(chan string, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested <- r.URL.Query().Get("url")
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(worldFeed))
	}))
	defer server.Close()

	provider := New(config.NewsConfig{
		FeedURL:  "http://feeds.example.com/world.xml",
		ProxyURL: server.URL + "/raw?url=",
		CacheTTL: time.Minute,
	}, httpclient.New(config.ProvidersConfig{}, nil, nil), cache.NewLoader(cache.NewMemoryStore(), nil))

	titles, err := provider.Headlines(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Monsoon arrives early in Kerala",
		"Markets rally on rate cut",
		"Chess champion defends title",
	}, titles)
	assert.Equal(t, "http://feeds.example.com/world.xml", <-requested)

	all, err := provider.Headlines(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 4, "cached list is not truncated by an earlier limit")
}

func TestHeadlinesDirectFeedFewerThanLimit(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<rss version="2.0"><channel><item><title>Only one</title></item></channel></rss>`))
	}))
	defer server.Close()

	provider := New(config.NewsConfig{FeedURL: server.URL}, httpclient.New(config.ProvidersConfig{}, nil, nil), nil)
	titles, err := provider.Headlines(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Only one"}, titles)
}

func TestHeadlinesFailures(t *testing.T) {
	t.Parallel()

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<rss version="2.0"><channel><title>x</title></channel></rss>`))
	}))
	defer empty.Close()
	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not a feed`))
	}))
	defer garbage.Close()

	client := httpclient.New(config.ProvidersConfig{}, nil, nil)

	_, err := New(config.NewsConfig{FeedURL: empty.URL}, client, nil).Headlines(context.Background(), 3)
	assert.ErrorIs(t, err, ErrNoHeadlines)

	_, err = New(config.NewsConfig{FeedURL: garbage.URL}, client, nil).Headlines(context.Background(), 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse news feed")
}

func TestFeedEndpoint(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "http://x/rss.xml", feedEndpoint(" http://x/rss.xml ", ""))
	assert.Equal(t, "https://proxy/raw?url=http%3A%2F%2Fx%2Frss.xml", feedEndpoint("http://x/rss.xml", "https://proxy/raw?url="))
}
