package intents

import (
	"context"
	"math/rand/v2"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"ynot/internal/domain"
	"ynot/internal/ports"
)

// Deps are the collaborators of the built-in handlers.
type Deps struct {
	Opener       ports.URLOpener
	Weather      ports.WeatherProvider
	News         ports.NewsProvider
	Encyclopedia ports.EncyclopediaProvider
	Stopper      ports.RecognitionStopper

	// Clock defaults to time.Now.
	Clock func() time.Time
	// Random returns an integer in [0, n). Defaults to math/rand/v2.
	Random func(n int) int

	HeadlineLimit int
	Logger        *zap.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Random == nil {
		d.Random = rand.IntN
	}
	if d.HeadlineLimit <= 0 {
		d.HeadlineLimit = 3
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return d
}

// Default returns the built-in command table in its fixed order.
func Default(deps Deps) *Table {
	deps = deps.withDefaults()
	logger := deps.Logger.With(zap.String("component", "intents"))

	return MustTable(
		Descriptor{
			Name:     "youtube",
			Keywords: []string{"youtube"},
			Extract:  WithDefault(StripFirst("youtube"), defaultYouTubeQuery),
			Handler:  youTubeSearch{opener: deps.Opener, logger: logger},
		},
		Descriptor{
			Name:     "weather",
			Keywords: []string{"weather", "mausam"},
			Ack:      func(string) string { return phraseWeatherAck },
			Handler:  weatherReport{provider: deps.Weather, logger: logger},
		},
		Descriptor{
			Name:     "time",
			Keywords: []string{"time", "samay"},
			Handler:  clock{now: deps.Clock},
		},
		Descriptor{
			Name:     "news",
			Keywords: []string{"news", "khabar"},
			Ack:      func(string) string { return phraseNewsAck },
			Handler:  headlines{provider: deps.News, limit: deps.HeadlineLimit, logger: logger},
		},
		Descriptor{
			Name:     "joke",
			Keywords: []string{"joke", "mazak"},
			Handler:  jokes{pick: deps.Random, set: Jokes},
		},
		Descriptor{
			Name:     "wikipedia",
			Keywords: []string{"wikipedia", "jankari"},
			Extract:  StripFirst("wikipedia", "jankari"),
			Ack: func(topic string) string {
				if topic == "" {
					return ""
				}
				return phraseWikiAck + topic
			},
			Handler: encyclopedia{provider: deps.Encyclopedia, logger: logger},
		},
		Descriptor{
			Name:     "exit",
			Keywords: []string{"band karo", "exit"},
			Handler:  exit{stopper: deps.Stopper},
		},
	)
}

func ok(text string) Reply {
	return Reply{Utterance: text, Status: domain.OutcomeOK}
}

func degraded(text string) Reply {
	return Reply{Utterance: text, Status: domain.OutcomeDegraded}
}

type youTubeSearch struct {
	opener ports.URLOpener
	logger *zap.Logger
}

func (h youTubeSearch) Handle(_ context.Context, query string) Reply {
	reply := ok(phraseYouTubeSearch + query)
	if h.opener == nil {
		return reply
	}
	if err := h.opener.Open(youTubeSearchBaseURL + url.QueryEscape(query)); err != nil {
		h.logger.Warn("failed to open youtube search", zap.String("query", query), zap.Error(err))
		reply.Status = domain.OutcomeDegraded
	}
	return reply
}

type weatherReport struct {
	provider ports.WeatherProvider
	logger   *zap.Logger
}

func (h weatherReport) Handle(ctx context.Context, _ string) Reply {
	if h.provider == nil {
		return degraded(phraseWeatherFailed)
	}
	line, err := h.provider.Current(ctx)
	if err != nil || strings.TrimSpace(line) == "" {
		h.logger.Warn("weather lookup failed", zap.Error(err))
		return degraded(phraseWeatherFailed)
	}
	return ok(strings.TrimSpace(line))
}

type clock struct {
	now func() time.Time
}

func (h clock) Handle(context.Context, string) Reply {
	return ok(phraseTimePrefix + h.now().Format(clockLayout))
}

type headlines struct {
	provider ports.NewsProvider
	limit    int
	logger   *zap.Logger
}

func (h headlines) Handle(ctx context.Context, _ string) Reply {
	if h.provider == nil {
		return degraded(phraseNewsFailed)
	}
	titles, err := h.provider.Headlines(ctx, h.limit)
	if err != nil || len(titles) == 0 {
		h.logger.Warn("news lookup failed", zap.Int("headlines", len(titles)), zap.Error(err))
		return degraded(phraseNewsFailed)
	}
	if len(titles) > h.limit {
		titles = titles[:h.limit]
	}
	return ok(strings.Join(titles, ". "))
}

type jokes struct {
	pick func(n int) int
	set  []string
}

func (h jokes) Handle(context.Context, string) Reply {
	index := h.pick(len(h.set))
	if index < 0 || index >= len(h.set) {
		index = 0
	}
	return ok(h.set[index])
}

type encyclopedia struct {
	provider ports.EncyclopediaProvider
	logger   *zap.Logger
}

func (h encyclopedia) Handle(ctx context.Context, topic string) Reply {
	if topic == "" {
		return Reply{Utterance: phraseWikiAsk, Status: domain.OutcomeClarify}
	}
	if h.provider == nil {
		return degraded(phraseWikiFailed)
	}
	extract, err := h.provider.Summary(ctx, topic)
	if err != nil {
		h.logger.Warn("wikipedia lookup failed", zap.String("topic", topic), zap.Error(err))
		return degraded(phraseWikiFailed)
	}
	if strings.TrimSpace(extract) == "" {
		return ok(phraseWikiNoSummary)
	}
	return ok(strings.TrimSpace(extract))
}

type exit struct {
	stopper ports.RecognitionStopper
}

func (h exit) Handle(context.Context, string) Reply {
	if h.stopper != nil {
		h.stopper.Stop()
	}
	return ok(phraseExit)
}
