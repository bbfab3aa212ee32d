// Package bootstrap assembles the runtime graph shared by the CLI and the
// desktop shell.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"ynot/internal/audio"
	"ynot/internal/cache"
	"ynot/internal/config"
	"ynot/internal/domain"
	"ynot/internal/intents"
	"ynot/internal/logging"
	"ynot/internal/metrics"
	"ynot/internal/ports"
	"ynot/internal/providers/deepgram"
	"ynot/internal/providers/httpclient"
	"ynot/internal/providers/news"
	"ynot/internal/providers/weather"
	"ynot/internal/providers/wikipedia"
	"ynot/internal/rules"
	"ynot/internal/server"
	"ynot/internal/stt"
	"ynot/internal/telemetry"
	"ynot/internal/transcript"
	"ynot/internal/tts"
	"ynot/internal/usecase"
)

// Options are the pieces that differ between front ends.
type Options struct {
	// Fs reads the config and rules files. Defaults to the OS filesystem.
	Fs         afero.Fs
	ConfigPath string
	Version    string

	Opener        ports.URLOpener
	Alerter       ports.Alerter
	StateListener ports.StateListener
	LogListeners  []transcript.Listener

	// Logger overrides the configured logger.
	Logger *zap.Logger
}

// Services is the assembled runtime graph.
type Services struct {
	Config     config.Config
	Logger     *zap.Logger
	Controller *usecase.RecognitionController
	Dispatcher *usecase.Dispatcher
	Intents    *intents.Table
	Log        *transcript.Log
	Speech     *tts.CommandSynthesizer
	Metrics    *metrics.Collector

	store     cache.Store
	telemetry *telemetry.Providers
	version   string
}

// Build wires all backend dependencies for the current runtime.
func Build(opts Options) (*Services, error) {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	cfg, err := config.Load(fs, opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger, err = logging.New(cfg.Log)
		if err != nil {
			return nil, err
		}
	}

	rewriter, err := rules.Load(fs, cfg.Rules.Path, cfg.Rules.IterationLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load rewrite rules: %w", err)
	}

	providers, err := telemetry.Init(cfg.Telemetry, opts.Version, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise telemetry: %w", err)
	}

	collector := metrics.NewCollector("ynot")
	store := cache.Open(cfg.Cache, logger)
	loader := cache.NewLoader(store, logger)
	client := httpclient.New(cfg.Providers, collector, logger)

	weatherProvider, err := weather.New(cfg.Providers.Weather, client, loader)
	if err != nil {
		_ = store.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
		return nil, fmt.Errorf("invalid weather provider config: %w", err)
	}

	history := transcript.NewLog(0)
	for _, listener := range opts.LogListeners {
		history.Subscribe(listener)
	}

	alerter := opts.Alerter
	if alerter == nil {
		alerter = tts.Notifier{}
	}
	speech := tts.NewCommandSynthesizer(cfg.Speech, alerter, logger)

	// exit needs the controller, which needs the dispatcher.
	var controller *usecase.RecognitionController
	table := intents.Default(intents.Deps{
		Opener:        opts.Opener,
		Weather:       weatherProvider,
		News:          news.New(cfg.Providers.News, client, loader),
		Encyclopedia:  wikipedia.New(cfg.Providers.Wikipedia, client, loader),
		Stopper:       ports.StopperFunc(func() { controller.Stop() }),
		HeadlineLimit: cfg.Providers.News.Limit,
		Logger:        logger,
	})

	dispatcher := usecase.NewDispatcher(table, speech, history,
		usecase.WithRewriter(rewriter),
		usecase.WithDispatchMetrics(collector),
		usecase.WithDispatchLogger(logger),
		usecase.WithQueueSize(cfg.Dispatch.QueueSize),
	)

	recorder := audio.NewRecorder(cfg.Audio.RecorderCommand, audio.WithLogger(logger))
	listen := deepgram.NewProvider(deepgram.Config{
		APIKey:        cfg.Deepgram.APIKey,
		APIBaseURL:    cfg.Deepgram.APIBaseURL,
		Model:         cfg.Deepgram.Model,
		Language:      cfg.Deepgram.Language,
		SmartFormat:   cfg.Deepgram.SmartFormat,
		EndpointingMS: cfg.Deepgram.EndpointingMS,
	})
	factory := stt.NewFactory(recorder, listen, sourceConfig(cfg), logger,
		recorder.Probe,
		func() error {
			if !listen.Configured() {
				return deepgram.ErrMissingAPIKey
			}
			return nil
		},
	)

	controllerOpts := []usecase.ControllerOption{
		usecase.WithRecognitionMetrics(collector),
		usecase.WithControllerLogger(logger),
	}
	if opts.StateListener != nil {
		controllerOpts = append(controllerOpts, usecase.WithStateListener(opts.StateListener))
	}
	controller = usecase.NewRecognitionController(factory, dispatcher, history, controllerOpts...)

	logger.Info("ynot assembled",
		zap.String("config", cfg.Path),
		zap.Int("rewrite_rules", rewriter.Len()),
		zap.Strings("intents", table.Names()),
	)

	return &Services{
		Config:     cfg,
		Logger:     logger,
		Controller: controller,
		Dispatcher: dispatcher,
		Intents:    table,
		Log:        history,
		Speech:     speech,
		Metrics:    collector,
		store:      store,
		telemetry:  providers,
		version:    opts.Version,
	}, nil
}

func sourceConfig(cfg config.Config) stt.Config {
	return stt.Config{
		Audio: ports.AudioConfig{
			SampleRate:  cfg.Audio.SampleRate,
			Channels:    cfg.Audio.Channels,
			InputFormat: cfg.Audio.InputFormat,
			InputDevice: cfg.Audio.InputDevice,
		},
		Streaming: ports.StreamingConfig{
			SampleRate:     cfg.Audio.SampleRate,
			Channels:       cfg.Audio.Channels,
			Encoding:       "linear16",
			InterimResults: cfg.Deepgram.InterimResults,
		},
		ChunkSize:      cfg.Session.ChunkSize,
		StreamingGrace: cfg.Session.StreamingGrace,
		StopTimeout:    cfg.Session.StopTimeout,
	}
}

// Submit dispatches typed text and returns the outcome.
func (s *Services) Submit(ctx context.Context, text string) domain.DispatchOutcome {
	return s.Dispatcher.Dispatch(ctx, usecase.NewTranscriptEvent(text, domain.SourceTyped))
}

// API returns the HTTP control API over these services.
func (s *Services) API() server.API {
	return server.API{
		Recognition: s.Controller,
		Dispatcher:  s.Dispatcher,
		History:     s.Log,
		Metrics:     s.Metrics,
		Version:     s.version,
		Logger:      s.Logger,
	}
}

// Close stops listening and releases the cache and telemetry exporters.
func (s *Services) Close(ctx context.Context) error {
	s.Controller.Stop()
	var errs []error
	if err := s.Speech.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close cache: %w", err))
	}
	if err := s.telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	_ = s.Logger.Sync()
	return errors.Join(errs...)
}
