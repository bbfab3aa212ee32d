package stt

import (
	"fmt"

	"go.uber.org/zap"

	"ynot/internal/ports"
)

// Check reports why speech recognition cannot work here, or nil.
type Check func() error

// Factory builds streaming sources once every availability check passes.
type Factory struct {
	capture  ports.AudioCapture
	provider ports.TranscriptionProvider
	cfg      Config
	logger   *zap.Logger
	checks   []Check
}

func NewFactory(
	capture ports.AudioCapture,
	provider ports.TranscriptionProvider,
	cfg Config,
	logger *zap.Logger,
	checks ...Check,
) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{
		capture:  capture,
		provider: provider,
		cfg:      cfg,
		logger:   logger,
		checks:   checks,
	}
}

// NewSource returns ErrUnsupported (wrapped with the failing check) when the
// device cannot recognize speech.
func (f *Factory) NewSource(observer ports.SourceObserver) (ports.SpeechSource, error) {
	for _, check := range f.checks {
		if err := check(); err != nil {
			f.logger.Info("speech recognition unavailable", zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
		}
	}
	return NewStreamingSource(f.capture, f.provider, observer, f.cfg, f.logger), nil
}
