package usecase

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"ynot/internal/domain"
	"ynot/internal/ports"
)

// ErrRecognitionUnsupported is returned by Start once the device has been
// found unable to recognize speech. The condition is terminal.
var ErrRecognitionUnsupported = errors.New("speech recognition not supported on this device")

const (
	noticeUnsupported   = "Speech recognition not supported on this device."
	messageListening    = "Listening..."
	messageStopped      = "Stopped listening"
	messageErrorPrefix  = "Recognition error: "
	messageStartPending = "Starting..."
)

// ControllerOption customizes a RecognitionController.
type ControllerOption func(*RecognitionController)

// WithStateListener reports every state change to listener.
func WithStateListener(listener ports.StateListener) ControllerOption {
	return func(c *RecognitionController) { c.listener = listener }
}

// WithRecognitionMetrics records state transitions.
func WithRecognitionMetrics(metrics ports.MetricsRecorder) ControllerOption {
	return func(c *RecognitionController) { c.metrics = metrics }
}

// WithControllerLogger sets the logger.
func WithControllerLogger(logger *zap.Logger) ControllerOption {
	return func(c *RecognitionController) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// RecognitionController owns start and stop of the speech source and turns
// its callbacks into log lines, state changes and queued transcripts.
type RecognitionController struct {
	factory  ports.SourceFactory
	consumer ports.TranscriptConsumer
	log      ports.TranscriptLog
	listener ports.StateListener
	metrics  ports.MetricsRecorder
	logger   *zap.Logger

	mu            sync.Mutex
	source        ports.SpeechSource
	state         domain.RecognitionState
	message       string
	pending       bool
	stopRequested bool
	unsupported   bool
}

func NewRecognitionController(
	factory ports.SourceFactory,
	consumer ports.TranscriptConsumer,
	log ports.TranscriptLog,
	opts ...ControllerOption,
) *RecognitionController {
	c := &RecognitionController{
		factory:  factory,
		consumer: consumer,
		log:      log,
		logger:   zap.NewNop(),
		state:    domain.RecognitionIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "recognition"))
	return c
}

// Start begins listening. It is a no-op while listening or while a start is
// pending, and returns once the source accepted the request; OnStarted
// follows asynchronously.
func (c *RecognitionController) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.unsupported {
		c.mu.Unlock()
		return ErrRecognitionUnsupported
	}
	if c.pending || c.state == domain.RecognitionListening {
		c.mu.Unlock()
		return nil
	}
	if c.source == nil {
		source, err := c.factory.NewSource(c)
		if err != nil {
			c.unsupported = true
			c.message = noticeUnsupported
			status := c.statusLocked()
			c.mu.Unlock()

			c.logger.Warn("speech recognition unavailable", zap.Error(err))
			c.appendLog(noticeUnsupported)
			c.publish(status)
			return ErrRecognitionUnsupported
		}
		c.source = source
	}
	source := c.source
	c.pending = true
	c.stopRequested = false
	c.message = messageStartPending
	c.mu.Unlock()

	// The source outlives the caller's request; Stop ends it.
	if err := source.Start(context.WithoutCancel(ctx)); err != nil {
		c.logger.Warn("failed to start speech source", zap.Error(err))
		c.mu.Lock()
		c.pending = false
		c.mu.Unlock()
		c.OnError(domain.DeviceErrorStart)
		return err
	}

	c.mu.Lock()
	stop := c.stopRequested
	c.stopRequested = false
	c.mu.Unlock()
	if stop {
		c.stopSource(source)
	}
	return nil
}

// Stop ends listening. It is a no-op unless listening or starting.
func (c *RecognitionController) Stop() {
	c.mu.Lock()
	if c.source == nil || (!c.pending && c.state != domain.RecognitionListening) {
		c.mu.Unlock()
		return
	}
	source := c.source
	if c.pending && c.state != domain.RecognitionListening {
		c.stopRequested = true
	}
	c.mu.Unlock()

	c.stopSource(source)
}

// Toggle stops when listening or starting, and starts otherwise.
func (c *RecognitionController) Toggle(ctx context.Context) domain.Status {
	if c.Status().Listening {
		c.Stop()
		return c.Status()
	}
	if err := c.Start(ctx); err != nil && !errors.Is(err, ErrRecognitionUnsupported) {
		c.logger.Debug("toggle could not start recognition", zap.Error(err))
	}
	return c.Status()
}

// Status returns the current state and the last lifecycle message.
func (c *RecognitionController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *RecognitionController) OnStarted() {
	c.transition(func() {
		c.pending = false
		c.state = domain.RecognitionListening
		c.message = messageListening
	}, messageListening)
}

func (c *RecognitionController) OnEnded() {
	c.transition(func() {
		c.pending = false
		if c.state != domain.RecognitionError {
			c.state = domain.RecognitionIdle
			c.message = messageStopped
		}
	}, messageStopped)
}

func (c *RecognitionController) OnError(code domain.DeviceErrorCode) {
	line := messageErrorPrefix + string(code)
	c.transition(func() {
		c.pending = false
		c.state = domain.RecognitionError
		c.message = line
	}, line)
}

// OnTranscript queues non-empty text for dispatch without blocking.
func (c *RecognitionController) OnTranscript(text string) {
	if text == "" || c.consumer == nil {
		return
	}
	c.consumer.Submit(NewTranscriptEvent(text, domain.SourceVoice))
}

func (c *RecognitionController) transition(apply func(), line string) {
	c.mu.Lock()
	apply()
	status := c.statusLocked()
	c.mu.Unlock()

	c.logger.Info("recognition state changed", zap.String("state", string(status.State)))
	c.appendLog(line)
	c.publish(status)
}

func (c *RecognitionController) stopSource(source ports.SpeechSource) {
	if err := source.Stop(); err != nil {
		c.logger.Debug("speech source stop failed", zap.Error(err))
	}
}

func (c *RecognitionController) statusLocked() domain.Status {
	return domain.Status{
		State:       c.state,
		Listening:   c.pending || c.state == domain.RecognitionListening,
		Unsupported: c.unsupported,
		Message:     c.message,
	}
}

func (c *RecognitionController) appendLog(line string) {
	if c.log != nil {
		c.log.Append(domain.TagAssistant, line)
	}
}

func (c *RecognitionController) publish(status domain.Status) {
	if c.metrics != nil {
		c.metrics.ObserveRecognition(status.State)
	}
	if c.listener != nil {
		c.listener.RecognitionStateChanged(status)
	}
}
