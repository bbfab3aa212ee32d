package ports

import (
	"context"
	"io"

	"ynot/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// StreamingConfig describes provider-agnostic streaming settings.
type StreamingConfig struct {
	SampleRate     int
	Channels       int
	Encoding       string
	InterimResults bool
}

// StreamingSession is an active provider websocket session.
type StreamingSession interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Segments() <-chan domain.SpeechSegment
	Wait() error
	Close() error
}

// TranscriptionProvider starts streaming transcription sessions.
type TranscriptionProvider interface {
	StartStreaming(ctx context.Context, cfg StreamingConfig) (StreamingSession, error)
}

// SourceObserver receives lifecycle and transcript callbacks from a speech source.
type SourceObserver interface {
	OnStarted()
	OnEnded()
	OnError(code domain.DeviceErrorCode)
	OnTranscript(text string)
}

// SpeechSource is a continuous speech-to-text device.
type SpeechSource interface {
	Start(ctx context.Context) error
	Stop() error
}

// SourceFactory lazily constructs the speech source.
type SourceFactory interface {
	NewSource(observer SourceObserver) (SpeechSource, error)
}

// TranscriptConsumer accepts transcripts without blocking the caller.
type TranscriptConsumer interface {
	Submit(event domain.TranscriptEvent)
}

// TranscriptLog is the append-only user-visible log.
type TranscriptLog interface {
	Append(tag domain.LogTag, text string)
}

// StateListener is told about every recognition state change.
type StateListener interface {
	RecognitionStateChanged(status domain.Status)
}

// Synthesizer speaks text, interrupting whatever it was saying.
type Synthesizer interface {
	Speak(ctx context.Context, text string) error
}

// Alerter shows a visible message when speech output is unavailable.
type Alerter interface {
	Alert(title string, message string) error
}

// URLOpener opens a link in the user's browser.
type URLOpener interface {
	Open(url string) error
}

// WeatherProvider returns a one-line weather summary for the default location.
type WeatherProvider interface {
	Current(ctx context.Context) (string, error)
}

// NewsProvider returns up to limit headline titles.
type NewsProvider interface {
	Headlines(ctx context.Context, limit int) ([]string, error)
}

// EncyclopediaProvider returns the summary extract for a topic. An empty
// extract with a nil error means the topic has no summary.
type EncyclopediaProvider interface {
	Summary(ctx context.Context, topic string) (string, error)
}

// RecognitionStopper stops listening.
type RecognitionStopper interface {
	Stop()
}

// StopperFunc adapts a function to RecognitionStopper.
type StopperFunc func()

func (f StopperFunc) Stop() { f() }

// MetricsRecorder receives operational counters. Implementations must be safe
// for concurrent use.
type MetricsRecorder interface {
	ObserveDispatch(intent string, status domain.OutcomeStatus, seconds float64)
	ObserveRecognition(state domain.RecognitionState)
	ObserveProvider(provider string, ok bool)
	ObserveQueueDrop()
}

// TextRewriter rewrites normalized transcript text before intent matching.
type TextRewriter interface {
	Rewrite(text string) string
}
