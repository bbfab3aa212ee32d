// Package stt implements the continuous speech source: microphone capture
// streamed to a transcription provider, with finished utterances handed to
// an observer.
package stt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"ynot/internal/domain"
	"ynot/internal/ports"
)

// ErrUnsupported means this device cannot do speech recognition at all.
var ErrUnsupported = errors.New("speech recognition not supported on this device")

// ErrAlreadyRunning is returned by Start while a previous run is live.
var ErrAlreadyRunning = errors.New("speech source already running")

// Config controls capture and streaming for a source.
type Config struct {
	Audio          ports.AudioConfig
	Streaming      ports.StreamingConfig
	ChunkSize      int
	StreamingGrace time.Duration
	StopTimeout    time.Duration
}

// StreamingSource is a ports.SpeechSource backed by an audio capture and a
// streaming transcription provider. Observer callbacks are made from the
// source's own goroutine, never from inside Start or Stop.
type StreamingSource struct {
	capture  ports.AudioCapture
	provider ports.TranscriptionProvider
	observer ports.SourceObserver
	cfg      Config
	logger   *zap.Logger

	mu      sync.Mutex
	current *run
}

func NewStreamingSource(
	capture ports.AudioCapture,
	provider ports.TranscriptionProvider,
	observer ports.SourceObserver,
	cfg Config,
	logger *zap.Logger,
) *StreamingSource {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 4 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamingSource{
		capture:  capture,
		provider: provider,
		observer: observer,
		cfg:      cfg,
		logger:   logger,
	}
}

type run struct {
	ctx    context.Context
	cancel context.CancelFunc
	audio  ports.AudioSession
	stream ports.StreamingSession

	closing atomic.Bool

	failMu  sync.Mutex
	code    domain.DeviceErrorCode
	failure error

	pumpDone chan struct{}
	done     chan struct{}
}

// fail records the first device failure of a run.
func (r *run) fail(code domain.DeviceErrorCode, err error) {
	if r.closing.Load() {
		return
	}
	r.failMu.Lock()
	defer r.failMu.Unlock()
	if r.code == "" {
		r.code = code
		r.failure = err
	}
}

func (r *run) failed() (domain.DeviceErrorCode, error) {
	r.failMu.Lock()
	defer r.failMu.Unlock()
	return r.code, r.failure
}

// Start opens the transcription stream and the microphone. Setup failures
// are returned directly; later failures arrive through OnError.
func (s *StreamingSource) Start(ctx context.Context) error {
	s.mu.Lock()
	busy := s.current != nil
	s.mu.Unlock()
	if busy {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	stream, err := s.provider.StartStreaming(runCtx, s.cfg.Streaming)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to open transcription stream: %w", err)
	}

	audio, err := s.capture.Start(runCtx, s.cfg.Audio)
	if err != nil {
		_ = stream.Close()
		cancel()
		return fmt.Errorf("failed to open microphone: %w", err)
	}

	r := &run{
		ctx:      runCtx,
		cancel:   cancel,
		audio:    audio,
		stream:   stream,
		pumpDone: make(chan struct{}),
		done:     make(chan struct{}),
	}

	s.mu.Lock()
	s.current = r
	s.mu.Unlock()

	go pumpAudio(r, s.cfg.ChunkSize)
	go s.watch(r)
	return nil
}

// watch forwards utterances until the stream ends, then reports how the run
// finished: OnError first when it failed, OnEnded always.
func (s *StreamingSource) watch(r *run) {
	defer close(r.done)

	s.observer.OnStarted()

	var pending utterance
	for segment := range r.stream.Segments() {
		if text, ok := pending.add(segment); ok {
			s.observer.OnTranscript(text)
		}
	}
	if text, ok := pending.flush(); ok {
		s.observer.OnTranscript(text)
	}

	if streamErr := r.stream.Wait(); streamErr != nil {
		r.fail(domain.DeviceErrorNetwork, streamErr)
	}
	stopped := r.closing.Swap(true) || r.ctx.Err() != nil
	_ = r.audio.Stop()
	<-r.pumpDone
	r.cancel()

	s.mu.Lock()
	if s.current == r {
		s.current = nil
	}
	s.mu.Unlock()

	if code, err := r.failed(); code != "" && !stopped {
		s.logger.Warn("speech source failed", zap.String("code", string(code)), zap.Error(err))
		s.observer.OnError(code)
	}
	s.observer.OnEnded()
}

// Stop ends the current run, letting the provider flush any trailing speech.
// It returns once OnEnded has been delivered.
func (s *StreamingSource) Stop() error {
	s.mu.Lock()
	r := s.current
	s.mu.Unlock()
	if r == nil {
		return nil
	}

	r.closing.Store(true)
	audioErr := r.audio.Stop()

	if s.cfg.StreamingGrace > 0 {
		timer := time.NewTimer(s.cfg.StreamingGrace)
		select {
		case <-timer.C:
		case <-r.ctx.Done():
			timer.Stop()
		}
	}

	_ = r.stream.CloseSend()
	streamErr := waitForStream(r.stream, s.cfg.StopTimeout)
	<-r.done

	if audioErr != nil {
		return fmt.Errorf("failed to stop microphone: %w", audioErr)
	}
	return streamErr
}
