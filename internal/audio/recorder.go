// Package audio captures raw microphone PCM by running an external recorder
// (ffmpeg by default) and reading its stdout.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"ynot/internal/ports"
)

// ErrRecorderMissing is returned by Probe when the recorder binary cannot be
// found on PATH.
var ErrRecorderMissing = errors.New("audio recorder not found")

const (
	defaultStartupGrace = 250 * time.Millisecond
	defaultKillAfter    = 1200 * time.Millisecond
)

// Recorder starts capture sessions backed by a recorder process.
type Recorder struct {
	command      string
	startupGrace time.Duration
	killAfter    time.Duration
	logger       *zap.Logger
}

// Option customizes a Recorder.
type Option func(*Recorder)

// WithLogger sets the logger used for recorder diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithStartupGrace sets how long Start waits for the process to survive.
func WithStartupGrace(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.startupGrace = d
		}
	}
}

func NewRecorder(command string, opts ...Option) *Recorder {
	if strings.TrimSpace(command) == "" {
		command = "ffmpeg"
	}
	r := &Recorder{
		command:      command,
		startupGrace: defaultStartupGrace,
		killAfter:    defaultKillAfter,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Probe reports whether the recorder binary is runnable on this machine.
func (r *Recorder) Probe() error {
	if _, err := exec.LookPath(r.command); err != nil {
		return fmt.Errorf("%w: %s", ErrRecorderMissing, r.command)
	}
	return nil
}

func (r *Recorder) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	cfg = withCaptureDefaults(cfg)

	cmd := exec.CommandContext(ctx, r.command, captureArgs(cfg)...)
	stderr := &lockedBuffer{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open recorder stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start recorder %q: %w", r.command, err)
	}

	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
		close(exited)
	}()

	select {
	case err := <-exited:
		detail := strings.TrimSpace(stderr.String())
		if err != nil {
			return nil, fmt.Errorf("recorder exited before capture started: %w: %s", err, detail)
		}
		return nil, fmt.Errorf("recorder exited before capture started: %s", detail)
	case <-time.After(r.startupGrace):
	}

	r.logger.Debug("microphone capture started",
		zap.String("recorder", r.command),
		zap.String("input_format", cfg.InputFormat),
		zap.String("input_device", cfg.InputDevice),
		zap.Int("sample_rate", cfg.SampleRate),
	)

	return &captureSession{
		stdout:    stdout,
		stderr:    stderr,
		process:   cmd.Process,
		exited:    exited,
		killAfter: r.killAfter,
	}, nil
}

func withCaptureDefaults(cfg ports.AudioConfig) ports.AudioConfig {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	return cfg
}

func captureArgs(cfg ports.AudioConfig) []string {
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}
}

type captureSession struct {
	stdout    io.ReadCloser
	stderr    *lockedBuffer
	process   *os.Process
	exited    <-chan error
	killAfter time.Duration

	stopOnce sync.Once
	stopErr  error
}

func (s *captureSession) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *captureSession) Close() error {
	return s.Stop()
}

// Stop interrupts the recorder, escalating to kill if it lingers. An exit
// status caused by the signal is not an error.
func (s *captureSession) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		var waitErr error
		select {
		case waitErr = <-s.exited:
		case <-time.After(s.killAfter):
			if s.process != nil {
				_ = s.process.Kill()
			}
			waitErr = <-s.exited
		}
		s.stopErr = ignoreExitStatus(waitErr)

		if err := s.stdout.Close(); err != nil && !errors.Is(err, os.ErrClosed) && s.stopErr == nil {
			s.stopErr = err
		}
		if s.stopErr != nil {
			if detail := strings.TrimSpace(s.stderr.String()); detail != "" {
				s.stopErr = fmt.Errorf("%w: %s", s.stopErr, detail)
			}
		}
	})
	return s.stopErr
}

func ignoreExitStatus(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

// lockedBuffer lets the process write stderr while Stop reads it.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
