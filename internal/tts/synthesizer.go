// Package tts speaks replies through an external speech command, falling
// back to a visible alert where no speech engine is installed.
package tts

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"

	"ynot/internal/config"
	"ynot/internal/ports"
)

// ErrNoSpeechEngine is returned when neither the speech command nor an
// alert fallback is available.
var ErrNoSpeechEngine = errors.New("no speech engine available")

// CommandSynthesizer runs one speech process at a time. A new utterance
// kills the one in progress.
type CommandSynthesizer struct {
	command  string
	args     []string
	title    string
	fallback ports.Alerter
	logger   *zap.Logger

	mu      sync.Mutex
	current *utterance
}

type utterance struct {
	cmd  *exec.Cmd
	done chan struct{}
}

func NewCommandSynthesizer(cfg config.SpeechConfig, fallback ports.Alerter, logger *zap.Logger) *CommandSynthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	command := strings.TrimSpace(cfg.Command)
	if command == "" {
		command = "espeak-ng"
	}
	args := cfg.Args
	if args == nil {
		args = []string{"-v", "hi"}
	}
	title := cfg.AlertTitle
	if title == "" {
		title = "Ynot AI"
	}
	return &CommandSynthesizer{
		command:  command,
		args:     append([]string(nil), args...),
		title:    title,
		fallback: fallback,
		logger:   logger.With(zap.String("component", "tts")),
	}
}

// Speak starts saying text and returns without waiting for it to finish.
func (s *CommandSynthesizer) Speak(_ context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()

	path, err := exec.LookPath(s.command)
	if err != nil {
		return s.alert(text, fmt.Errorf("speech command %q not found: %w", s.command, err))
	}

	// Speech outlives the request that asked for it; only the next
	// utterance or Close interrupts it.
	cmd := exec.Command(path, append(append([]string(nil), s.args...), text)...)
	if err := cmd.Start(); err != nil {
		return s.alert(text, fmt.Errorf("failed to start speech command: %w", err))
	}

	u := &utterance{cmd: cmd, done: make(chan struct{})}
	s.current = u
	go func() {
		defer close(u.done)
		if err := cmd.Wait(); err != nil {
			s.logger.Debug("speech command ended", zap.Error(err))
		}
	}()
	return nil
}

// Wait blocks until the current utterance finishes or ctx is done.
func (s *CommandSynthesizer) Wait(ctx context.Context) error {
	s.mu.Lock()
	u := s.current
	s.mu.Unlock()
	if u == nil {
		return nil
	}
	select {
	case <-u.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close silences any utterance in progress.
func (s *CommandSynthesizer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
	return nil
}

func (s *CommandSynthesizer) cancelLocked() {
	u := s.current
	if u == nil {
		return
	}
	s.current = nil
	select {
	case <-u.done:
		return
	default:
	}
	if u.cmd.Process != nil {
		_ = u.cmd.Process.Kill()
	}
	<-u.done
}

func (s *CommandSynthesizer) alert(text string, cause error) error {
	if s.fallback == nil {
		return fmt.Errorf("%w: %w", ErrNoSpeechEngine, cause)
	}
	s.logger.Debug("speech unavailable, alerting instead", zap.Error(cause))
	if err := s.fallback.Alert(s.title, text); err != nil {
		return fmt.Errorf("%w: %w", ErrNoSpeechEngine, errors.Join(cause, err))
	}
	return nil
}

// Notifier shows alerts as desktop notifications.
type Notifier struct{}

func (Notifier) Alert(title string, message string) error {
	if err := beeep.Notify(title, message, ""); err != nil {
		return fmt.Errorf("failed to show notification: %w", err)
	}
	return nil
}
