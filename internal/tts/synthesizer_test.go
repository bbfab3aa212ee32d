package tts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ynot/internal/config"
)

type fakeAlerter struct {
	mu     sync.Mutex
	alerts []string
	err    error
}

func (f *fakeAlerter) Alert(title string, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, title+": "+message)
	return f.err
}

// speaker writes a script that appends its last argument to a file, then
// sleeps for a while so tests can interrupt it.
func speaker(t *testing.T, pause string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	out := filepath.Join(dir, "spoken.txt")
	script := filepath.Join(dir, "speak.sh")
	body := "#!/usr/bin/env bash\nfor last; do :; done\necho \"$last\" >> " + out + "\nsleep " + pause + "\n"
	require.NoError(t, os.WriteFile(script, []byte(body), 0o755))
	return script, out
}

func readSpoken(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Fields(strings.TrimSpace(string(data)))
}

func TestSpeakRunsCommandWithText(t *testing.T) {
	t.Parallel()

	script, out := speaker(t, "0")
	synth := NewCommandSynthesizer(config.SpeechConfig{Command: script, Args: []string{"-v", "hi"}}, nil, nil)

	require.NoError(t, synth.Speak(context.Background(), "  namaste  "))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, synth.Wait(ctx))

	assert.Equal(t, []string{"namaste"}, readSpoken(t, out))
}

func TestSpeakInterruptsCurrentUtterance(t *testing.T) {
	t.Parallel()

	script, out := speaker(t, "30")
	synth := NewCommandSynthesizer(config.SpeechConfig{Command: script}, nil, nil)
	defer synth.Close()

	require.NoError(t, synth.Speak(context.Background(), "first"))
	require.Eventually(t, func() bool {
		data, _ := os.ReadFile(out)
		return strings.Contains(string(data), "first")
	}, 5*time.Second, 10*time.Millisecond)

	started := time.Now()
	require.NoError(t, synth.Speak(context.Background(), "second"))
	assert.Less(t, time.Since(started), 10*time.Second, "the first utterance was not interrupted")

	require.Eventually(t, func() bool {
		return len(readSpoken(t, out)) == 2
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"first", "second"}, readSpoken(t, out))

	require.NoError(t, synth.Close())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, synth.Wait(ctx), "nothing left to wait for after Close")
}

func TestSpeakIgnoresBlankText(t *testing.T) {
	t.Parallel()

	alerter := &fakeAlerter{}
	synth := NewCommandSynthesizer(config.SpeechConfig{Command: "definitely-not-a-tts-binary"}, alerter, nil)
	require.NoError(t, synth.Speak(context.Background(), "   "))
	assert.Empty(t, alerter.alerts)
}

func TestSpeakFallsBackToAlert(t *testing.T) {
	t.Parallel()

	alerter := &fakeAlerter{}
	synth := NewCommandSynthesizer(config.SpeechConfig{Command: "definitely-not-a-tts-binary"}, alerter, nil)

	require.NoError(t, synth.Speak(context.Background(), "Abhi ka samay hai 3:04:05 PM"))
	assert.Equal(t, []string{"Ynot AI: Abhi ka samay hai 3:04:05 PM"}, alerter.alerts)
}

func TestSpeakWithoutAnyEngine(t *testing.T) {
	t.Parallel()

	synth := NewCommandSynthesizer(config.SpeechConfig{Command: "definitely-not-a-tts-binary"}, nil, nil)
	err := synth.Speak(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNoSpeechEngine)

	synth = NewCommandSynthesizer(config.SpeechConfig{Command: "definitely-not-a-tts-binary"}, &fakeAlerter{err: errors.New("no dbus")}, nil)
	err = synth.Speak(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNoSpeechEngine)
	assert.Contains(t, err.Error(), "no dbus")
}

func TestWaitHonoursContext(t *testing.T) {
	t.Parallel()

	script, _ := speaker(t, "30")
	synth := NewCommandSynthesizer(config.SpeechConfig{Command: script}, nil, nil)
	defer synth.Close()

	require.NoError(t, synth.Speak(context.Background(), "long"))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, synth.Wait(ctx), context.DeadlineExceeded)
}

func TestNewCommandSynthesizerDefaults(t *testing.T) {
	t.Parallel()

	synth := NewCommandSynthesizer(config.SpeechConfig{}, nil, nil)
	assert.Equal(t, "espeak-ng", synth.command)
	assert.Equal(t, []string{"-v", "hi"}, synth.args)
	assert.Equal(t, "Ynot AI", synth.title)
}
