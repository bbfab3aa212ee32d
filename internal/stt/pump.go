package stt

import (
	"errors"
	"io"
	"strings"
	"time"

	"ynot/internal/domain"
	"ynot/internal/ports"
)

// pumpAudio copies microphone chunks into the stream until the capture ends.
// Failures are reported through fail unless the run is already closing.
func pumpAudio(r *run, chunkSize int) {
	defer close(r.pumpDone)

	if chunkSize < 256 {
		chunkSize = 4096
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := r.audio.Read(buf)
		if n > 0 {
			if sendErr := r.stream.SendAudio(buf[:n]); sendErr != nil {
				r.fail(domain.DeviceErrorNetwork, sendErr)
				return
			}
		}
		if err != nil {
			if r.closing.Load() {
				return
			}
			if errors.Is(err, io.EOF) {
				err = errors.New("microphone stream ended")
			}
			r.fail(domain.DeviceErrorAudioCapture, err)
			_ = r.stream.CloseSend()
			return
		}
	}
}

// waitForStream waits for the provider to flush, closing it after timeout.
func waitForStream(session ports.StreamingSession, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		_ = session.Close()
		return <-done
	}
}

// utterance collects final segments until the provider marks end of speech.
type utterance struct {
	finals []string
}

func (u *utterance) add(segment domain.SpeechSegment) (string, bool) {
	if segment.Kind != domain.SegmentFinal {
		return "", false
	}
	if text := strings.TrimSpace(segment.Text); text != "" {
		u.finals = append(u.finals, text)
	}
	if !segment.IsSpeechFinal {
		return "", false
	}
	return u.flush()
}

func (u *utterance) flush() (string, bool) {
	text := strings.TrimSpace(strings.Join(u.finals, " "))
	u.finals = u.finals[:0]
	return text, text != ""
}
