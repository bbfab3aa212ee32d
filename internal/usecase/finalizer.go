package usecase

import (
	"context"

	"go.uber.org/zap"

	"ynot/internal/domain"
	"ynot/internal/ports"
)

// replyFinalizer delivers a reply: speech first, then the log line. A speech
// failure never suppresses the log line.
type replyFinalizer struct {
	synth  ports.Synthesizer
	log    ports.TranscriptLog
	logger *zap.Logger
}

func newReplyFinalizer(synth ports.Synthesizer, log ports.TranscriptLog, logger *zap.Logger) replyFinalizer {
	return replyFinalizer{synth: synth, log: log, logger: logger}
}

// Finalize speaks utterance and records it. It reports whether speech worked.
func (f replyFinalizer) Finalize(ctx context.Context, utterance string) bool {
	spoken := f.say(ctx, utterance)
	f.record(domain.TagAssistant, utterance)
	return spoken
}

// Cue speaks a short progress line without logging it.
func (f replyFinalizer) Cue(ctx context.Context, line string) {
	if line == "" {
		return
	}
	f.say(ctx, line)
}

func (f replyFinalizer) record(tag domain.LogTag, text string) {
	if f.log != nil {
		f.log.Append(tag, text)
	}
}

func (f replyFinalizer) say(ctx context.Context, text string) bool {
	if f.synth == nil {
		return false
	}
	if err := f.synth.Speak(ctx, text); err != nil {
		f.logger.Warn("speech output failed", zap.Error(err))
		return false
	}
	return true
}
