package domain

import "time"

// RecognitionState models the speech input lifecycle.
type RecognitionState string

const (
	RecognitionIdle      RecognitionState = "idle"
	RecognitionListening RecognitionState = "listening"
	RecognitionError     RecognitionState = "error"
)

// DeviceErrorCode identifies why the speech source stopped producing transcripts.
type DeviceErrorCode string

const (
	DeviceErrorAudioCapture DeviceErrorCode = "audio-capture"
	DeviceErrorNetwork      DeviceErrorCode = "network"
	DeviceErrorStart        DeviceErrorCode = "start-failed"
)

// TranscriptSource tags which channel produced a transcript.
type TranscriptSource string

const (
	SourceVoice TranscriptSource = "voice"
	SourceTyped TranscriptSource = "typed"
)

// TranscriptEvent is one finalized utterance waiting for dispatch.
type TranscriptEvent struct {
	ID         string           `json:"id"`
	Text       string           `json:"text"`
	Source     TranscriptSource `json:"source"`
	ReceivedAt time.Time        `json:"receivedAt"`
}

// OutcomeStatus classifies how a dispatch resolved.
type OutcomeStatus string

const (
	OutcomeOK        OutcomeStatus = "ok"
	OutcomeDegraded  OutcomeStatus = "degraded"
	OutcomeClarify   OutcomeStatus = "clarify"
	OutcomeUnmatched OutcomeStatus = "unmatched"
)

// IntentNone is reported when no intent matched a transcript.
const IntentNone = "none"

// DispatchOutcome is what one command produced.
type DispatchOutcome struct {
	TranscriptID string        `json:"transcriptId"`
	Intent       string        `json:"intent"`
	Parameter    string        `json:"parameter,omitempty"`
	Utterance    string        `json:"utterance"`
	Status       OutcomeStatus `json:"status"`
}

// LogTag attributes a transcript log line to a speaker.
type LogTag string

const (
	TagUser      LogTag = "You"
	TagAssistant LogTag = "Ynot"
)

// LogEntry is one line of the transcript log.
type LogEntry struct {
	Tag  LogTag    `json:"tag"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// SegmentKind identifies whether a streaming STT event is partial or final text.
type SegmentKind string

const (
	SegmentPartial SegmentKind = "partial"
	SegmentFinal   SegmentKind = "final"
)

// SpeechSegment is incremental transcription output from a streaming provider.
type SpeechSegment struct {
	Kind          SegmentKind `json:"kind"`
	Text          string      `json:"text"`
	IsSpeechFinal bool        `json:"isSpeechFinal"`
}

// Status summarizes the recognition controller.
type Status struct {
	State       RecognitionState `json:"state"`
	Listening   bool             `json:"listening"`
	Unsupported bool             `json:"unsupported,omitempty"`
	Message     string           `json:"message,omitempty"`
}
