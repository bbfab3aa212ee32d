// Package deepgram streams microphone audio to Deepgram's live listen
// websocket and turns its results into speech segments.
package deepgram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"ynot/internal/domain"
	"ynot/internal/ports"
)

// ErrMissingAPIKey means no key was configured; speech recognition is then
// unavailable on this device.
var ErrMissingAPIKey = errors.New("DEEPGRAM_API_KEY is not configured")

// ErrDial wraps failures to reach the listen endpoint.
var ErrDial = errors.New("failed to connect to Deepgram websocket")

const defaultBaseURL = "https://api.deepgram.com/v1"

// Config controls Deepgram websocket settings.
type Config struct {
	APIKey        string
	APIBaseURL    string
	Model         string
	Language      string
	SmartFormat   bool
	EndpointingMS int
	Dialer        *websocket.Dialer
}

// Provider implements ports.TranscriptionProvider.
type Provider struct {
	cfg Config
}

func NewProvider(cfg Config) *Provider {
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		cfg.APIBaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	return &Provider{cfg: cfg}
}

// Configured reports whether an API key is present.
func (p *Provider) Configured() bool {
	return strings.TrimSpace(p.cfg.APIKey) != ""
}

func (p *Provider) StartStreaming(ctx context.Context, cfg ports.StreamingConfig) (ports.StreamingSession, error) {
	if !p.Configured() {
		return nil, ErrMissingAPIKey
	}

	endpoint, err := listenURL(p.cfg, cfg)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.cfg.APIKey)

	conn, _, err := p.cfg.Dialer.DialContext(ctx, endpoint, headers)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDial, err)
	}

	session := newListenSession(conn)
	go func() {
		select {
		case <-ctx.Done():
			_ = session.Close()
		case <-session.done:
		}
	}()
	return session, nil
}

type listenSession struct {
	conn *websocket.Conn

	segments chan domain.SpeechSegment
	audio    chan []byte
	done     chan struct{}

	loops sync.WaitGroup

	errMu sync.Mutex
	err   error

	sendMu     sync.RWMutex
	sendClosed bool

	closeSendOnce sync.Once
	closeOnce     sync.Once
}

func newListenSession(conn *websocket.Conn) *listenSession {
	s := &listenSession{
		conn:     conn,
		segments: make(chan domain.SpeechSegment, 64),
		audio:    make(chan []byte, 32),
		done:     make(chan struct{}),
	}
	s.loops.Add(2)
	go s.receive()
	go s.transmit()
	go func() {
		s.loops.Wait()
		close(s.segments)
		close(s.done)
		_ = conn.Close()
	}()
	return s
}

func (s *listenSession) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.sendClosed {
		return errors.New("audio stream is already closed")
	}

	select {
	case s.audio <- append([]byte(nil), chunk...):
		return nil
	case <-s.done:
		if err := s.Err(); err != nil {
			return err
		}
		return errors.New("listen session closed")
	}
}

func (s *listenSession) CloseSend() error {
	s.closeSendOnce.Do(func() {
		s.sendMu.Lock()
		s.sendClosed = true
		close(s.audio)
		s.sendMu.Unlock()
	})
	return nil
}

func (s *listenSession) Segments() <-chan domain.SpeechSegment {
	return s.segments
}

func (s *listenSession) Wait() error {
	<-s.done
	return s.Err()
}

func (s *listenSession) Close() error {
	s.closeOnce.Do(func() {
		_ = s.conn.Close()
		_ = s.CloseSend()
	})
	<-s.done
	return s.Err()
}

// Err returns the first failure recorded by either loop.
func (s *listenSession) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *listenSession) fail(err error) {
	if err == nil || isOrderlyClose(err) {
		return
	}
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// isOrderlyClose looks through wrapping; websocket.IsCloseError does not.
func isOrderlyClose(err error) bool {
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		return false
	}
	switch closeErr.Code {
	case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived:
		return true
	}
	return false
}

func (s *listenSession) transmit() {
	defer s.loops.Done()

	for chunk := range s.audio {
		if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			s.fail(fmt.Errorf("failed to send audio: %w", err))
			return
		}
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		s.fail(fmt.Errorf("failed to close stream: %w", err))
	}
}

func (s *listenSession) receive() {
	defer s.loops.Done()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.fail(fmt.Errorf("failed to read listen result: %w", err))
			return
		}
		if !gjson.ValidBytes(payload) {
			continue
		}

		result := gjson.ParseBytes(payload)
		if strings.EqualFold(result.Get("type").String(), "Error") {
			message := strings.TrimSpace(firstString(result, "description", "message"))
			if message == "" {
				message = "deepgram returned an unknown error"
			}
			s.fail(errors.New(message))
			return
		}

		segment, ok := parseSegment(result)
		if !ok {
			continue
		}
		select {
		case s.segments <- segment:
		default:
		}
	}
}

// parseSegment reads a Results message. Both the live (channel.alternatives)
// and prerecorded (results.channels) shapes are accepted.
func parseSegment(result gjson.Result) (domain.SpeechSegment, bool) {
	text := strings.TrimSpace(firstString(result,
		"channel.alternatives.0.transcript",
		"results.channels.0.alternatives.0.transcript",
	))
	if text == "" {
		return domain.SpeechSegment{}, false
	}

	speechFinal := result.Get("speech_final").Bool()
	kind := domain.SegmentPartial
	if speechFinal || result.Get("is_final").Bool() {
		kind = domain.SegmentFinal
	}
	return domain.SpeechSegment{Kind: kind, Text: text, IsSpeechFinal: speechFinal}, true
}

func firstString(result gjson.Result, paths ...string) string {
	for _, path := range paths {
		if value := result.Get(path).String(); strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func listenURL(providerCfg Config, streamCfg ports.StreamingConfig) (string, error) {
	base := strings.TrimSpace(providerCfg.APIBaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	endpoint, err := url.Parse(strings.TrimRight(base, "/") + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}

	if streamCfg.Encoding == "" {
		streamCfg.Encoding = "linear16"
	}
	if streamCfg.SampleRate <= 0 {
		streamCfg.SampleRate = 16000
	}
	if streamCfg.Channels <= 0 {
		streamCfg.Channels = 1
	}

	query := endpoint.Query()
	query.Set("model", providerCfg.Model)
	query.Set("encoding", streamCfg.Encoding)
	query.Set("sample_rate", strconv.Itoa(streamCfg.SampleRate))
	query.Set("channels", strconv.Itoa(streamCfg.Channels))
	query.Set("interim_results", strconv.FormatBool(streamCfg.InterimResults))
	query.Set("smart_format", strconv.FormatBool(providerCfg.SmartFormat))
	if providerCfg.Language != "" {
		query.Set("language", providerCfg.Language)
	}
	if providerCfg.EndpointingMS > 0 {
		query.Set("endpointing", strconv.Itoa(providerCfg.EndpointingMS))
	}
	endpoint.RawQuery = query.Encode()
	return endpoint.String(), nil
}
