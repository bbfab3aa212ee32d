package deepgram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"ynot/internal/domain"
	"ynot/internal/ports"
)

func TestNewProviderDefaults(t *testing.T) {
	t.Parallel()

	p := NewProvider(Config{})
	assert.Equal(t, "https://api.deepgram.com/v1", p.cfg.APIBaseURL)
	assert.Equal(t, "nova-2", p.cfg.Model)
	assert.False(t, p.Configured())
}

func TestStartStreamingRequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := NewProvider(Config{APIKey: "  "}).StartStreaming(context.Background(), ports.StreamingConfig{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestListenURLDefaults(t *testing.T) {
	t.Parallel()

	raw, err := listenURL(Config{APIBaseURL: "https://api.deepgram.com/v1/", Model: "nova-2"}, ports.StreamingConfig{})
	require.NoError(t, err)

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "wss", parsed.Scheme)
	assert.Equal(t, "/v1/listen", parsed.Path)

	query := parsed.Query()
	assert.Equal(t, "linear16", query.Get("encoding"))
	assert.Equal(t, "16000", query.Get("sample_rate"))
	assert.Equal(t, "1", query.Get("channels"))
	assert.Equal(t, "false", query.Get("interim_results"))
	assert.Empty(t, query.Get("language"))
	assert.Empty(t, query.Get("endpointing"))
}

func TestListenURLCarriesLanguageAndEndpointing(t *testing.T) {
	t.Parallel()

	raw, err := listenURL(
		Config{APIBaseURL: "http://localhost:8080/v1", Model: "m", Language: "hi", SmartFormat: true, EndpointingMS: 300},
		ports.StreamingConfig{Encoding: "linear16", SampleRate: 8000, Channels: 2, InterimResults: true},
	)
	require.NoError(t, err)

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "ws", parsed.Scheme)

	query := parsed.Query()
	assert.Equal(t, "hi", query.Get("language"))
	assert.Equal(t, "true", query.Get("smart_format"))
	assert.Equal(t, "true", query.Get("interim_results"))
	assert.Equal(t, "300", query.Get("endpointing"))
	assert.Equal(t, "8000", query.Get("sample_rate"))
}

func TestListenURLInvalidBase(t *testing.T) {
	t.Parallel()

	_, err := listenURL(Config{APIBaseURL: ":// bad"}, ports.StreamingConfig{})
	require.Error(t, err)
}

func TestParseSegment(t *testing.T) {
	t.Parallel()

	live := gjson.Parse(`{"type":"Results","is_final":true,"speech_final":true,"channel":{"alternatives":[{"transcript":" aaj ka mausam "}]}}`)
	segment, ok := parseSegment(live)
	require.True(t, ok)
	assert.Equal(t, domain.SpeechSegment{Kind: domain.SegmentFinal, Text: "aaj ka mausam", IsSpeechFinal: true}, segment)

	interim := gjson.Parse(`{"channel":{"alternatives":[{"transcript":"aaj"}]}}`)
	segment, ok = parseSegment(interim)
	require.True(t, ok)
	assert.Equal(t, domain.SegmentPartial, segment.Kind)

	batch := gjson.Parse(`{"is_final":true,"results":{"channels":[{"alternatives":[{"transcript":"news"}]}]}}`)
	segment, ok = parseSegment(batch)
	require.True(t, ok)
	assert.Equal(t, "news", segment.Text)
	assert.False(t, segment.IsSpeechFinal)

	_, ok = parseSegment(gjson.Parse(`{"type":"Metadata"}`))
	assert.False(t, ok)
}

func TestListenSessionFailIgnoresOrderlyClose(t *testing.T) {
	t.Parallel()

	s := &listenSession{}
	s.fail(&websocket.CloseError{Code: websocket.CloseNormalClosure, Text: "bye"})
	assert.NoError(t, s.Err())
	s.fail(fmt.Errorf("failed to read listen result: %w", &websocket.CloseError{Code: websocket.CloseNormalClosure}))
	s.fail(fmt.Errorf("failed to read listen result: %w", &websocket.CloseError{Code: websocket.CloseGoingAway}))
	assert.NoError(t, s.Err())

	s.fail(fmt.Errorf("failed to read listen result: %w", &websocket.CloseError{Code: websocket.CloseInternalServerErr}))
	assert.Error(t, s.Err())
	s = &listenSession{}

	s.fail(errors.New("first"))
	s.fail(errors.New("second"))
	assert.EqualError(t, s.Err(), "first")
}

func TestListenSessionSendAfterCloseSend(t *testing.T) {
	t.Parallel()

	s := &listenSession{audio: make(chan []byte, 1)}
	require.NoError(t, s.CloseSend())
	require.NoError(t, s.CloseSend())
	assert.Error(t, s.SendAudio([]byte("x")))
	assert.NoError(t, s.SendAudio(nil))
}

func newListenServer(t *testing.T, handle func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token test-key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestStreamingRoundTrip(t *testing.T) {
	t.Parallel()

	server := newListenServer(t, func(conn *websocket.Conn) {
		for {
			kind, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind == websocket.BinaryMessage {
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Results","is_final":true,"speech_final":true,"channel":{"alternatives":[{"transcript":"joke sunao"}]}}`))
				continue
			}
			if strings.Contains(string(payload), "CloseStream") {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
		}
	})

	provider := NewProvider(Config{APIKey: "test-key", APIBaseURL: server.URL, Language: "hi"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	session, err := provider.StartStreaming(ctx, ports.StreamingConfig{})
	require.NoError(t, err)

	require.NoError(t, session.SendAudio([]byte{0, 1, 2, 3}))

	select {
	case segment := <-session.Segments():
		assert.Equal(t, "joke sunao", segment.Text)
		assert.True(t, segment.IsSpeechFinal)
	case <-ctx.Done():
		t.Fatal("no segment received")
	}

	require.NoError(t, session.CloseSend())
	assert.NoError(t, session.Wait())
}

func TestStreamingSurfacesProviderError(t *testing.T) {
	t.Parallel()

	server := newListenServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Error","description":"quota exceeded"}`))
		_, _, _ = conn.ReadMessage()
	})

	provider := NewProvider(Config{APIKey: "test-key", APIBaseURL: server.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	session, err := provider.StartStreaming(ctx, ports.StreamingConfig{})
	require.NoError(t, err)

	require.NoError(t, session.CloseSend())
	for range session.Segments() {
	}
	assert.EqualError(t, session.Close(), "quota exceeded")
}

func TestStartStreamingWrapsDialFailure(t *testing.T) {
	t.Parallel()

	server := newListenServer(t, func(*websocket.Conn) {})
	provider := NewProvider(Config{APIKey: "wrong", APIBaseURL: server.URL})

	_, err := provider.StartStreaming(context.Background(), ports.StreamingConfig{})
	assert.ErrorIs(t, err, ErrDial)
}
