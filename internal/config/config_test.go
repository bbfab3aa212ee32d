package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("YNOT_CONFIG", "")

	cfg, err := Load(afero.NewMemMapFs(), "")
	require.NoError(t, err)

	assert.Empty(t, cfg.Path)
	assert.Equal(t, "hi", cfg.Deepgram.Language)
	assert.Equal(t, "ffmpeg", cfg.Audio.RecorderCommand)
	assert.Equal(t, filepath.Join(home, ".config", "ynot", "rewrite.rules"), cfg.Rules.Path)
	assert.Equal(t, 3, cfg.Providers.News.Limit)
	assert.Equal(t, 32, cfg.Dispatch.QueueSize)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoadReadsYAMLFromDefaultLocation(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("YNOT_CONFIG", "")

	fs := afero.NewMemMapFs()
	path := filepath.Join(home, ".config", "ynot", "config.yaml")
	require.NoError(t, afero.WriteFile(fs, path, []byte(`
log:
  level: debug
  format: json
deepgram:
  model: nova-3
  endpointing_ms: 500
providers:
  timeout: 3s
  news:
    limit: 5
    proxy_url: ""
cache:
  redis_addr: localhost:6379
server:
  addr: 127.0.0.1:8765
`), 0o600))

	cfg, err := Load(fs, "")
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "nova-3", cfg.Deepgram.Model)
	assert.Equal(t, 500, cfg.Deepgram.EndpointingMS)
	assert.Equal(t, 3*time.Second, cfg.Providers.Timeout)
	assert.Equal(t, 5, cfg.Providers.News.Limit)
	assert.Empty(t, cfg.Providers.News.ProxyURL)
	assert.Equal(t, "localhost:6379", cfg.Cache.RedisAddr)
	assert.Equal(t, "127.0.0.1:8765", cfg.Server.Addr)
	assert.Equal(t, "https://wttr.in", cfg.Providers.Weather.BaseURL, "unset keys keep defaults")
}

func TestLoadRespectsEnvOverrides(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	fs := afero.NewMemMapFs()
	path := filepath.Join(home, "custom.yaml")
	require.NoError(t, afero.WriteFile(fs, path, []byte("deepgram:\n  model: from-file\n"), 0o600))

	t.Setenv("YNOT_CONFIG", path)
	t.Setenv("DEEPGRAM_API_KEY", "test-key")
	t.Setenv("DEEPGRAM_API_BASE", "https://example.com/v1")
	t.Setenv("DEEPGRAM_MODEL", "nova-3")
	t.Setenv("DEEPGRAM_LANGUAGE", "en")
	t.Setenv("DEEPGRAM_SMART_FORMAT", "false")
	t.Setenv("YNOT_FFMPEG_COMMAND", "my-ffmpeg")
	t.Setenv("YNOT_AUDIO_INPUT_FORMAT", "alsa")
	t.Setenv("YNOT_AUDIO_INPUT_DEVICE", "mic0")
	t.Setenv("YNOT_SAMPLE_RATE", "22050")
	t.Setenv("YNOT_CHANNELS", "2")
	t.Setenv("YNOT_RULES_FILE", "/tmp/my.rules")
	t.Setenv("YNOT_RULE_ITERATION_LIMIT", "42")
	t.Setenv("YNOT_AUDIO_CHUNK_SIZE", "512")
	t.Setenv("YNOT_STREAMING_GRACE_MS", "25")
	t.Setenv("YNOT_TTS_COMMAND", "say")
	t.Setenv("YNOT_PROVIDER_TIMEOUT_MS", "1500")
	t.Setenv("YNOT_NEWS_PROXY_URL", "")
	t.Setenv("YNOT_REDIS_ADDR", "redis:6379")
	t.Setenv("YNOT_HTTP_ADDR", ":9000")
	t.Setenv("YNOT_OTLP_ENDPOINT", "collector:4317")

	cfg, err := Load(fs, "")
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, "test-key", cfg.Deepgram.APIKey)
	assert.Equal(t, "https://example.com/v1", cfg.Deepgram.APIBaseURL)
	assert.Equal(t, "nova-3", cfg.Deepgram.Model, "env wins over file")
	assert.Equal(t, "en", cfg.Deepgram.Language)
	assert.False(t, cfg.Deepgram.SmartFormat)
	assert.Equal(t, "my-ffmpeg", cfg.Audio.RecorderCommand)
	assert.Equal(t, "alsa", cfg.Audio.InputFormat)
	assert.Equal(t, "mic0", cfg.Audio.InputDevice)
	assert.Equal(t, 22050, cfg.Audio.SampleRate)
	assert.Equal(t, 2, cfg.Audio.Channels)
	assert.Equal(t, "/tmp/my.rules", cfg.Rules.Path)
	assert.Equal(t, 42, cfg.Rules.IterationLimit)
	assert.Equal(t, 512, cfg.Session.ChunkSize)
	assert.Equal(t, 25*time.Millisecond, cfg.Session.StreamingGrace)
	assert.Equal(t, "say", cfg.Speech.Command)
	assert.Equal(t, 1500*time.Millisecond, cfg.Providers.Timeout)
	assert.Empty(t, cfg.Providers.News.ProxyURL)
	assert.Equal(t, "redis:6379", cfg.Cache.RedisAddr)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "collector:4317", cfg.Telemetry.OTLPEndpoint)
}

func TestLoadInvalidNumericValuesFallback(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("YNOT_CONFIG", "")
	t.Setenv("YNOT_SAMPLE_RATE", "bad")
	t.Setenv("YNOT_CHANNELS", "-1")
	t.Setenv("YNOT_RULE_ITERATION_LIMIT", "0")
	t.Setenv("YNOT_AUDIO_CHUNK_SIZE", "5")
	t.Setenv("YNOT_STREAMING_GRACE_MS", "bad")
	t.Setenv("DEEPGRAM_SMART_FORMAT", "not-bool")

	cfg, err := Load(afero.NewMemMapFs(), "")
	require.NoError(t, err)

	assert.Equal(t, 16000, cfg.Audio.SampleRate)
	assert.Equal(t, 1, cfg.Audio.Channels)
	assert.Equal(t, 30, cfg.Rules.IterationLimit)
	assert.Equal(t, 4096, cfg.Session.ChunkSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Session.StreamingGrace)
	assert.True(t, cfg.Deepgram.SmartFormat)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/ynot.yaml", []byte("log: [unterminated"), 0o600))

	_, err := Load(fs, "/etc/ynot.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}
