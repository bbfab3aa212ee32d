package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Config stores runtime configuration for the assistant.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Deepgram  DeepgramConfig  `yaml:"deepgram"`
	Audio     AudioConfig     `yaml:"audio"`
	Session   SessionConfig   `yaml:"session"`
	Speech    SpeechConfig    `yaml:"speech"`
	Rules     RulesConfig     `yaml:"rules"`
	Providers ProvidersConfig `yaml:"providers"`
	Cache     CacheConfig     `yaml:"cache"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`

	// Path is the config file that was read, empty when none existed.
	Path string `yaml:"-"`
}

type LogConfig struct {
	Level       string   `yaml:"level"`
	Format      string   `yaml:"format"`
	OutputPaths []string `yaml:"output_paths"`
}

type DeepgramConfig struct {
	APIKey         string `yaml:"api_key"`
	APIBaseURL     string `yaml:"api_base"`
	Model          string `yaml:"model"`
	Language       string `yaml:"language"`
	SmartFormat    bool   `yaml:"smart_format"`
	InterimResults bool   `yaml:"interim_results"`
	EndpointingMS  int    `yaml:"endpointing_ms"`
}

type AudioConfig struct {
	RecorderCommand string `yaml:"recorder_command"`
	InputFormat     string `yaml:"input_format"`
	InputDevice     string `yaml:"input_device"`
	SampleRate      int    `yaml:"sample_rate"`
	Channels        int    `yaml:"channels"`
}

type SessionConfig struct {
	ChunkSize      int           `yaml:"chunk_size"`
	StreamingGrace time.Duration `yaml:"streaming_grace"`
	StopTimeout    time.Duration `yaml:"stop_timeout"`
}

type SpeechConfig struct {
	Command    string   `yaml:"command"`
	Args       []string `yaml:"args"`
	AlertTitle string   `yaml:"alert_title"`
}

type RulesConfig struct {
	Path           string `yaml:"path"`
	IterationLimit int    `yaml:"iteration_limit"`
}

type ProvidersConfig struct {
	Timeout       time.Duration   `yaml:"timeout"`
	UserAgent     string          `yaml:"user_agent"`
	RatePerSecond float64         `yaml:"rate_per_second"`
	Burst         int             `yaml:"burst"`
	Weather       WeatherConfig   `yaml:"weather"`
	News          NewsConfig      `yaml:"news"`
	Wikipedia     WikipediaConfig `yaml:"wikipedia"`
}

type WeatherConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Location string        `yaml:"location"`
	Format   string        `yaml:"format"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type NewsConfig struct {
	FeedURL  string        `yaml:"feed_url"`
	ProxyURL string        `yaml:"proxy_url"`
	Limit    int           `yaml:"limit"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type WikipediaConfig struct {
	BaseURL  string        `yaml:"base_url"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type CacheConfig struct {
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	KeyPrefix     string `yaml:"key_prefix"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	ServiceName  string  `yaml:"service_name"`
	SampleRate   float64 `yaml:"sample_rate"`
}

type DispatchConfig struct {
	QueueSize int `yaml:"queue_size"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:       "info",
			Format:      "console",
			OutputPaths: []string{"stderr"},
		},
		Deepgram: DeepgramConfig{
			APIBaseURL:    "https://api.deepgram.com/v1",
			Model:         "nova-2",
			Language:      "hi",
			SmartFormat:   true,
			EndpointingMS: 300,
		},
		Audio: AudioConfig{
			RecorderCommand: "ffmpeg",
			InputFormat:     "pulse",
			InputDevice:     "default",
			SampleRate:      16000,
			Channels:        1,
		},
		Session: SessionConfig{
			ChunkSize:      4096,
			StreamingGrace: 500 * time.Millisecond,
			StopTimeout:    4 * time.Second,
		},
		Speech: SpeechConfig{
			Command:    "espeak-ng",
			Args:       []string{"-v", "hi"},
			AlertTitle: "Ynot AI",
		},
		Rules: RulesConfig{IterationLimit: 30},
		Providers: ProvidersConfig{
			Timeout:       10 * time.Second,
			UserAgent:     "ynot/1.0 (voice assistant)",
			RatePerSecond: 2,
			Burst:         4,
			Weather: WeatherConfig{
				BaseURL:  "https://wttr.in",
				Format:   "3",
				CacheTTL: 10 * time.Minute,
			},
			News: NewsConfig{
				FeedURL:  "http://feeds.bbci.co.uk/news/world/rss.xml",
				ProxyURL: "https://api.allorigins.win/raw?url=",
				Limit:    3,
				CacheTTL: 5 * time.Minute,
			},
			Wikipedia: WikipediaConfig{
				BaseURL:  "https://en.wikipedia.org",
				CacheTTL: time.Hour,
			},
		},
		Cache: CacheConfig{KeyPrefix: "ynot:"},
		Server: ServerConfig{
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "ynot",
			SampleRate:  1,
		},
		Dispatch: DispatchConfig{QueueSize: 32},
	}
}

// Load resolves configuration: defaults, then the YAML file, then environment
// variables. An empty path falls back to YNOT_CONFIG and then to
// ~/.config/ynot/config.yaml. A missing file is not an error.
func Load(fs afero.Fs, path string) (Config, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	cfg := Default()
	cfg.Rules.Path = filepath.Join(home, ".config", "ynot", "rewrite.rules")

	path = firstNonEmpty(path, os.Getenv("YNOT_CONFIG"), filepath.Join(home, ".config", "ynot", "config.yaml"))
	if err := loadFile(fs, path, &cfg); err != nil {
		return Config{}, err
	}

	applyEnv(&cfg)
	normalize(&cfg)
	return cfg, nil
}

func loadFile(fs afero.Fs, path string, cfg *Config) error {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %q: %w", path, err)
	}
	cfg.Path = path
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Log.Level = envOrDefault("YNOT_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envOrDefault("YNOT_LOG_FORMAT", cfg.Log.Format)

	cfg.Deepgram.APIKey = envOrDefault("DEEPGRAM_API_KEY", cfg.Deepgram.APIKey)
	cfg.Deepgram.APIBaseURL = envOrDefault("DEEPGRAM_API_BASE", cfg.Deepgram.APIBaseURL)
	cfg.Deepgram.Model = envOrDefault("DEEPGRAM_MODEL", cfg.Deepgram.Model)
	cfg.Deepgram.Language = envOrDefault("DEEPGRAM_LANGUAGE", cfg.Deepgram.Language)
	cfg.Deepgram.SmartFormat = envOrDefaultBool("DEEPGRAM_SMART_FORMAT", cfg.Deepgram.SmartFormat)
	cfg.Deepgram.EndpointingMS = envOrDefaultInt("DEEPGRAM_ENDPOINTING_MS", cfg.Deepgram.EndpointingMS)

	cfg.Audio.RecorderCommand = envOrDefault("YNOT_FFMPEG_COMMAND", cfg.Audio.RecorderCommand)
	cfg.Audio.InputFormat = envOrDefault("YNOT_AUDIO_INPUT_FORMAT", cfg.Audio.InputFormat)
	cfg.Audio.InputDevice = envOrDefault("YNOT_AUDIO_INPUT_DEVICE", cfg.Audio.InputDevice)
	cfg.Audio.SampleRate = envOrDefaultInt("YNOT_SAMPLE_RATE", cfg.Audio.SampleRate)
	cfg.Audio.Channels = envOrDefaultInt("YNOT_CHANNELS", cfg.Audio.Channels)

	cfg.Session.ChunkSize = envOrDefaultInt("YNOT_AUDIO_CHUNK_SIZE", cfg.Session.ChunkSize)
	if ms, ok := nonNegativeInt("YNOT_STREAMING_GRACE_MS"); ok {
		cfg.Session.StreamingGrace = time.Duration(ms) * time.Millisecond
	}

	cfg.Speech.Command = envOrDefault("YNOT_TTS_COMMAND", cfg.Speech.Command)

	cfg.Rules.Path = envOrDefault("YNOT_RULES_FILE", cfg.Rules.Path)
	cfg.Rules.IterationLimit = envOrDefaultInt("YNOT_RULE_ITERATION_LIMIT", cfg.Rules.IterationLimit)

	if ms, ok := nonNegativeInt("YNOT_PROVIDER_TIMEOUT_MS"); ok && ms > 0 {
		cfg.Providers.Timeout = time.Duration(ms) * time.Millisecond
	}
	cfg.Providers.Weather.Location = envOrDefault("YNOT_WEATHER_LOCATION", cfg.Providers.Weather.Location)
	cfg.Providers.News.FeedURL = envOrDefault("YNOT_NEWS_FEED_URL", cfg.Providers.News.FeedURL)
	if value, ok := os.LookupEnv("YNOT_NEWS_PROXY_URL"); ok {
		cfg.Providers.News.ProxyURL = strings.TrimSpace(value)
	}

	cfg.Cache.RedisAddr = envOrDefault("YNOT_REDIS_ADDR", cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = envOrDefault("YNOT_REDIS_PASSWORD", cfg.Cache.RedisPassword)

	cfg.Server.Addr = envOrDefault("YNOT_HTTP_ADDR", cfg.Server.Addr)

	if endpoint := strings.TrimSpace(os.Getenv("YNOT_OTLP_ENDPOINT")); endpoint != "" {
		cfg.Telemetry.Enabled = true
		cfg.Telemetry.OTLPEndpoint = endpoint
	}
}

func normalize(cfg *Config) {
	defaults := Default()

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = defaults.Audio.SampleRate
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = defaults.Audio.Channels
	}
	if cfg.Session.ChunkSize < 256 {
		cfg.Session.ChunkSize = defaults.Session.ChunkSize
	}
	if cfg.Session.StopTimeout <= 0 {
		cfg.Session.StopTimeout = defaults.Session.StopTimeout
	}
	if cfg.Rules.IterationLimit <= 0 {
		cfg.Rules.IterationLimit = defaults.Rules.IterationLimit
	}
	if cfg.Providers.Timeout <= 0 {
		cfg.Providers.Timeout = defaults.Providers.Timeout
	}
	if cfg.Providers.News.Limit <= 0 {
		cfg.Providers.News.Limit = defaults.Providers.News.Limit
	}
	if cfg.Dispatch.QueueSize <= 0 {
		cfg.Dispatch.QueueSize = defaults.Dispatch.QueueSize
	}
	if strings.TrimSpace(cfg.Deepgram.Language) == "" {
		cfg.Deepgram.Language = defaults.Deepgram.Language
	}
	if cfg.Telemetry.SampleRate <= 0 || cfg.Telemetry.SampleRate > 1 {
		cfg.Telemetry.SampleRate = defaults.Telemetry.SampleRate
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func nonNegativeInt(key string) (int, bool) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return 0, false
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return 0, false
	}
	return parsed, true
}
