// Package config provides the configuration structure for the narrator services.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/pelletier/go-toml/v2"
)

// Synthesis backends.
const (
	BackendHTTP = "http"
	BackendEdge = "edge"
)

// Defaults applied to zero values.
const (
	DefaultVoice             = "pt-BR-ThalitaMultilingualNeural"
	DefaultSpeed             = "x1.0"
	DefaultEdgeBinary        = "edge-tts"
	DefaultTimeoutSeconds    = 120
	DefaultConcurrency       = 8
	DefaultMaxAttempts       = 3
	DefaultBackoffSeconds    = 2
	DefaultMinAudioBytes     = 200
	DefaultMaxChunkChars     = 7500
	DefaultTextSubject       = "text.processed"
	DefaultAudioSubject      = "audio.chunk.created"
	DefaultAudioBucket       = "AUDIO_FILES"
	DefaultTextBucket        = "TEXT_FILES"
	DefaultOutputDir         = "narration"
	DefaultMetricsListenAddr = ":9102"
)

// ErrUnknownBackend is returned by Validate for a backend other than http or edge.
var ErrUnknownBackend = errors.New("unknown synthesis backend")

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                      string `toml:"url"`
	TTSStreamName            string `toml:"tts_stream_name"`
	TTSConsumerName          string `toml:"tts_consumer_name"`
	TextProcessedSubject     string `toml:"text_processed_subject"`
	AudioChunkCreatedSubject string `toml:"audio_chunk_created_subject"`
	TextObjectStoreBucket    string `toml:"text_object_store_bucket"`
	AudioObjectStoreBucket   string `toml:"audio_object_store_bucket"`
}

// TTSServiceConfig holds the speech synthesis settings.
type TTSServiceConfig struct {
	Backend           string  `toml:"backend"`
	ServiceURL        string  `toml:"service_url"`
	BinaryPath        string  `toml:"binary_path"`
	Voice             string  `toml:"voice"`
	Speed             string  `toml:"speed"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	Concurrency       int     `toml:"concurrency"`
	MaxAttempts       int     `toml:"max_attempts"`
	BackoffSeconds    int     `toml:"backoff_seconds"`
	MinAudioBytes     int     `toml:"min_audio_bytes"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// Timeout returns the per-request timeout.
func (c TTSServiceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Backoff returns the base delay between attempts.
func (c TTSServiceConfig) Backoff() time.Duration {
	return time.Duration(c.BackoffSeconds) * time.Second
}

// TextConfig holds the text pipeline settings.
type TextConfig struct {
	MaxChunkChars int    `toml:"max_chunk_chars"`
	RulesFile     string `toml:"rules_file"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
	OutputDir   string `toml:"output_dir"`
}

// MetricsConfig holds the metrics endpoint settings. An empty address disables it.
type MetricsConfig struct {
	ListenAddress string `toml:"listen_address"`
}

// Config is the root configuration structure.
type Config struct {
	NATS    NATSConfig       `toml:"nats"`
	TTS     TTSServiceConfig `toml:"tts_service"`
	Text    TextConfig       `toml:"text"`
	Paths   PathsConfig      `toml:"paths"`
	Metrics MetricsConfig    `toml:"metrics"`
}

// Default returns a configuration with every default filled in.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	cfg.Metrics.ListenAddress = DefaultMetricsListenAddr

	return cfg
}

// ApplyDefaults fills zero values. The metrics address is left alone so that
// an empty value keeps the endpoint disabled.
func (c *Config) ApplyDefaults() {
	setDefault(&c.NATS.TextProcessedSubject, DefaultTextSubject)
	setDefault(&c.NATS.AudioChunkCreatedSubject, DefaultAudioSubject)
	setDefault(&c.NATS.TextObjectStoreBucket, DefaultTextBucket)
	setDefault(&c.NATS.AudioObjectStoreBucket, DefaultAudioBucket)

	setDefault(&c.TTS.Backend, BackendEdge)
	setDefault(&c.TTS.BinaryPath, DefaultEdgeBinary)
	setDefault(&c.TTS.Voice, DefaultVoice)
	setDefault(&c.TTS.Speed, DefaultSpeed)
	setDefault(&c.TTS.TimeoutSeconds, DefaultTimeoutSeconds)
	setDefault(&c.TTS.Concurrency, DefaultConcurrency)
	setDefault(&c.TTS.MaxAttempts, DefaultMaxAttempts)
	setDefault(&c.TTS.BackoffSeconds, DefaultBackoffSeconds)
	setDefault(&c.TTS.MinAudioBytes, DefaultMinAudioBytes)

	setDefault(&c.Text.MaxChunkChars, DefaultMaxChunkChars)

	setDefault(&c.Paths.BaseLogsDir, os.TempDir())
	setDefault(&c.Paths.OutputDir, DefaultOutputDir)
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	switch c.TTS.Backend {
	case BackendHTTP:
		if c.TTS.ServiceURL == "" {
			return fmt.Errorf("tts_service.service_url is required for the %q backend", BackendHTTP)
		}
	case BackendEdge:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.TTS.Backend)
	}

	return nil
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}

// Load loads the service configuration through the configurator.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.ApplyDefaults()

	return &cfg, nil
}

// LoadFile reads a TOML file from an explicit path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config

	err = toml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.ApplyDefaults()

	return &cfg, nil
}
