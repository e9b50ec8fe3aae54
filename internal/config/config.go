package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dgnsrekt/lumina-voice/internal/audio"
)

// Supported TTS engines.
const (
	EngineGemini = "gemini"
	EnginePiper  = "piper"
)

// Config holds all application configuration.
type Config struct {
	// HTTP settings
	HTTPPort    int    `yaml:"http_port"`
	BearerToken string `yaml:"bearer_token"`

	// TTS settings
	TTSEngine     string `yaml:"tts_engine"`
	GeminiAPIKey  string `yaml:"gemini_api_key"`
	GeminiBaseURL string `yaml:"gemini_base_url"`
	GeminiModel   string `yaml:"gemini_model"`
	DefaultVoice  string `yaml:"default_voice"` // empty lets each engine pick
	PiperPath     string `yaml:"piper_path"`
	PiperModel    string `yaml:"piper_model"`

	// Audio settings
	SampleRate  int           `yaml:"sample_rate"`
	Channels    int           `yaml:"channels"`
	AudioOutput bool          `yaml:"audio_output"`
	IdleSuspend time.Duration `yaml:"idle_suspend"`

	// Behavior settings
	MaxTextLength int           `yaml:"max_text_length"`
	QueueCapacity int           `yaml:"queue_capacity"`
	DefaultTTL    time.Duration `yaml:"default_ttl"`
	ClipCacheSize int           `yaml:"clip_cache_size"`
	ClipTTL       time.Duration `yaml:"clip_ttl"`

	// Logging settings
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		HTTPPort: 8080,

		TTSEngine: EngineGemini,
		PiperPath: "piper",

		SampleRate:  24000,
		Channels:    1,
		AudioOutput: true,
		IdleSuspend: 5 * time.Minute,

		MaxTextLength: 1000,
		QueueCapacity: 100,
		DefaultTTL:    30 * time.Second,
		ClipCacheSize: 128,
		ClipTTL:       30 * time.Minute,

		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load builds configuration from defaults, then the YAML file named by
// CONFIG_FILE if set, then environment variables.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	// HTTP settings
	c.HTTPPort = getEnvInt("HTTP_PORT", c.HTTPPort)
	c.BearerToken = getEnvString("BEARER_TOKEN", c.BearerToken)

	// TTS settings
	c.TTSEngine = getEnvString("TTS_ENGINE", c.TTSEngine)
	c.GeminiAPIKey = getEnvString("GEMINI_API_KEY", c.GeminiAPIKey)
	c.GeminiBaseURL = getEnvString("GEMINI_BASE_URL", c.GeminiBaseURL)
	c.GeminiModel = getEnvString("GEMINI_MODEL", c.GeminiModel)
	c.DefaultVoice = getEnvString("DEFAULT_VOICE", c.DefaultVoice)
	c.PiperPath = getEnvString("PIPER_PATH", c.PiperPath)
	c.PiperModel = getEnvString("PIPER_MODEL", c.PiperModel)

	// Audio settings
	c.SampleRate = getEnvInt("SAMPLE_RATE", c.SampleRate)
	c.Channels = getEnvInt("CHANNELS", c.Channels)
	c.AudioOutput = getEnvBool("AUDIO_OUTPUT", c.AudioOutput)
	c.IdleSuspend = getEnvDuration("IDLE_SUSPEND", c.IdleSuspend)

	// Behavior settings
	c.MaxTextLength = getEnvInt("MAX_TEXT_LENGTH", c.MaxTextLength)
	c.QueueCapacity = getEnvInt("QUEUE_CAPACITY", c.QueueCapacity)
	c.DefaultTTL = getEnvDuration("DEFAULT_TTL", c.DefaultTTL)
	c.ClipCacheSize = getEnvInt("CLIP_CACHE_SIZE", c.ClipCacheSize)
	c.ClipTTL = getEnvDuration("CLIP_TTL", c.ClipTTL)

	// Logging settings
	c.LogLevel = getEnvString("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnvString("LOG_FORMAT", c.LogFormat)
}

// AuthDisabled returns true if bearer token authentication is disabled.
func (c *Config) AuthDisabled() bool {
	return c.BearerToken == ""
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	var errs []error

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, errors.New("HTTP_PORT must be between 1 and 65535"))
	}

	switch c.TTSEngine {
	case EngineGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required when TTS_ENGINE is gemini"))
		}
	case EnginePiper:
		if c.PiperModel == "" {
			errs = append(errs, errors.New("PIPER_MODEL is required when TTS_ENGINE is piper"))
		}
	default:
		errs = append(errs, errors.New("TTS_ENGINE must be one of: gemini, piper"))
	}

	if c.SampleRate < 1 || c.SampleRate > audio.MaxSampleRate {
		errs = append(errs, fmt.Errorf("SAMPLE_RATE must be between 1 and %d", audio.MaxSampleRate))
	}

	if c.Channels < 1 || c.Channels > audio.MaxChannels {
		errs = append(errs, fmt.Errorf("CHANNELS must be between 1 and %d", audio.MaxChannels))
	}

	if c.IdleSuspend < 0 {
		errs = append(errs, errors.New("IDLE_SUSPEND must be non-negative"))
	}

	if c.MaxTextLength < 1 {
		errs = append(errs, errors.New("MAX_TEXT_LENGTH must be at least 1"))
	}

	if c.QueueCapacity < 1 {
		errs = append(errs, errors.New("QUEUE_CAPACITY must be at least 1"))
	}

	if c.ClipCacheSize < 1 {
		errs = append(errs, errors.New("CLIP_CACHE_SIZE must be at least 1"))
	}

	if c.ClipTTL < 0 {
		errs = append(errs, errors.New("CLIP_TTL must be non-negative"))
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		errs = append(errs, errors.New("LOG_LEVEL must be one of: debug, info, warn, error"))
	}

	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[c.LogFormat] {
		errs = append(errs, errors.New("LOG_FORMAT must be one of: text, json"))
	}

	return errors.Join(errs...)
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as an int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool returns the environment variable as a bool or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration returns the environment variable as a duration or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
