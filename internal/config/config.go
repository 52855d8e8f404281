package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Audio     AudioConfig     `yaml:"audio"`
	STT       STTConfig       `yaml:"stt"`
	Responder ResponderConfig `yaml:"responder"`
	TTS       TTSConfig       `yaml:"tts"`
	Store     StoreConfig     `yaml:"store"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// AudioConfig contains audio ingest settings.
type AudioConfig struct {
	TempDir        string `yaml:"temp_dir"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	FFmpegPath     string `yaml:"ffmpeg_path"`
	SampleRate     int    `yaml:"sample_rate"`
	Channels       int    `yaml:"channels"`
}

// STTConfig selects and configures the speech recognition backend.
type STTConfig struct {
	Provider string        `yaml:"provider"` // "whisper" or "google"
	Whisper  WhisperConfig `yaml:"whisper"`
	Google   GoogleConfig  `yaml:"google"`
}

// WhisperConfig configures the local whisper.cpp backend.
type WhisperConfig struct {
	BinaryPath  string `yaml:"binary_path"`
	ModelPath   string `yaml:"model_path"`
	Language    string `yaml:"language"`
	Threads     int    `yaml:"threads"`
	Concurrency int    `yaml:"concurrency"`
}

// GoogleConfig configures the Google Cloud Speech backend.
type GoogleConfig struct {
	Language string `yaml:"language"`
}

// ResponderConfig selects the reply provider.
type ResponderConfig struct {
	Provider string        `yaml:"provider"` // "echo", "gemini" or "groq"
	Timeout  time.Duration `yaml:"timeout"`
	Gemini   GeminiConfig  `yaml:"gemini"`
	Groq     GroqConfig    `yaml:"groq"`
}

// GeminiConfig configures the Gemini reply provider.
type GeminiConfig struct {
	APIKey string `yaml:"-"` // GEMINI_API_KEY
	Model  string `yaml:"model"`
}

// GroqConfig configures the Groq reply provider.
type GroqConfig struct {
	APIKey  string `yaml:"-"` // GROQ_API_KEY
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// TTSConfig configures the YarnGPT synthesizer.
type TTSConfig struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"-"` // YARNGPT_API_KEY
	DefaultVoice   string        `yaml:"default_voice"`
	ResponseFormat string        `yaml:"response_format"` // mp3, wav, opus, flac
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
}

// StoreConfig configures the artifact store.
type StoreConfig struct {
	Backend       string        `yaml:"backend"` // "filesystem" or "s3"
	Dir           string        `yaml:"dir"`
	TTL           time.Duration `yaml:"ttl"`
	MaxBytes      int64         `yaml:"max_bytes"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	S3            S3Config      `yaml:"s3"`
}

// S3Config configures the object-storage artifact backend.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"-"` // S3_ACCESS_KEY
	SecretKey string `yaml:"-"` // S3_SECRET_KEY
	Secure    bool   `yaml:"secure"`
}

// AuthConfig configures service-token auth for admin endpoints.
type AuthConfig struct {
	Secret   string        `yaml:"-"` // AUTH_SECRET
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// LoggingConfig selects the zap logger profile.
type LoggingConfig struct {
	Development bool   `yaml:"development"`
	Level       string `yaml:"level"`
}

// Load reads the YAML configuration file, applies defaults and environment
// overrides, and validates the result. An empty path yields a default config.
func Load(path string) (*Config, error) {
	var config Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	config.applyDefaults()
	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Audio.TempDir == "" {
		c.Audio.TempDir = os.TempDir()
	}
	if c.Audio.MaxUploadBytes == 0 {
		c.Audio.MaxUploadBytes = 25 << 20 // 25 MiB
	}
	if c.Audio.FFmpegPath == "" {
		c.Audio.FFmpegPath = "ffmpeg"
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.Channels == 0 {
		c.Audio.Channels = 1
	}
	if c.STT.Provider == "" {
		c.STT.Provider = "whisper"
	}
	if c.STT.Whisper.BinaryPath == "" {
		c.STT.Whisper.BinaryPath = "whisper-cli"
	}
	if c.STT.Whisper.Threads == 0 {
		c.STT.Whisper.Threads = 4
	}
	if c.STT.Whisper.Concurrency == 0 {
		c.STT.Whisper.Concurrency = 1
	}
	if c.STT.Google.Language == "" {
		c.STT.Google.Language = "en-US"
	}
	if c.Responder.Provider == "" {
		c.Responder.Provider = "echo"
	}
	if c.Responder.Timeout == 0 {
		c.Responder.Timeout = 60 * time.Second
	}
	if c.Responder.Gemini.Model == "" {
		c.Responder.Gemini.Model = "gemini-2.0-flash"
	}
	if c.Responder.Groq.BaseURL == "" {
		c.Responder.Groq.BaseURL = "https://api.groq.com/openai/v1"
	}
	if c.Responder.Groq.Model == "" {
		c.Responder.Groq.Model = "llama-3.3-70b-versatile"
	}
	if c.TTS.BaseURL == "" {
		c.TTS.BaseURL = "https://yarngpt.ai/api/v1"
	}
	if c.TTS.DefaultVoice == "" {
		c.TTS.DefaultVoice = "Idera"
	}
	if c.TTS.ResponseFormat == "" {
		c.TTS.ResponseFormat = "mp3"
	}
	if c.TTS.Timeout == 0 {
		c.TTS.Timeout = 30 * time.Second
	}
	if c.TTS.MaxRetries == 0 {
		c.TTS.MaxRetries = 3
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "filesystem"
	}
	if c.Store.Dir == "" {
		c.Store.Dir = "tmp_audio"
	}
	if c.Store.TTL == 0 {
		c.Store.TTL = time.Hour
	}
	if c.Store.MaxBytes == 0 {
		c.Store.MaxBytes = 256 << 20 // 256 MiB
	}
	if c.Store.SweepInterval == 0 {
		c.Store.SweepInterval = time.Minute
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("YARNGPT_API_KEY"); v != "" {
		c.TTS.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Responder.Gemini.APIKey = v
	}
	if v := os.Getenv("GROQ_API_KEY"); v != "" {
		c.Responder.Groq.APIKey = v
	}
	if v := os.Getenv("AUTH_SECRET"); v != "" {
		c.Auth.Secret = v
	}
	if v := os.Getenv("S3_ACCESS_KEY"); v != "" {
		c.Store.S3.AccessKey = v
	}
	if v := os.Getenv("S3_SECRET_KEY"); v != "" {
		c.Store.S3.SecretKey = v
	}
	if v := os.Getenv("PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil && port > 0 {
			c.Server.Port = port
		}
	}
}

// Validate checks every configuration section.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}
	if err := c.STT.Validate(); err != nil {
		return fmt.Errorf("stt config: %w", err)
	}
	if err := c.Responder.Validate(); err != nil {
		return fmt.Errorf("responder config: %w", err)
	}
	if err := c.TTS.Validate(); err != nil {
		return fmt.Errorf("tts config: %w", err)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}
	return nil
}

func (a *AudioConfig) Validate() error {
	if a.MaxUploadBytes < 1 {
		return fmt.Errorf("max_upload_bytes must be positive, got %d", a.MaxUploadBytes)
	}
	if a.SampleRate < 8000 {
		return fmt.Errorf("sample_rate must be at least 8000 Hz, got %d", a.SampleRate)
	}
	if a.Channels != 1 && a.Channels != 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", a.Channels)
	}
	return nil
}

func (s *STTConfig) Validate() error {
	switch s.Provider {
	case "whisper":
		if s.Whisper.ModelPath == "" {
			return fmt.Errorf("whisper model_path cannot be empty")
		}
		if s.Whisper.Concurrency < 1 {
			return fmt.Errorf("whisper concurrency must be at least 1, got %d", s.Whisper.Concurrency)
		}
	case "google":
		if s.Google.Language == "" {
			return fmt.Errorf("google language cannot be empty")
		}
	default:
		return fmt.Errorf("provider must be 'whisper' or 'google', got %q", s.Provider)
	}
	return nil
}

func (r *ResponderConfig) Validate() error {
	switch r.Provider {
	case "echo":
	case "gemini":
		if r.Gemini.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is not set")
		}
	case "groq":
		if r.Groq.APIKey == "" {
			return fmt.Errorf("GROQ_API_KEY is not set")
		}
	default:
		return fmt.Errorf("provider must be 'echo', 'gemini' or 'groq', got %q", r.Provider)
	}
	if r.Timeout < time.Second {
		return fmt.Errorf("timeout must be at least 1s, got %s", r.Timeout)
	}
	return nil
}

func (t *TTSConfig) Validate() error {
	if t.BaseURL == "" {
		return fmt.Errorf("base_url cannot be empty")
	}
	if t.DefaultVoice == "" {
		return fmt.Errorf("default_voice cannot be empty")
	}
	switch t.ResponseFormat {
	case "mp3", "wav", "opus", "flac":
	default:
		return fmt.Errorf("response_format must be mp3, wav, opus or flac, got %q", t.ResponseFormat)
	}
	if t.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1, got %d", t.MaxRetries)
	}
	return nil
}

func (s *StoreConfig) Validate() error {
	switch s.Backend {
	case "filesystem":
		if s.Dir == "" {
			return fmt.Errorf("dir cannot be empty")
		}
	case "s3":
		if s.S3.Endpoint == "" || s.S3.Bucket == "" {
			return fmt.Errorf("s3 endpoint and bucket cannot be empty")
		}
	default:
		return fmt.Errorf("backend must be 'filesystem' or 's3', got %q", s.Backend)
	}
	if s.TTL < time.Minute {
		return fmt.Errorf("ttl must be at least 1m, got %s", s.TTL)
	}
	if s.MaxBytes < 1 {
		return fmt.Errorf("max_bytes must be positive, got %d", s.MaxBytes)
	}
	return nil
}

func (l *LoggingConfig) Validate() error {
	switch l.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("level must be debug, info, warn or error, got %q", l.Level)
	}
}
