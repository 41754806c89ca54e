// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port       int           `yaml:"port"`
	BaseURL    string        `yaml:"base_url"` // public address, used to build provider callback URLs
	JWTSecret  string        `yaml:"jwt_secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type SunoConfig struct {
	APIKey         string `yaml:"api_key"` // fallback; a stored setting wins
	BaseURL        string `yaml:"base_url"`
	DefaultModel   string `yaml:"default_model"`
	CreditsPerSong int    `yaml:"credits_per_song"` // fallback price
}

type AIConfig struct {
	Provider        string `yaml:"provider"` // openai | anthropic | gemini
	APIKey          string `yaml:"api_key"`
	Model           string `yaml:"model"`
	GeminiKey       string `yaml:"gemini_key"` // transcription
	MaxPromptTokens int    `yaml:"max_prompt_tokens"`
}

type MediaConfig struct {
	FFmpegPath     string `yaml:"ffmpeg_path"`
	YtdlpPath      string `yaml:"ytdlp_path"`
	Dir            string `yaml:"dir"` // local storage for uploads and processed audio
	MaxUploadMB    int    `yaml:"max_upload_mb"`
	MaxSourceSecs  int    `yaml:"max_source_secs"` // provider rejects longer source audio
	PublicPathBase string `yaml:"public_path_base"`
}

type SignupConfig struct {
	DefaultCredits int `yaml:"default_credits"`
}

type PollerConfig struct {
	Interval time.Duration `yaml:"interval"`
	Batch    int           `yaml:"batch"`
	Workers  int           `yaml:"workers"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Suno     SunoConfig     `yaml:"suno"`
	AI       AIConfig       `yaml:"ai"`
	Media    MediaConfig    `yaml:"media"`
	Signup   SignupConfig   `yaml:"signup"`
	Poller   PollerConfig   `yaml:"poller"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.SessionTTL <= 0 {
		cfg.Server.SessionTTL = 12 * time.Hour
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Suno.BaseURL == "" {
		cfg.Suno.BaseURL = "https://api.kie.ai"
	}
	if cfg.Suno.DefaultModel == "" {
		cfg.Suno.DefaultModel = "V5"
	}
	if cfg.Suno.CreditsPerSong <= 0 {
		cfg.Suno.CreditsPerSong = 1
	}
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "openai"
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = "gpt-4o-mini"
	}
	if cfg.AI.MaxPromptTokens <= 0 {
		cfg.AI.MaxPromptTokens = 4096
	}
	if cfg.Media.FFmpegPath == "" {
		cfg.Media.FFmpegPath = "ffmpeg"
	}
	if cfg.Media.YtdlpPath == "" {
		cfg.Media.YtdlpPath = "yt-dlp"
	}
	if cfg.Media.Dir == "" {
		cfg.Media.Dir = "data/media"
	}
	if cfg.Media.MaxUploadMB <= 0 {
		cfg.Media.MaxUploadMB = 50
	}
	if cfg.Media.MaxSourceSecs <= 0 {
		cfg.Media.MaxSourceSecs = 480
	}
	if cfg.Media.PublicPathBase == "" {
		cfg.Media.PublicPathBase = "/media"
	}
	if cfg.Signup.DefaultCredits < 0 {
		cfg.Signup.DefaultCredits = 0
	}
	if cfg.Poller.Interval <= 0 {
		cfg.Poller.Interval = 30 * time.Second
	}
	if cfg.Poller.Batch <= 0 {
		cfg.Poller.Batch = 20
	}
	if cfg.Poller.Workers <= 0 {
		cfg.Poller.Workers = 4
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Server.JWTSecret == "" {
		return nil, errors.New("server.jwt_secret is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
