// Package config provides configuration loading for the xtox client.
// Supports YAML files, .env files, environment variables, and programmatic
// overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/spherical/xtox/internal/domain"
)

// Config holds all configuration for the xtox client.
type Config struct {
	Service       ServiceConfig       `yaml:"service"`
	Credentials   CredentialsConfig   `yaml:"credentials"`
	Document      DocumentConfig      `yaml:"document"`
	Audio         AudioConfig         `yaml:"audio"`
	Progress      ProgressConfig      `yaml:"progress"`
	Output        OutputConfig        `yaml:"output"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServiceConfig holds the conversion service endpoint and transport settings.
type ServiceConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	Retry   RetryConfig   `yaml:"retry"`
}

// RetryConfig controls retries of status polls and downloads.
type RetryConfig struct {
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// CredentialsConfig selects where the bearer token lives.
type CredentialsConfig struct {
	Driver    string      `yaml:"driver"` // memory, file or redis
	TokenFile string      `yaml:"token_file"`
	Redis     RedisConfig `yaml:"redis"`

	// Token comes from XTOX_AUTH_TOKEN only; it is never read from or
	// written to a config file.
	Token string `yaml:"-"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	URL      string        `yaml:"url"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Key      string        `yaml:"key"`
	TTL      time.Duration `yaml:"ttl"`
}

// DocumentConfig holds document pipeline settings.
type DocumentConfig struct {
	MaxFileSize int64 `yaml:"max_file_size"`
	AutoFix     bool  `yaml:"auto_fix"`
}

// AudioConfig holds audio pipeline settings.
type AudioConfig struct {
	MaxFileSize  int64  `yaml:"max_file_size"`
	TargetFormat string `yaml:"target_format"`
	Bitrate      string `yaml:"bitrate"`
	SampleRate   int    `yaml:"sample_rate"`
}

// ProgressConfig holds the simulated progress cadence.
type ProgressConfig struct {
	Step       int           `yaml:"step"`
	Interval   time.Duration `yaml:"interval"`
	Ceiling    int           `yaml:"ceiling"`
	ResetDelay time.Duration `yaml:"reset_delay"`
}

// OutputConfig controls where artifacts are written.
type OutputConfig struct {
	Dir       string `yaml:"dir"`
	Overwrite bool   `yaml:"overwrite"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads .env files (the working directory's .env when none are given),
// then the YAML file at path, then environment overrides.
func Load(path string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		_ = godotenv.Load() // Ignore error if .env doesn't exist
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}

		if cfg.Credentials.TokenFile != "" {
			cfg.Credentials.TokenFile = ResolveRelativePath(path, cfg.Credentials.TokenFile)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration pointing at a local development
// service.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			BaseURL: "http://localhost:8000/api",
			Timeout: 5 * time.Minute,
			Retry: RetryConfig{
				MaxRetries:     2,
				InitialBackoff: 500 * time.Millisecond,
				MaxBackoff:     5 * time.Second,
			},
		},
		Credentials: CredentialsConfig{
			Driver:    "file",
			TokenFile: defaultTokenFile(),
			Redis: RedisConfig{
				Addr: "localhost:6379",
				Key:  "xtox:auth_token",
			},
		},
		Document: DocumentConfig{
			MaxFileSize: domain.MaxDocumentSize,
		},
		Audio: AudioConfig{
			MaxFileSize:  domain.MaxAudioSize,
			TargetFormat: string(domain.FormatMP3),
			Bitrate:      string(domain.Bitrate192k),
		},
		Progress: ProgressConfig{
			Step:       10,
			Interval:   500 * time.Millisecond,
			Ceiling:    90,
			ResetDelay: time.Second,
		},
		Output: OutputConfig{
			Dir: ".",
		},
		Observability: ObservabilityConfig{
			LogLevel:  "warn",
			LogFormat: "console",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Service.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid service base_url: %q", c.Service.BaseURL)
	}

	if c.Service.Timeout <= 0 {
		return fmt.Errorf("service timeout must be positive")
	}

	if c.Service.Retry.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}

	switch c.Credentials.Driver {
	case "memory":
	case "file":
		if c.Credentials.TokenFile == "" {
			return fmt.Errorf("credentials driver file needs token_file")
		}
	case "redis":
		if c.Credentials.Redis.URL == "" && c.Credentials.Redis.Addr == "" {
			return fmt.Errorf("credentials driver redis needs url or addr")
		}
	default:
		return fmt.Errorf("invalid credentials driver: %s", c.Credentials.Driver)
	}

	if c.Document.MaxFileSize <= 0 {
		return fmt.Errorf("document max_file_size must be positive")
	}
	if c.Audio.MaxFileSize <= 0 {
		return fmt.Errorf("audio max_file_size must be positive")
	}

	if err := c.AudioDefaults().Validate(); err != nil {
		return fmt.Errorf("audio defaults: %w", err)
	}

	if c.Progress.Step <= 0 || c.Progress.Interval <= 0 {
		return fmt.Errorf("progress step and interval must be positive")
	}
	if c.Progress.Ceiling < 1 || c.Progress.Ceiling > 100 {
		return fmt.Errorf("progress ceiling must be between 1 and 100")
	}

	if f := c.Observability.LogFormat; f != "json" && f != "console" {
		return fmt.Errorf("invalid log format: %s", f)
	}

	return nil
}

// AudioDefaults returns the configured default audio options.
func (c *Config) AudioDefaults() domain.AudioOptions {
	return domain.AudioOptions{
		TargetFormat: domain.AudioFormat(strings.ToLower(c.Audio.TargetFormat)),
		Bitrate:      domain.Bitrate(strings.ToLower(c.Audio.Bitrate)),
		SampleRate:   c.Audio.SampleRate,
	}
}

// DocumentDefaults returns the configured default document options.
func (c *Config) DocumentDefaults() domain.DocumentOptions {
	return domain.DocumentOptions{AutoFix: c.Document.AutoFix}
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("BACKEND_URL"); v != "" {
		cfg.Service.BaseURL = strings.TrimRight(v, "/") + "/api"
	}

	// XTOX_API_BASE is the full API base and wins over BACKEND_URL.
	if v := os.Getenv("XTOX_API_BASE"); v != "" {
		cfg.Service.BaseURL = v
	}

	if v := os.Getenv("XTOX_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("XTOX_TIMEOUT: %w", err)
		}
		cfg.Service.Timeout = d
	}

	if v := os.Getenv("XTOX_AUTH_TOKEN"); v != "" {
		cfg.Credentials.Token = strings.TrimSpace(v)
	}

	if v := os.Getenv("XTOX_CREDENTIALS_DRIVER"); v != "" {
		cfg.Credentials.Driver = v
	}

	if v := os.Getenv("XTOX_TOKEN_FILE"); v != "" {
		cfg.Credentials.TokenFile = v
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Credentials.Driver = "redis"
		cfg.Credentials.Redis.URL = v
	}

	if v := os.Getenv("MAX_FILE_SIZE"); v != "" {
		n, err := parseSize("MAX_FILE_SIZE", v)
		if err != nil {
			return err
		}
		cfg.Document.MaxFileSize = n
	}

	if v := os.Getenv("MAX_AUDIO_FILE_SIZE"); v != "" {
		n, err := parseSize("MAX_AUDIO_FILE_SIZE", v)
		if err != nil {
			return err
		}
		cfg.Audio.MaxFileSize = n
	}

	if v := os.Getenv("XTOX_OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}

	return nil
}

func parseSize(name, v string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s: %w", name, errors.New("must be positive"))
	}
	return n, nil
}

// ResolveRelativePath resolves a path relative to the config file location.
func ResolveRelativePath(configPath, targetPath string) string {
	if filepath.IsAbs(targetPath) {
		return targetPath
	}
	configDir := filepath.Dir(configPath)
	return filepath.Join(configDir, targetPath)
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".xtox-token"
	}
	return filepath.Join(dir, "xtox", "token")
}
