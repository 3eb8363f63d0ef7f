package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/xtox/internal/domain"
)

// clearEnv unsets every variable Load looks at for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"BACKEND_URL", "XTOX_API_BASE", "XTOX_TIMEOUT", "XTOX_AUTH_TOKEN",
		"XTOX_CREDENTIALS_DRIVER", "XTOX_TOKEN_FILE", "REDIS_URL",
		"MAX_FILE_SIZE", "MAX_AUDIO_FILE_SIZE", "XTOX_OUTPUT_DIR",
		"LOG_LEVEL", "LOG_FORMAT",
	} {
		if v, ok := os.LookupEnv(k); ok {
			require.NoError(t, os.Unsetenv(k))
			t.Cleanup(func() { os.Setenv(k, v) })
		}
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5*time.Minute, cfg.Service.Timeout)
	assert.Equal(t, domain.MaxDocumentSize, cfg.Document.MaxFileSize)
	assert.Equal(t, domain.MaxAudioSize, cfg.Audio.MaxFileSize)
	assert.Equal(t, domain.DefaultAudioOptions(), cfg.AudioDefaults())
	assert.False(t, cfg.DocumentDefaults().AutoFix)
	assert.Equal(t, 90, cfg.Progress.Ceiling)
}

func TestLoad_YAML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "xtox.yaml", `
service:
  base_url: https://convert.example.com/api
  timeout: 90s
  retry:
    max_retries: 4
credentials:
  driver: file
  token_file: secrets/token
audio:
  target_format: WAV
  bitrate: 256k
  sample_rate: 44100
progress:
  interval: 250ms
observability:
  log_format: json
`)

	cfg, err := Load(path, writeFile(t, ".env", ""))
	require.NoError(t, err)

	assert.Equal(t, "https://convert.example.com/api", cfg.Service.BaseURL)
	assert.Equal(t, 90*time.Second, cfg.Service.Timeout)
	assert.Equal(t, 4, cfg.Service.Retry.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Service.Retry.InitialBackoff)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "secrets", "token"), cfg.Credentials.TokenFile)
	assert.Equal(t, domain.AudioOptions{TargetFormat: domain.FormatWAV, Bitrate: domain.Bitrate256k, SampleRate: 44100}, cfg.AudioDefaults())
	assert.Equal(t, 250*time.Millisecond, cfg.Progress.Interval)
	assert.Equal(t, 10, cfg.Progress.Step)
	assert.Equal(t, "json", cfg.Observability.LogFormat)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("BACKEND_URL", "http://backend:8000/")
	t.Setenv("XTOX_AUTH_TOKEN", " secret ")
	t.Setenv("MAX_FILE_SIZE", "2097152")
	t.Setenv("MAX_AUDIO_FILE_SIZE", "1048576")
	t.Setenv("REDIS_URL", "redis://cache:6379/2")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("XTOX_OUTPUT_DIR", "/tmp/out")

	cfg, err := Load("", writeFile(t, ".env", ""))
	require.NoError(t, err)

	assert.Equal(t, "http://backend:8000/api", cfg.Service.BaseURL)
	assert.Equal(t, "secret", cfg.Credentials.Token)
	assert.Equal(t, int64(2097152), cfg.Document.MaxFileSize)
	assert.Equal(t, int64(1048576), cfg.Audio.MaxFileSize)
	assert.Equal(t, "redis", cfg.Credentials.Driver)
	assert.Equal(t, "redis://cache:6379/2", cfg.Credentials.Redis.URL)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	assert.Equal(t, "/tmp/out", cfg.Output.Dir)
}

func TestLoad_APIBaseWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("BACKEND_URL", "http://backend:8000")
	t.Setenv("XTOX_API_BASE", "http://gateway/v2")

	cfg, err := Load("", writeFile(t, ".env", ""))
	require.NoError(t, err)
	assert.Equal(t, "http://gateway/v2", cfg.Service.BaseURL)
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	env := writeFile(t, ".env", "BACKEND_URL=http://from-dotenv:9000\n")
	t.Cleanup(func() { os.Unsetenv("BACKEND_URL") })

	cfg, err := Load("", env)
	require.NoError(t, err)
	assert.Equal(t, "http://from-dotenv:9000/api", cfg.Service.BaseURL)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)
	empty := writeFile(t, ".env", "")

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), empty)
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.yaml", "service: ["), empty)
	assert.Error(t, err)

	_, err = Load("", filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)

	t.Setenv("MAX_FILE_SIZE", "ten")
	_, err = Load("", empty)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative base url", func(c *Config) { c.Service.BaseURL = "/api" }},
		{"ftp base url", func(c *Config) { c.Service.BaseURL = "ftp://host/api" }},
		{"zero timeout", func(c *Config) { c.Service.Timeout = 0 }},
		{"negative retries", func(c *Config) { c.Service.Retry.MaxRetries = -1 }},
		{"unknown driver", func(c *Config) { c.Credentials.Driver = "vault" }},
		{"file without path", func(c *Config) { c.Credentials.TokenFile = "" }},
		{"redis without address", func(c *Config) {
			c.Credentials.Driver = "redis"
			c.Credentials.Redis.Addr = ""
		}},
		{"zero document size", func(c *Config) { c.Document.MaxFileSize = 0 }},
		{"zero audio size", func(c *Config) { c.Audio.MaxFileSize = 0 }},
		{"bad bitrate", func(c *Config) { c.Audio.Bitrate = "64k" }},
		{"bad sample rate", func(c *Config) { c.Audio.SampleRate = 500 }},
		{"ceiling over 100", func(c *Config) { c.Progress.Ceiling = 101 }},
		{"zero step", func(c *Config) { c.Progress.Step = 0 }},
		{"bad log format", func(c *Config) { c.Observability.LogFormat = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestResolveRelativePath(t *testing.T) {
	assert.Equal(t, "/etc/xtox/token", ResolveRelativePath("/etc/xtox/config.yaml", "token"))
	assert.Equal(t, "/abs/token", ResolveRelativePath("/etc/xtox/config.yaml", "/abs/token"))
}
