package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.GCloud.CredentialsFile = "/secrets/sa.json"
	cfg.GCloud.Bucket = "scans"
	return cfg
}

func TestDefaultConfig_ReferenceBehavior(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 1, cfg.Pipeline.Workers)
	assert.Equal(t, 0, cfg.Pipeline.Retry.MaxRetries)
	assert.False(t, cfg.Pipeline.SkipFailedPages)
	assert.False(t, cfg.Resilient())
	assert.Equal(t, DefaultObjectName, cfg.GCloud.ObjectName)
	assert.Equal(t, "none", cfg.Cache.Driver)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "missing credentials",
			mutate:  func(c *Config) { c.GCloud.CredentialsFile = "" },
			wantErr: "credentials",
		},
		{
			name:    "missing bucket",
			mutate:  func(c *Config) { c.GCloud.Bucket = "" },
			wantErr: "bucket",
		},
		{
			name: "tesseract needs no cloud settings",
			mutate: func(c *Config) {
				c.OCR.Provider = "tesseract"
				c.GCloud.CredentialsFile = ""
				c.GCloud.Bucket = ""
			},
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.OCR.Provider = "abbyy" },
			wantErr: "invalid ocr provider",
		},
		{
			name:    "unknown filter",
			mutate:  func(c *Config) { c.OCR.Filter = "regex" },
			wantErr: "invalid candidate filter",
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.Pipeline.Workers = 0 },
			wantErr: "workers",
		},
		{
			name:    "dpi out of range",
			mutate:  func(c *Config) { c.Render.DPI = 5000 },
			wantErr: "dpi",
		},
		{
			name:    "no timeout",
			mutate:  func(c *Config) { c.Pipeline.CallTimeout = 0 },
			wantErr: "call_timeout",
		},
		{
			name: "retries without backoff",
			mutate: func(c *Config) {
				c.Pipeline.Retry.MaxRetries = 2
				c.Pipeline.Retry.InitialBackoff = 0
			},
			wantErr: "initial_backoff",
		},
		{
			name:    "unknown cache driver",
			mutate:  func(c *Config) { c.Cache.Driver = "memcached" },
			wantErr: "invalid cache driver",
		},
		{
			name:    "empty object name",
			mutate:  func(c *Config) { c.GCloud.ObjectName = " " },
			wantErr: "object name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pdf2emails.yaml")
	content := `
gcloud:
  credentials_file: /secrets/sa.json
  bucket: scans
  cleanup: true
render:
  dpi: 200
pipeline:
  workers: 4
  call_timeout: 15s
  retry:
    max_retries: 3
    initial_backoff: 500ms
cache:
  driver: memory
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "scans", cfg.GCloud.Bucket)
	assert.True(t, cfg.GCloud.Cleanup)
	assert.Equal(t, float64(200), cfg.Render.DPI)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, 15*time.Second, cfg.Pipeline.CallTimeout)
	assert.Equal(t, 3, cfg.Pipeline.Retry.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Pipeline.Retry.InitialBackoff)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.Retry.MaxBackoff)
	assert.Equal(t, "memory", cfg.Cache.Driver)
	assert.Equal(t, DefaultObjectName, cfg.GCloud.ObjectName)
	assert.True(t, cfg.Resilient())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GCLOUD_CREDENTIALS_FILE", "/env/sa.json")
	t.Setenv("GCS_BUCKET", "env-bucket")
	t.Setenv("PDF2EMAILS_WORKERS", "3")
	t.Setenv("REDIS_URL", "redis://cache:6379")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/env/sa.json", cfg.GCloud.CredentialsFile)
	assert.Equal(t, "env-bucket", cfg.GCloud.Bucket)
	assert.Equal(t, 3, cfg.Pipeline.Workers)
	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.Equal(t, "cache:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
}

func TestLoad_RedisURL(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://:s3cret@cache.internal:6380/2")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.Equal(t, "cache.internal:6380", cfg.Cache.Redis.Addr)
	assert.Equal(t, "s3cret", cfg.Cache.Redis.Password)
	assert.Equal(t, 2, cfg.Cache.Redis.DB)
}

func TestLoad_InvalidRedisURL(t *testing.T) {
	t.Setenv("REDIS_URL", "http://cache:6379")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_URL")
}
