// Package config provides configuration loading for pdf2emails.
// Supports YAML files, environment variables, and command-line overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// DefaultObjectName is the storage object every page image is written to.
const DefaultObjectName = "pdf2emails-current-image.png"

// Config holds all configuration for a run.
type Config struct {
	GCloud        GCloudConfig        `yaml:"gcloud"`
	Render        RenderConfig        `yaml:"render"`
	OCR           OCRConfig           `yaml:"ocr"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Cache         CacheConfig         `yaml:"cache"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// GCloudConfig holds credentials and storage settings.
type GCloudConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	Bucket          string `yaml:"bucket"`
	ObjectName      string `yaml:"object_name"`
	// Cleanup deletes the uploaded page objects once the run ends.
	Cleanup bool `yaml:"cleanup"`
	// Endpoints override the Google API base URLs (emulators, tests).
	StorageEndpoint string `yaml:"storage_endpoint"`
	VisionEndpoint  string `yaml:"vision_endpoint"`
}

// RenderConfig holds rasterization settings.
type RenderConfig struct {
	DPI float64 `yaml:"dpi"`
}

// OCRConfig holds recognizer settings.
type OCRConfig struct {
	Provider          string   `yaml:"provider"` // vision or tesseract
	Languages         []string `yaml:"languages"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
	Filter            string   `yaml:"filter"` // first-annotation or dense-blocks
}

// PipelineConfig holds driver settings.
type PipelineConfig struct {
	Workers     int           `yaml:"workers"`
	CallTimeout time.Duration `yaml:"call_timeout"`
	Retry       RetryConfig   `yaml:"retry"`
	// SkipFailedPages records failing pages and carries on instead of
	// aborting the run.
	SkipFailedPages bool `yaml:"skip_failed_pages"`
}

// RetryConfig holds retry settings for transient transport and OCR errors.
// MaxRetries of zero disables retries.
type RetryConfig struct {
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// CacheConfig holds OCR result cache settings.
type CacheConfig struct {
	Driver     string        `yaml:"driver"` // none, memory or redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Prefix   string `yaml:"prefix"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads an optional .env file and an optional YAML file, then applies
// environment overrides. Validation is left to the caller so that flag
// overrides can be applied first.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // .env is optional

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DefaultConfig returns the reference configuration: sequential pages,
// fail-fast, no retries, no cache.
func DefaultConfig() *Config {
	return &Config{
		GCloud: GCloudConfig{
			ObjectName: DefaultObjectName,
		},
		Render: RenderConfig{
			DPI: 300,
		},
		OCR: OCRConfig{
			Provider: "vision",
			Filter:   "first-annotation",
		},
		Pipeline: PipelineConfig{
			Workers:     1,
			CallTimeout: 60 * time.Second,
			Retry: RetryConfig{
				MaxRetries:     0,
				InitialBackoff: 1 * time.Second,
				MaxBackoff:     30 * time.Second,
			},
		},
		Cache: CacheConfig{
			Driver:     "none",
			TTL:        24 * time.Hour,
			MaxEntries: 1000,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
				Prefix:   "pdf2emails:",
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "console",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.OCR.Provider {
	case "vision":
		if c.GCloud.CredentialsFile == "" && c.GCloud.VisionEndpoint == "" {
			return fmt.Errorf("gcloud credentials file is required for the vision provider")
		}
		if c.GCloud.Bucket == "" {
			return fmt.Errorf("storage bucket is required for the vision provider")
		}
	case "tesseract":
	default:
		return fmt.Errorf("invalid ocr provider: %s", c.OCR.Provider)
	}

	if c.OCR.Filter != "first-annotation" && c.OCR.Filter != "dense-blocks" {
		return fmt.Errorf("invalid candidate filter: %s", c.OCR.Filter)
	}

	if c.OCR.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative")
	}

	if strings.TrimSpace(c.GCloud.ObjectName) == "" {
		return fmt.Errorf("object name must not be empty")
	}

	if c.Render.DPI < 36 || c.Render.DPI > 1200 {
		return fmt.Errorf("render dpi must be between 36 and 1200, got %v", c.Render.DPI)
	}

	if c.Pipeline.Workers < 1 || c.Pipeline.Workers > 64 {
		return fmt.Errorf("workers must be between 1 and 64, got %d", c.Pipeline.Workers)
	}

	if c.Pipeline.CallTimeout <= 0 {
		return fmt.Errorf("call_timeout must be positive")
	}

	if c.Pipeline.Retry.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}

	if c.Pipeline.Retry.MaxRetries > 0 && c.Pipeline.Retry.InitialBackoff <= 0 {
		return fmt.Errorf("initial_backoff must be positive when retries are enabled")
	}

	switch c.Cache.Driver {
	case "none", "memory":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("redis addr is required for the redis cache")
		}
	default:
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	return nil
}

// Resilient reports whether any opt-in deviation from fail-fast is enabled.
func (c *Config) Resilient() bool {
	return c.Pipeline.Retry.MaxRetries > 0 || c.Pipeline.SkipFailedPages
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("GCLOUD_CREDENTIALS_FILE"); v != "" {
		cfg.GCloud.CredentialsFile = v
	}

	if v := os.Getenv("GCS_BUCKET"); v != "" {
		cfg.GCloud.Bucket = v
	}

	if v := os.Getenv("OCR_PROVIDER"); v != "" {
		cfg.OCR.Provider = v
	}

	if v := os.Getenv("PDF2EMAILS_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.Workers = n
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		opt, err := redis.ParseURL(v)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = opt.Addr
		cfg.Cache.Redis.Password = opt.Password
		cfg.Cache.Redis.DB = opt.DB
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}

	return nil
}
