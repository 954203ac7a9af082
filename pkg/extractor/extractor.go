// Package extractor is the public entry point for pulling email addresses
// out of scanned PDF documents.
package extractor

import (
	"context"
	"fmt"

	"github.com/spherical/pdf2emails/internal/cache"
	"github.com/spherical/pdf2emails/internal/config"
	"github.com/spherical/pdf2emails/internal/domain"
	"github.com/spherical/pdf2emails/internal/extract"
	"github.com/spherical/pdf2emails/internal/gcloud"
	"github.com/spherical/pdf2emails/internal/imaging"
	"github.com/spherical/pdf2emails/internal/ocr"
	"github.com/spherical/pdf2emails/internal/observability"
	"github.com/spherical/pdf2emails/internal/pdf"
	"github.com/spherical/pdf2emails/internal/storage"
)

// Re-export event and result types for public API
type (
	StreamEvent   = domain.StreamEvent
	EventType     = domain.EventType
	PagePayload   = domain.PagePayload
	RunResult     = domain.RunResult
	PipelineError = domain.PipelineError
	Config        = config.Config
)

// Event type constants
const (
	EventStart          = domain.EventStart
	EventPageProcessing = domain.EventPageProcessing
	EventPageComplete   = domain.EventPageComplete
	EventPageSkipped    = domain.EventPageSkipped
	EventError          = domain.EventError
	EventComplete       = domain.EventComplete
)

// localBucket names the in-memory bucket used when no object store is
// configured
const localBucket = "local"

// Client is the main entry point for the extractor library
type Client struct {
	service *extract.Service
	cache   cache.Client
}

// Option customizes a Client
type Option func(*clientOptions)

type clientOptions struct {
	logger     *observability.Logger
	uploader   domain.Uploader
	recognizer domain.TextRecognizer
}

// WithLogger sets the logger used by every component
func WithLogger(logger *observability.Logger) Option {
	return func(o *clientOptions) { o.logger = logger }
}

// WithUploader replaces the configured object store
func WithUploader(u domain.Uploader) Option {
	return func(o *clientOptions) { o.uploader = u }
}

// WithRecognizer replaces the configured OCR provider
func WithRecognizer(r domain.TextRecognizer) Option {
	return func(o *clientOptions) { o.recognizer = r }
}

// NewClient loads configuration from the environment and an optional .env
// file and creates a client
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, domain.ConfigError("failed to load configuration", err)
	}
	return NewClientWithConfig(ctx, cfg, opts...)
}

// NewClientWithConfig creates a client with custom configuration
func NewClientWithConfig(ctx context.Context, cfg *Config, opts ...Option) (*Client, error) {
	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, domain.ConfigError("invalid configuration", err)
	}

	logger := o.logger
	if logger == nil {
		logger = observability.NewLogger(observability.LogConfig{
			Level:  cfg.Observability.LogLevel,
			Format: cfg.Observability.LogFormat,
		})
	}

	filter, err := extract.NewFilter(cfg.OCR.Filter)
	if err != nil {
		return nil, err
	}

	bucket := cfg.GCloud.Bucket
	uploader := o.uploader
	if uploader == nil {
		uploader, err = newUploader(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
	}
	if _, ok := uploader.(*storage.MemoryUploader); ok && bucket == "" {
		bucket = localBucket
	}

	c := &Client{}

	recognizer := o.recognizer
	if recognizer == nil {
		recognizer, err = ocr.New(ctx, cfg.OCR.Provider, ocr.Options{
			Credentials: gcloud.Credentials{
				CredentialsFile: cfg.GCloud.CredentialsFile,
				Endpoint:        cfg.GCloud.VisionEndpoint,
			},
			Languages: cfg.OCR.Languages,
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}

		c.cache, err = newCache(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if c.cache != nil {
			recognizer = ocr.NewCachedRecognizer(recognizer, c.cache, cfg.OCR.Provider, cfg.Cache.TTL, logger)
		}
	}

	c.service = extract.NewService(
		pdf.NewOpener(cfg.Render.DPI, logger),
		imaging.NewPNGEncoder(),
		uploader,
		recognizer,
		filter,
		extract.Options{
			Bucket:      bucket,
			ObjectName:  cfg.GCloud.ObjectName,
			Workers:     cfg.Pipeline.Workers,
			CallTimeout: cfg.Pipeline.CallTimeout,
			Retry: extract.RetryConfig{
				MaxRetries:     cfg.Pipeline.Retry.MaxRetries,
				InitialBackoff: cfg.Pipeline.Retry.InitialBackoff,
				MaxBackoff:     cfg.Pipeline.Retry.MaxBackoff,
			},
			SkipFailedPages:   cfg.Pipeline.SkipFailedPages,
			RequestsPerSecond: cfg.OCR.RequestsPerSecond,
			Cleanup:           cfg.GCloud.Cleanup,
		},
		logger,
	)

	return c, nil
}

// newUploader picks the object store for the provider. Vision reads images
// from Cloud Storage; local providers only need the bytes.
func newUploader(ctx context.Context, cfg *Config, logger *observability.Logger) (domain.Uploader, error) {
	if cfg.OCR.Provider != "vision" {
		return storage.NewMemoryUploader(), nil
	}
	return storage.NewGCSUploader(ctx, gcloud.Credentials{
		CredentialsFile: cfg.GCloud.CredentialsFile,
		Endpoint:        cfg.GCloud.StorageEndpoint,
	}, logger)
}

func newCache(ctx context.Context, cfg *Config) (cache.Client, error) {
	switch cfg.Cache.Driver {
	case "memory":
		return cache.NewMemoryClient(cfg.Cache.MaxEntries), nil
	case "redis":
		rc, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			PoolSize: cfg.Cache.Redis.PoolSize,
			Prefix:   cfg.Cache.Redis.Prefix,
		})
		if err != nil {
			return nil, domain.ConfigError("failed to connect to redis cache", err)
		}
		return rc, nil
	default:
		return nil, nil
	}
}

// Run extracts the sorted unique email candidates of the document. Events
// are sent to eventCh when it is non-nil.
func (c *Client) Run(ctx context.Context, pdfPath string, eventCh chan<- StreamEvent) (*RunResult, error) {
	return c.service.Run(ctx, pdfPath, eventCh)
}

// Process runs the extraction in the background. The returned event channel
// is closed when the run ends; the result channel then yields exactly one
// outcome. Input errors, a missing file included, arrive as the outcome.
func (c *Client) Process(ctx context.Context, pdfPath string) (<-chan StreamEvent, <-chan Outcome, error) {
	eventCh := make(chan StreamEvent, 100)
	outCh := make(chan Outcome, 1)

	go func() {
		defer close(outCh)
		result, err := c.service.Run(ctx, pdfPath, eventCh)
		close(eventCh)
		outCh <- Outcome{Result: result, Err: err}
	}()

	return eventCh, outCh, nil
}

// Outcome is the final result of a background run
type Outcome struct {
	Result *RunResult
	Err    error
}

// Close releases the OCR cache connection
func (c *Client) Close() error {
	if c.cache == nil {
		return nil
	}
	if err := c.cache.Close(); err != nil {
		return fmt.Errorf("close cache: %w", err)
	}
	return nil
}
