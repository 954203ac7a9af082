package ocr

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/spherical/pdf2emails/internal/cache"
	"github.com/spherical/pdf2emails/internal/domain"
	"github.com/spherical/pdf2emails/internal/observability"
)

// CachedRecognizer memoizes annotations by image content. Cache failures are
// logged and never fail recognition.
type CachedRecognizer struct {
	next     domain.TextRecognizer
	cache    cache.Client
	provider string
	ttl      time.Duration
	logger   *observability.Logger
}

// NewCachedRecognizer wraps next. provider namespaces the keys so results
// from different engines never mix.
func NewCachedRecognizer(next domain.TextRecognizer, c cache.Client, provider string, ttl time.Duration, logger *observability.Logger) *CachedRecognizer {
	if logger == nil {
		logger = observability.Nop()
	}
	return &CachedRecognizer{
		next:     next,
		cache:    c,
		provider: provider,
		ttl:      ttl,
		logger:   logger.WithOperation("ocr_cache"),
	}
}

// Recognize returns cached annotations for identical image bytes, calling the
// wrapped recognizer on a miss
func (c *CachedRecognizer) Recognize(ctx context.Context, image domain.ImageRef) ([]domain.TextAnnotation, error) {
	if len(image.Data) == 0 {
		return c.next.Recognize(ctx, image)
	}

	key := c.Key(image.Data)

	if raw, err := c.cache.Get(ctx, key); err == nil {
		var annotations []domain.TextAnnotation
		if err := json.Unmarshal(raw, &annotations); err == nil {
			c.logger.Debug().Int("page", image.PageIndex+1).Msg("OCR cache hit")
			return annotations, nil
		}
		c.logger.Warn().Str("key", key).Msg("Discarding undecodable cache entry")
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		c.logger.Warn().Err(err).Msg("OCR cache read failed")
	}

	annotations, err := c.next.Recognize(ctx, image)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(annotations); err == nil {
		if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
			c.logger.Warn().Err(err).Msg("OCR cache write failed")
		}
	}

	return annotations, nil
}

// Key derives the cache key for image bytes
func (c *CachedRecognizer) Key(data []byte) string {
	sum := sha256.Sum256(data)
	return "ocr:" + c.provider + ":" + hex.EncodeToString(sum[:])
}
