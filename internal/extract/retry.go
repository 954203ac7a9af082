package extract

import (
	"context"
	"math"
	"time"

	"github.com/spherical/pdf2emails/internal/domain"
	"github.com/spherical/pdf2emails/internal/observability"
)

// RetryConfig holds retry configuration. MaxRetries of zero disables retries.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// calculateBackoff calculates exponential backoff duration
func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	// initialBackoff * 2^attempt
	backoff := float64(config.InitialBackoff) * math.Pow(2, float64(attempt))

	if config.MaxBackoff > 0 && backoff > float64(config.MaxBackoff) {
		backoff = float64(config.MaxBackoff)
	}

	return time.Duration(backoff)
}

// retryWithBackoff runs fn until it succeeds, fails with an error not marked
// temporary, or the retry budget is spent. The last error is returned.
func retryWithBackoff(ctx context.Context, config RetryConfig, logger *observability.Logger, op string, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil || !domain.IsTemporary(lastErr) || attempt >= config.MaxRetries {
			return lastErr
		}

		backoff := calculateBackoff(attempt, config)
		logger.Warn().
			Err(lastErr).
			Str("call", op).
			Int("attempt", attempt+1).
			Int("max_retries", config.MaxRetries).
			Dur("backoff", backoff).
			Msg("Call failed, retrying")

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}
}
