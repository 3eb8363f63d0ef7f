package apiclient

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"
)

const (
	maxRetries     = 2
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// RetryConfig holds retry configuration for idempotent reads. Submissions
// are never retried.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     maxRetries,
		InitialBackoff: initialBackoff,
		MaxBackoff:     maxBackoff,
	}
}

// shouldRetry reports whether a read that got statusCode is worth repeating.
func shouldRetry(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests: // 429
		return true
	case http.StatusBadGateway: // 502
		return true
	case http.StatusServiceUnavailable: // 503
		return true
	case http.StatusGatewayTimeout: // 504
		return true
	default:
		return false
	}
}

// calculateBackoff calculates exponential backoff duration
func calculateBackoff(attempt int, config *RetryConfig) time.Duration {
	backoff := float64(config.InitialBackoff) * math.Pow(2, float64(attempt))
	if backoff > float64(config.MaxBackoff) {
		backoff = float64(config.MaxBackoff)
	}
	return time.Duration(backoff)
}

// retryWithBackoff repeats reqFunc on transport errors and retryable
// statuses. The last response is returned as-is so the caller can classify
// it; only a final transport error is returned as an error.
func (c *Client) retryWithBackoff(ctx context.Context, reqFunc func() (*http.Response, error)) (*http.Response, error) {
	config := c.retry
	retries := config.MaxRetries
	if retries < 0 {
		retries = 0
	}
	var lastErr error

	for attempt := 0; attempt <= retries; attempt++ {
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, ctx.Err()
		default:
		}

		resp, err := reqFunc()
		if err != nil {
			if _, setup := err.(*setupError); setup {
				return nil, err
			}
			lastErr = err
		} else {
			if !shouldRetry(resp.StatusCode) || attempt == retries {
				return resp, nil
			}
			lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
			resp.Body.Close()
		}

		if attempt == retries {
			break
		}

		backoff := calculateBackoff(attempt, config)
		c.logger.WithContext(ctx).Warn().
			Int("attempt", attempt+1).
			Int("max_retries", retries).
			Dur("backoff", backoff).
			AnErr("cause", lastErr).
			Msg("request failed, retrying")

		select {
		case <-ctx.Done():
			return nil, lastErr
		case <-time.After(backoff):
		}
	}

	return nil, lastErr
}
