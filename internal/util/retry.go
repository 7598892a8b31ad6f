package util

import (
	"context"
	"fmt"
	"time"
)

// Retry calls fn up to maxAttempts times with exponential backoff starting
// at baseDelay. It returns nil on the first successful call; once every
// attempt has failed it returns the last error annotated with the attempt
// count. Context cancellation is honoured both between retries and inside fn
// when fn respects it.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func(context.Context) error) error {
	var err error
	delay := baseDelay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}

		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return fmt.Errorf("after %d attempts: %w", maxAttempts, err)
}
