package judge

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	maxRetries     = 5
	initialBackoff = 15 * time.Second
	maxBackoff     = 2 * time.Minute
)

// CompleteWithRetry calls the provider with exponential backoff on rate limit
// and overload errors. Timeouts and other faults return immediately: a commit
// whose call timed out is picked up again on a later run, never re-attempted
// in a hot loop here.
func CompleteWithRetry(ctx context.Context, p Provider, req CompletionRequest) (*CompletionResponse, error) {
	backoff := initialBackoff

	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, err := p.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}

		if !retryable(err) {
			return nil, err
		}
		if attempt == maxRetries {
			return nil, fmt.Errorf("rate limited after %d retries: %w", maxRetries, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
	return nil, fmt.Errorf("unreachable")
}

func retryable(err error) bool {
	s := err.Error()
	return strings.Contains(s, "rate_limit") ||
		strings.Contains(s, "429") ||
		strings.Contains(s, "too many requests") ||
		strings.Contains(s, "overloaded")
}
