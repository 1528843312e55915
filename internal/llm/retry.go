package llm

import (
	"context"
	"time"
)

// RetryPolicy bounds a generation call: each attempt gets its own deadline,
// and transient failures are retried with exponential backoff. Retries is the
// number of attempts after the first.
type RetryPolicy struct {
	Timeout time.Duration
	Retries int
	Backoff time.Duration
}

// GenerateWithRetry calls client.Generate under the policy. It returns the
// last error once attempts are exhausted; the parent context cancels the
// whole loop.
func GenerateWithRetry(ctx context.Context, client Client, prompt string, opts GenerateOptions, policy RetryPolicy) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= policy.Retries; attempt++ {
		if attempt > 0 && policy.Backoff > 0 {
			backoff := policy.Backoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		attemptCtx := ctx
		var cancel context.CancelFunc
		if policy.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, policy.Timeout)
		}

		answer, err := client.Generate(attemptCtx, prompt, opts)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return answer, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}

	return "", lastErr
}
