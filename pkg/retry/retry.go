package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/wonny/aegis-swing/pkg/logger"
)

// Policy bounds a retry loop: exponential backoff with a max attempt count.
// 무한 재시도 금지
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Retryable decides which errors are retried (nil = all)
	Retryable func(error) bool
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialBackoff
	b.MaxInterval = p.MaxBackoff
	b.MaxElapsedTime = 0 // attempts 로만 제한

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// Do runs fn until it succeeds, fails permanently or the attempts run out.
// The last error is returned on exhaustion.
func Do[T any](ctx context.Context, p Policy, log *logger.Logger, op string, fn func(context.Context) (T, error)) (T, error) {
	attempt := 0
	operation := func() (T, error) {
		attempt++
		v, err := fn(ctx)
		if err != nil && p.Retryable != nil && !p.Retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}
	notify := func(err error, wait time.Duration) {
		log.WithFields(map[string]interface{}{
			"op":      op,
			"attempt": attempt,
			"wait":    wait.String(),
			"error":   err.Error(),
		}).Warn("Retrying call")
	}
	return backoff.RetryNotifyWithData(operation, p.backOff(ctx), notify)
}
