package contracts

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error taxonomy
// ⭐ SSOT: 에러 분류는 여기서만. 호출부는 errors.Is 로 판별
// =============================================================================

var (
	// ErrDataUnavailable is retryable with a bounded backoff
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrRateLimited is a retryable DataUnavailable raised by market data providers
	ErrRateLimited = fmt.Errorf("%w: rate limited", ErrDataUnavailable)

	// ErrImmutableState is a sequencing error: write to a frozen week
	ErrImmutableState = errors.New("immutable state violation")

	// ErrBrokerRejection means the order was not placed; never retried blindly
	ErrBrokerRejection = errors.New("broker rejection")

	// ErrConfiguration is fatal at startup
	ErrConfiguration = errors.New("configuration error")

	// ErrNotFound is returned by stores for unknown keys
	ErrNotFound = errors.New("not found")
)

// DataUnavailable wraps a collaborator failure as retryable
func DataUnavailable(op string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrDataUnavailable, op)
	}
	if errors.Is(err, ErrDataUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrDataUnavailable, op, err)
}

// ImmutableStateViolation reports a write attempt on a frozen week
func ImmutableStateViolation(week WeekKey) error {
	return fmt.Errorf("%w: week %s is frozen", ErrImmutableState, week)
}

// BrokerRejection wraps a broker refusal
func BrokerRejection(symbol, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrBrokerRejection, symbol, reason)
}

// IsRetryable reports whether a bounded retry may help
func IsRetryable(err error) bool {
	return errors.Is(err, ErrDataUnavailable)
}
