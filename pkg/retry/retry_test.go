package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-swing/pkg/logger"
)

var (
	errTransient = errors.New("transient")
	errFatal     = errors.New("fatal")
)

var fast = Policy{
	MaxAttempts:    3,
	InitialBackoff: time.Millisecond,
	MaxBackoff:     2 * time.Millisecond,
	Retryable:      func(err error) bool { return errors.Is(err, errTransient) },
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), fast, logger.NewNop(), "quote", func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errTransient
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 3, calls)
}

func TestDoStopsAfterMaxAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fast, logger.NewNop(), "history", func(context.Context) (int, error) {
		calls++
		return 0, errTransient
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errTransient))
	assert.Equal(t, 3, calls)
}

func TestDoDoesNotRetryPermanentErrors(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fast, logger.NewNop(), "order", func(context.Context) (int, error) {
		calls++
		return 0, errFatal
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errFatal))
	assert.Equal(t, 1, calls)
}

func TestDoRetriesEverythingWithoutClassifier(t *testing.T) {
	p := fast
	p.Retryable = nil
	calls := 0
	_, _ = Do(context.Background(), p, logger.NewNop(), "any", func(context.Context) (int, error) {
		calls++
		return 0, errFatal
	})
	assert.Equal(t, 3, calls)
}

func TestDoHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	slow := Policy{MaxAttempts: 10, InitialBackoff: time.Hour, MaxBackoff: time.Hour}
	calls := 0
	_, err := Do(ctx, slow, logger.NewNop(), "instruments", func(context.Context) (int, error) {
		calls++
		return 0, errTransient
	})
	require.Error(t, err)
	assert.LessOrEqual(t, calls, 1)
}
