package pipeline

import (
	"github.com/wonny/aegis-swing/internal/contracts"
	"github.com/wonny/aegis-swing/internal/strategyconfig"
	"github.com/wonny/aegis-swing/pkg/retry"
)

// PolicyFrom reads the collaborator retry policy from the pipeline config.
// DataUnavailable / RateLimited 만 재시도
func PolicyFrom(cfg strategyconfig.Pipeline) retry.Policy {
	return retry.Policy{
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		Retryable:      contracts.IsRetryable,
	}
}
