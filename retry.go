package flowcanvas

import (
	"errors"
	"fmt"
	"time"
)

// DefaultSaveMaxBackoff caps the delay between save attempts derived from a
// Config.
const DefaultSaveMaxBackoff = 5 * time.Second

// SaveRetryBuilder assembles the policy the syncer applies when a save
// round-trip fails. Mistakes are collected and reported by Build.
//
//	p, err := SaveRetry(3).Backoff(100*time.Millisecond, 2*time.Second).Build()
type SaveRetryBuilder struct {
	policy RetryPolicy
}

// SaveRetry starts a policy allowing attempts saves in total, the first
// one included.
func SaveRetry(attempts int) SaveRetryBuilder {
	return SaveRetryBuilder{policy: RetryPolicy{MaxAttempts: attempts, BackoffMultiplier: 2}}
}

// SaveRetryFromConfig starts from the save settings of cfg: SaveMaxAttempts
// attempts, doubling from SaveBackoff up to DefaultSaveMaxBackoff.
func SaveRetryFromConfig(cfg Config) SaveRetryBuilder {
	return SaveRetry(cfg.SaveMaxAttempts).Backoff(cfg.SaveBackoff, DefaultSaveMaxBackoff)
}

// Backoff doubles the wait after every failed save, starting at initial and
// capped at max. A zero max means no cap.
func (b SaveRetryBuilder) Backoff(initial, max time.Duration) SaveRetryBuilder {
	b.policy.InitialBackoff = initial
	b.policy.MaxBackoff = max
	b.policy.BackoffMultiplier = 2
	return b
}

// Growth replaces the backoff multiplier. It must be at least 1.
func (b SaveRetryBuilder) Growth(multiplier float64) SaveRetryBuilder {
	b.policy.BackoffMultiplier = multiplier
	return b
}

// Constant waits delay before every retry.
func (b SaveRetryBuilder) Constant(delay time.Duration) SaveRetryBuilder {
	b.policy.InitialBackoff = delay
	b.policy.MaxBackoff = delay
	b.policy.BackoffMultiplier = 1
	return b
}

// NoWait retries a failed save right away.
func (b SaveRetryBuilder) NoWait() SaveRetryBuilder {
	b.policy.InitialBackoff = 0
	b.policy.MaxBackoff = 0
	b.policy.BackoffMultiplier = 1
	return b
}

// Build validates the policy.
func (b SaveRetryBuilder) Build() (RetryPolicy, error) {
	if err := validateSaveRetry(b.policy); err != nil {
		return RetryPolicy{}, err
	}
	return b.policy, nil
}

// MustBuild is Build for policies known to be valid; it panics otherwise.
func (b SaveRetryBuilder) MustBuild() RetryPolicy {
	p, err := b.Build()
	if err != nil {
		panic(err)
	}
	return p
}

func validateSaveRetry(p RetryPolicy) error {
	var errs []error
	if p.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("save retry: attempts must be at least 1, got %d", p.MaxAttempts))
	}
	if p.InitialBackoff < 0 {
		errs = append(errs, fmt.Errorf("save retry: negative initial backoff %s", p.InitialBackoff))
	}
	if p.MaxBackoff < 0 {
		errs = append(errs, fmt.Errorf("save retry: negative max backoff %s", p.MaxBackoff))
	}
	if p.MaxBackoff > 0 && p.MaxBackoff < p.InitialBackoff {
		errs = append(errs, fmt.Errorf("save retry: max backoff %s is below initial backoff %s", p.MaxBackoff, p.InitialBackoff))
	}
	if p.BackoffMultiplier < 1 {
		errs = append(errs, fmt.Errorf("save retry: backoff multiplier must be at least 1, got %g", p.BackoffMultiplier))
	}
	return errors.Join(errs...)
}
