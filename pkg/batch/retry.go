package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy controls how a failing group is resubmitted.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of dispatch rounds per group, including
	// the first one. Zero means retry until the group succeeds.
	MaxAttempts int

	// InitialBackoff is the wait before the first resubmission. Zero disables waiting.
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between rounds.
	MaxBackoff time.Duration

	// Multiplier grows the wait after every round.
	Multiplier float64

	// Jitter randomizes each wait by ±Jitter (0.2 = ±20%).
	Jitter float64
}

// DefaultRetryPolicy returns the default group retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    5,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		Jitter:         0.2,
	}
}

// Unbounded reports whether the policy retries forever.
func (p RetryPolicy) Unbounded() bool {
	return p.MaxAttempts == 0
}

func (p RetryPolicy) validate() error {
	switch {
	case p.MaxAttempts < 0:
		return fmt.Errorf("max_attempts must be >= 0 (got %d)", p.MaxAttempts)
	case p.InitialBackoff < 0:
		return fmt.Errorf("initial_backoff must be >= 0 (got %s)", p.InitialBackoff)
	case p.MaxBackoff < 0:
		return fmt.Errorf("max_backoff must be >= 0 (got %s)", p.MaxBackoff)
	case p.Multiplier < 1 && p.InitialBackoff > 0:
		return fmt.Errorf("multiplier must be >= 1 (got %v)", p.Multiplier)
	case p.Jitter < 0 || p.Jitter >= 1:
		return fmt.Errorf("jitter must be in [0, 1) (got %v)", p.Jitter)
	}
	return nil
}

// newBackOff returns a fresh backoff sequence for one group.
func (p RetryPolicy) newBackOff() backoff.BackOff {
	if p.InitialBackoff <= 0 {
		return &backoff.ZeroBackOff{}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialBackoff
	b.MaxInterval = p.MaxBackoff
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = p.Jitter
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
