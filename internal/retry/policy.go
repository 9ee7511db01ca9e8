// Package retry provides backoff policies for reconnecting to external sinks.
package retry

import (
	"context"
	"time"

	"git.home.luguber.info/inful/pkgrepo/internal/foundation/errors"
	"git.home.luguber.info/inful/pkgrepo/internal/foundation/normalization"
)

// BackoffMode selects how the delay grows between attempts.
type BackoffMode string

const (
	BackoffFixed       BackoffMode = "fixed"
	BackoffLinear      BackoffMode = "linear"
	BackoffExponential BackoffMode = "exponential"
)

var backoffModes = normalization.NewNormalizer(map[string]BackoffMode{
	"fixed":       BackoffFixed,
	"linear":      BackoffLinear,
	"exponential": BackoffExponential,
	"exp":         BackoffExponential,
}, BackoffExponential)

// ParseBackoffMode accepts any known spelling; empty input selects exponential.
func ParseBackoffMode(raw string) (BackoffMode, error) {
	return backoffModes.Parse("backoff mode", raw)
}

// Policy is an immutable retry schedule.
type Policy struct {
	Mode       BackoffMode
	Initial    time.Duration
	Max        time.Duration
	MaxRetries int // attempts after the first failure
}

// DefaultPolicy is exponential from 500ms, capped at 10s, three retries.
func DefaultPolicy() Policy {
	return Policy{Mode: BackoffExponential, Initial: 500 * time.Millisecond, Max: 10 * time.Second, MaxRetries: 3}
}

// NewPolicy fills zero or invalid fields from DefaultPolicy and clamps
// Initial to Max. A negative maxRetries keeps the default.
func NewPolicy(mode BackoffMode, initial, maxDelay time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	switch mode {
	case BackoffFixed, BackoffLinear, BackoffExponential:
		p.Mode = mode
	}
	if initial > 0 {
		p.Initial = initial
	}
	if maxDelay > 0 {
		p.Max = maxDelay
	}
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// Delay returns the wait before retry n (1-based).
func (p Policy) Delay(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	var d time.Duration
	switch p.Mode {
	case BackoffFixed:
		d = p.Initial
	case BackoffLinear:
		d = time.Duration(n) * p.Initial
	default:
		if n > 32 {
			return p.Max
		}
		d = p.Initial << (n - 1)
	}
	if d > p.Max || d <= 0 {
		return p.Max
	}
	return d
}

// Do calls fn until it succeeds, returns an error that errors.ShouldBackoff
// rejects, the retries are exhausted or ctx is done. The last error is
// returned. onRetry, when non-nil, is told about each scheduled retry.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error, onRetry func(n int, delay time.Duration, err error)) error {
	var err error
	for n := 0; ; n++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if n >= p.MaxRetries || !errors.ShouldBackoff(err) {
			return err
		}
		delay := p.Delay(n + 1)
		if onRetry != nil {
			onRetry(n+1, delay, err)
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}
