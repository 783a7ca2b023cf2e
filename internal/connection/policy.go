package connection

import (
	"math/rand/v2"
	"time"

	"github.com/rickgao/wslive/internal/config"
)

// ReconnectPolicy decides the delay before the next attempt. failures counts
// consecutive unexpected closes since the last successful open, starting at 1.
// ok is false when the manager should give up.
type ReconnectPolicy interface {
	Next(failures int) (delay time.Duration, ok bool)
}

// DefaultReconnectDelay is the fixed retry delay.
const DefaultReconnectDelay = 1000 * time.Millisecond

// FixedDelay retries after the same delay every time. MaxAttempts 0 retries
// forever.
type FixedDelay struct {
	Delay       time.Duration
	MaxAttempts int
}

func (p FixedDelay) Next(failures int) (time.Duration, bool) {
	if p.MaxAttempts > 0 && failures > p.MaxAttempts {
		return 0, false
	}
	if p.Delay <= 0 {
		return DefaultReconnectDelay, true
	}
	return p.Delay, true
}

// ExponentialBackoff doubles the delay per failure up to Max, with +/- Jitter
// applied as a fraction of the delay. Max <= 0 uses DefaultMaxBackoff and
// Jitter is capped at MaxJitter, so the delay stays in (0, Max].
type ExponentialBackoff struct {
	Base        time.Duration
	Max         time.Duration
	Jitter      float64
	MaxAttempts int
}

const (
	DefaultMaxBackoff = config.DefaultReconnectMaxDelay
	MaxJitter         = 0.5
)

func (p ExponentialBackoff) Next(failures int) (time.Duration, bool) {
	if p.MaxAttempts > 0 && failures > p.MaxAttempts {
		return 0, false
	}
	if failures < 1 {
		failures = 1
	}

	base := p.Base
	if base <= 0 {
		base = DefaultReconnectDelay
	}
	maxDelay := p.Max
	if maxDelay <= 0 {
		maxDelay = DefaultMaxBackoff
	}
	if maxDelay < base {
		maxDelay = base
	}

	delay := base
	for i := 1; i < failures && delay < maxDelay; i++ {
		if delay > maxDelay/2 {
			delay = maxDelay
			break
		}
		delay *= 2
	}

	jitter := min(p.Jitter, MaxJitter)
	if jitter > 0 {
		// uniform in [-jitter, +jitter)
		f := 1 + jitter*(2*rand.Float64()-1)
		delay = min(time.Duration(float64(delay)*f), maxDelay)
	}
	return delay, true
}

// PolicyFromConfig builds the policy selected in configuration.
func PolicyFromConfig(cfg config.ReconnectConfig) ReconnectPolicy {
	if cfg.Policy == "exponential" {
		return ExponentialBackoff{
			Base:        cfg.Delay,
			Max:         cfg.MaxDelay,
			Jitter:      cfg.Jitter,
			MaxAttempts: cfg.MaxAttempts,
		}
	}
	return FixedDelay{Delay: cfg.Delay, MaxAttempts: cfg.MaxAttempts}
}
