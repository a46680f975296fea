// Package ratelimit throttles check-in attempts per caller identity using a
// fixed window: at most Max attempts per Window, counted from the first
// attempt of the window.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Defaults applied when a limiter is built with zero values.
const (
	DefaultMaxAttempts = 5
	DefaultWindow      = time.Minute
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, minimum 1 for a
// denied decision. It is the value sent in a Retry-After header.
func (d Decision) RetryAfterSeconds() int {
	if d.Allowed {
		return 0
	}
	s := int(math.Ceil(d.RetryAfter.Seconds()))
	if s < 1 {
		s = 1
	}
	return s
}

// Limiter counts an attempt for key and reports whether it is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Options configures a limiter.
type Options struct {
	MaxAttempts int
	Window      time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	return o
}

// storeKey includes the budget so limiters with different settings sharing
// one store never read each other's counters.
func (o Options) storeKey(key string) string {
	return fmt.Sprintf("%s:%d:%d", key, o.MaxAttempts, o.Window.Milliseconds())
}

func decide(o Options, count int, ttl time.Duration) Decision {
	if count > o.MaxAttempts {
		return Decision{Allowed: false, RetryAfter: ttl}
	}
	return Decision{Allowed: true, Remaining: o.MaxAttempts - count}
}
