// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bootstrap

import (
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy describes capped exponential backoff.
//
// A policy with a zero InitialDelay retries without waiting, which
// tests rely on.
type RetryPolicy struct {
	// MaxAttempts bounds connect-after-create attempts; values below 1
	// are treated as 1. It is ignored for lock contention, which is
	// bounded by the overall deadline.
	MaxAttempts int `yaml:"max_attempts"`

	// InitialDelay is the delay after the first failed attempt.
	InitialDelay time.Duration `yaml:"initial_delay"`

	// MaxDelay caps the delay. Zero means uncapped.
	MaxDelay time.Duration `yaml:"max_delay"`

	// Multiplier grows the delay per attempt. Values below 1 are
	// treated as 1.
	Multiplier float64 `yaml:"multiplier"`

	// Jitter scales each delay by a random factor in [0.5, 1.5) so
	// that processes contending for the same lock spread out.
	Jitter bool `yaml:"jitter"`
}

// DefaultRetry is the connect-after-create policy used when
// [Config.Retry] is the zero value. Twenty attempts ramping to one
// second cover a service that takes several seconds to start.
func DefaultRetry() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  20,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2,
		Jitter:       true,
	}
}

// DefaultContention is the policy for waiting on a contended creation
// lock when [Config.Contention] is the zero value.
func DefaultContention() RetryPolicy {
	return RetryPolicy{
		InitialDelay: 20 * time.Millisecond,
		MaxDelay:     500 * time.Millisecond,
		Multiplier:   1.5,
		Jitter:       true,
	}
}

// Delay returns the wait after failed attempt number attempt
// (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if p.InitialDelay <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	delay := float64(p.InitialDelay) * math.Pow(multiplier, float64(attempt-1))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.Jitter {
		delay *= 0.5 + rand.Float64()
	}
	return time.Duration(delay)
}
