// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retry runs an operation again with exponential backoff when it
// fails with an error the caller considers transient.
package retry

import (
	"context"
	"math"
	"time"
)

// DefaultBaseDelay is used when a Policy leaves BaseDelay unset.
const DefaultBaseDelay = 200 * time.Millisecond

const defaultMaxRetries = 3

// Policy describes how many times and how long to wait between attempts.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt. Zero
	// uses the default (3); a negative value disables retries.
	MaxRetries int

	// BaseDelay is the first wait; it doubles each attempt.
	BaseDelay time.Duration

	// Retryable reports whether err is worth another attempt. A nil
	// Retryable retries every error.
	Retryable func(err error) bool

	// OnRetry is called before each wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Backoff returns the wait before retry number attempt (zero-based):
// base, 2*base, 4*base, ...
func Backoff(base time.Duration, attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * base
}

// Do calls fn until it succeeds, fails with a non-retryable error, or the
// retries are exhausted. It returns the number of attempts made and the
// last error. If ctx is cancelled during a wait, ctx.Err() is returned.
func (p Policy) Do(ctx context.Context, fn func(context.Context) error) (int, error) {
	maxRetries := p.MaxRetries
	switch {
	case maxRetries == 0:
		maxRetries = defaultMaxRetries
	case maxRetries < 0:
		maxRetries = 0
	}
	base := p.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return attempt + 1, nil
		}
		if attempt >= maxRetries || (p.Retryable != nil && !p.Retryable(err)) {
			return attempt + 1, err
		}

		delay := Backoff(base, attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt + 1, ctx.Err()
		case <-timer.C:
		}
	}
}
