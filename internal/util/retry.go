package util

import (
	"context"
	"strings"
	"time"
)

// RetryConfig bounds RetryDo.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// IsRetryable reports whether an error is worth another attempt.
	// Nil means IsTransient.
	IsRetryable func(error) bool
}

// DefaultRetryConfig returns defaults tuned for local git and filesystem
// contention, which clears within a second or two.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		IsRetryable:  IsTransient,
	}
}

// transientErrorPatterns are substrings of errors that a killed preview or a
// concurrent git invocation can leave behind for a moment.
var transientErrorPatterns = []string{
	"index.lock",
	"another git process",
	"unable to unlink",
	"resource temporarily unavailable",
	"device or resource busy",
	"text file busy",
	"too many open files",
}

// IsTransient reports whether err looks like short-lived contention.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range transientErrorPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// RetryDo calls fn until it succeeds, returns a non-retryable error, or
// MaxAttempts is reached. The delay doubles after each failure up to
// MaxDelay. It returns the last error from fn, or ctx.Err() if ctx ends
// first.
func RetryDo(ctx context.Context, cfg RetryConfig, fn func() error) error {
	def := DefaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.IsRetryable == nil {
		cfg.IsRetryable = IsTransient
	}

	delay := cfg.InitialDelay
	var err error
	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err = fn(); err == nil {
			return nil
		}
		if attempt >= cfg.MaxAttempts || !cfg.IsRetryable(err) {
			return err
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		delay = min(delay*2, cfg.MaxDelay)
	}
}
