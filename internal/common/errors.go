// Package common provides shared utilities and types used across the engine.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Storage errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Configuration errors. A scorer run aborts on these; it never falls back
	// to partial defaults.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")

	// Run coordination.
	ErrLockHeld = errors.New("run lock held by another instance")

	// Per-record, non-fatal conditions.
	ErrIdentityUnresolved = errors.New("rm identity unresolved")
	ErrLifecycleViolation = errors.New("write blocked by lifecycle state")
)

// ConfigError wraps a structural or semantic configuration failure for one
// scorer. It is fatal for that scorer's run.
type ConfigError struct {
	Scorer string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config for scorer %q: %v", e.Scorer, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError builds a scorer-scoped configuration error that also
// matches ErrInvalidConfig.
func NewConfigError(scorer string, err error) error {
	return &ConfigError{Scorer: scorer, Err: fmt.Errorf("%w: %v", ErrInvalidConfig, err)}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	// Terminal conditions never retry.
	if errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrLockHeld) ||
		errors.Is(err, ErrLifecycleViolation) {
		return false
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
