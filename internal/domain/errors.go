package domain

import "errors"

var (
	// ErrValidation marks malformed or incomplete input. Never retried.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a missing record.
	ErrNotFound = errors.New("not found")

	// ErrNoEligibleChannels marks a dispatch whose routing produced an empty
	// channel set outside quiet hours. Terminal, since it reflects persisted
	// preference state rather than a transient fault.
	ErrNoEligibleChannels = errors.New("no eligible channels")

	// ErrRetryExhausted marks a dispatch that failed on every channel with no
	// retry budget left.
	ErrRetryExhausted = errors.New("retry budget exhausted")
)
