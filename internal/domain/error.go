package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrNotReady        = errors.New("result not ready")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrSessionTerminal = errors.New("session already in a terminal state")
	ErrQueueFull       = errors.New("worker queue full")
	ErrRateLimited     = errors.New("rate limit exceeded")

	// Pipeline failure reasons. Expert and synthesis failures are fatal to
	// the session; persistence failures are retried a bounded number of
	// times before the session is failed with ErrPersistence as the reason.
	ErrExpertFailure    = errors.New("expert analysis failed")
	ErrSynthesisFailure = errors.New("content synthesis failed")
	ErrPersistence      = errors.New("persistence unavailable")

	ErrInvalidExecContext = errors.New("invalid executor context")
)
