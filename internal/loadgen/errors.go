package loadgen

import "errors"

var (
	// ErrInvalidConfig is returned when a run cannot start with the given config.
	ErrInvalidConfig = errors.New("invalid load config")
	// ErrUnhealthy is returned when the service health check fails.
	ErrUnhealthy = errors.New("service unhealthy")
	// ErrUnexpectedStatus wraps a non-2xx answer from the service.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrVerification is returned when stored history breaks an invariant.
	ErrVerification = errors.New("history verification failed")
)
