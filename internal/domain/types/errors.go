package types

import "errors"

// Sentinel kinds shared by the service and the HTTP layer.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrMissingUser  = errors.New("missing user id")
	ErrForbidden    = errors.New("assessment belongs to another user")
	ErrBackpressure = errors.New("backpressure")
)
