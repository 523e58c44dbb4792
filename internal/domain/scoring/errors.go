package scoring

import "errors"

// Sentinel kinds for scoring errors.
var (
	ErrInvalidNumeric = errors.New("metrics contain a non-finite value")
	ErrUnknownWeight  = errors.New("unknown model weight")
	ErrInvalidModel   = errors.New("invalid risk model")
)
