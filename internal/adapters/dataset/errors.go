package dataset

import "errors"

// Sentinel kinds for dataset errors.
var (
	ErrUnknownFormat  = errors.New("unknown dataset format")
	ErrEmpty          = errors.New("dataset has no header row")
	ErrMissingColumns = errors.New("dataset is missing required columns")
	ErrTooManyRows    = errors.New("dataset exceeds the row limit")
	ErrInvalidRow     = errors.New("invalid dataset row")
)
