package repository

import "errors"

// Sentinel kinds for history store errors.
var (
	ErrNotFound          = errors.New("assessment not found")
	ErrInvalidLimit      = errors.New("invalid history limit")
	ErrDuplicateID       = errors.New("assessment id already stored")
	ErrInvalidAssessment = errors.New("assessment requires id and user id")
)
