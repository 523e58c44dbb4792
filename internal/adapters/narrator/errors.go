package narrator

import (
	"context"
	"errors"
)

// Sentinel kinds for narration errors.
var (
	ErrRateLimited   = errors.New("narrator rate limited")
	ErrUnavailable   = errors.New("narrator unavailable")
	ErrBadResponse   = errors.New("narrator returned an unreadable response")
	ErrNarration     = errors.New("narration failed")
	ErrMissingAPIKey = errors.New("narrator api key is required")
)

// Kind returns a short label for err suitable for metrics and stored
// assessments.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrBadResponse):
		return "bad_response"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "narration"
	}
}

// IsRetryable reports whether a later attempt may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded)
}
