package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/diarisk/internal/adapters/dataset"
	"github.com/okian/diarisk/internal/adapters/repository"
	"github.com/okian/diarisk/internal/domain/scoring"
	"github.com/okian/diarisk/internal/domain/types"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrInvalidLimit = errors.New("limit must be a positive integer")
)

func wrap(op string, kind, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", op, kind)
	}
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// statusFor maps an error to an HTTP status and a stable error code.
func statusFor(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "payload_too_large"
	case errors.Is(err, scoring.ErrInvalidNumeric):
		return http.StatusBadRequest, "invalid_numeric"
	case errors.Is(err, types.ErrMissingUser):
		return http.StatusBadRequest, "missing_user"
	case errors.Is(err, ErrInvalidLimit), errors.Is(err, repository.ErrInvalidLimit):
		return http.StatusBadRequest, "invalid_limit"
	case errors.Is(err, types.ErrInvalidInput), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, dataset.ErrTooManyRows):
		return http.StatusRequestEntityTooLarge, "too_many_rows"
	case errors.Is(err, dataset.ErrUnknownFormat),
		errors.Is(err, dataset.ErrEmpty),
		errors.Is(err, dataset.ErrMissingColumns),
		errors.Is(err, dataset.ErrInvalidRow):
		return http.StatusBadRequest, "invalid_dataset"
	case errors.Is(err, types.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, types.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
