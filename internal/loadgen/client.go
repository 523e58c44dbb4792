package loadgen

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/okian/diarisk/internal/domain/model"
	"github.com/okian/diarisk/internal/domain/types"
)

// Wire headers understood by the service.
const (
	headerUserID         = "X-User-ID"
	headerIdempotencyKey = "Idempotency-Key"
)

// Outcome of one submission.
type Outcome string

// Submission outcomes.
const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFailed    Outcome = "failed"
)

// Client talks to the diarisk HTTP API.
type Client struct {
	http *resty.Client
}

// NewClient returns a client for baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
	}
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/healthz")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode())
	}
	return nil
}

// Submit posts one assessment and classifies the answer.
func (c *Client) Submit(ctx context.Context, s Submission) (Outcome, types.AssessmentResponse, error) {
	var out types.AssessmentResponse
	var apiErr types.ErrorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(headerUserID, s.UserID).
		SetHeader(headerIdempotencyKey, s.IdempotencyKey).
		SetBody(s.Request).
		SetResult(&out).
		SetError(&apiErr).
		Post("/v1/assessments")
	if err != nil {
		return OutcomeFailed, out, err
	}
	switch resp.StatusCode() {
	case http.StatusAccepted:
		return OutcomeAccepted, out, nil
	case http.StatusOK:
		return OutcomeDuplicate, out, nil
	default:
		return OutcomeFailed, out, fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode(), apiErr.Code)
	}
}

// History fetches a user's newest assessments.
func (c *Client) History(ctx context.Context, userID string, limit int) ([]model.Assessment, error) {
	var out types.HistoryResponse
	var apiErr types.ErrorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(headerUserID, userID).
		SetPathParam("userID", userID).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&out).
		SetError(&apiErr).
		Get("/v1/users/{userID}/assessments")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode(), apiErr.Code)
	}
	return out.Items, nil
}
