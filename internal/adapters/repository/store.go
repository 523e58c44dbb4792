// Package repository stores assessments and serves per-user history.
package repository

import (
	"context"
	"time"

	"github.com/okian/diarisk/internal/domain/model"
	"github.com/okian/diarisk/pkg/metrics"
)

// Store provides read/write access to stored assessments.
type Store interface {
	// Save persists a new assessment. Returns ErrDuplicateID if the id exists.
	Save(ctx context.Context, a model.Assessment) error

	// Get returns one assessment or ErrNotFound.
	Get(ctx context.Context, id string) (model.Assessment, error)

	// History returns up to limit assessments of userID, newest first.
	// Ties on createdAt are broken by id descending.
	History(ctx context.Context, userID string, limit int) ([]model.Assessment, error)

	// AttachReport stores the narrative and marks the report ready.
	AttachReport(ctx context.Context, id, report string) error

	// MarkReportFailed records why narration failed.
	MarkReportFailed(ctx context.Context, id, reason string) error

	// Count returns the number of stored assessments.
	Count(ctx context.Context) int

	Close() error
}

// Store operation names used for latency metrics.
const (
	opSave    = "save"
	opGet     = "get"
	opHistory = "history"
	opUpdate  = "update"
)

func validate(a model.Assessment) error {
	if a.ID == "" || a.UserID == "" {
		return ErrInvalidAssessment
	}
	return nil
}

func validateLimit(limit int) error {
	if limit <= 0 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return ErrInvalidLimit
	}
	return nil
}

// newerFirst reports whether a sorts before b in history order.
func newerFirst(a, b model.Assessment) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// observe records the latency of one store operation.
func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}

// withReport applies a report outcome to a.
func withReport(a model.Assessment, status model.ReportStatus, report, reason string, now time.Time) model.Assessment {
	a.ReportStatus = status
	a.Report = report
	a.ReportError = reason
	a.UpdatedAt = now
	return a
}
