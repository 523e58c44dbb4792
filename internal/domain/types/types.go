// Package types contains the wire shapes shared by the HTTP API and its clients.
package types

import (
	"time"

	"github.com/okian/diarisk/internal/domain/model"
	"github.com/okian/diarisk/internal/domain/scoring"
)

// Submission outcomes reported by POST /v1/assessments.
const (
	StatusAccepted  = "accepted"
	StatusDuplicate = "duplicate"
)

// AssessmentRequest is the body of POST /v1/assessments. The metrics are
// inlined next to the optional patient name.
type AssessmentRequest struct {
	PatientName string `json:"patientName,omitempty"`
	model.HealthMetrics
}

// ScoreResponse is the body returned by POST /v1/score.
type ScoreResponse struct {
	RiskScore         int                  `json:"riskScore" yaml:"riskScore"`
	RiskBand          model.Band           `json:"riskBand" yaml:"riskBand"`
	ConfidenceScore   int                  `json:"confidenceScore" yaml:"confidenceScore"`
	LogOdds           float64              `json:"logOdds" yaml:"logOdds"`
	KeyFactors        []model.KeyFactor    `json:"keyFactors" yaml:"keyFactors"`
	ShapValues        []model.Contribution `json:"shapValues" yaml:"shapValues"`
	HealthSuggestions []string             `json:"healthSuggestions" yaml:"healthSuggestions"`
	ModelVersion      string               `json:"modelVersion" yaml:"modelVersion"`
}

// NewScoreResponse flattens an engine assessment.
func NewScoreResponse(a scoring.Assessment) ScoreResponse {
	return ScoreResponse{
		RiskScore:         a.RiskScore,
		RiskBand:          a.RiskBand,
		ConfidenceScore:   a.ConfidenceScore,
		LogOdds:           a.LogOdds,
		KeyFactors:        a.KeyFactors,
		ShapValues:        a.ShapValues,
		HealthSuggestions: a.HealthSuggestions,
		ModelVersion:      a.ModelVersion,
	}
}

// AssessmentResponse wraps a stored assessment with the submission outcome.
type AssessmentResponse struct {
	Status     string           `json:"status"`
	Assessment model.Assessment `json:"assessment"`
}

// HistoryResponse lists a user's assessments, newest first.
type HistoryResponse struct {
	UserID string             `json:"userId"`
	Count  int                `json:"count"`
	Items  []model.Assessment `json:"items"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Stats is the body of GET /stats.
type Stats struct {
	StoredAssessments int       `json:"storedAssessments"`
	QueueLength       int       `json:"queueLength"`
	QueueCapacity     int       `json:"queueCapacity"`
	DedupeSize        int64     `json:"dedupeSize"`
	Workers           int       `json:"workers"`
	StoreBackend      string    `json:"storeBackend"`
	Narrator          string    `json:"narrator"`
	ModelVersion      string    `json:"modelVersion"`
	StartedAt         time.Time `json:"startedAt"`
}
