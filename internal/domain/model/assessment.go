package model

import (
	"slices"
	"time"
)

// Kind tags a contribution with the role its term plays in the model.
type Kind string

// Contribution kinds.
const (
	KindBaseline    Kind = "baseline"
	KindPrimary     Kind = "primary"
	KindInteraction Kind = "interaction"
)

// Contribution is one term's signed share of the pre-sigmoid log-odds.
type Contribution struct {
	Name  string  `json:"name" bson:"name"`
	Value float64 `json:"value" bson:"value"`
	Kind  Kind    `json:"kind" bson:"kind"`
}

// KeyFactor is a dominant positive primary contribution shown to the user.
type KeyFactor struct {
	Name  string  `json:"name" bson:"name"`
	Value float64 `json:"value" bson:"value"`
}

// Band is the coarse risk category used by dashboards and datasets.
type Band string

// Risk bands.
const (
	BandLow    Band = "low"
	BandMedium Band = "medium"
	BandHigh   Band = "high"
)

// ReportStatus tracks the asynchronous narrative attached to an assessment.
type ReportStatus string

// Report statuses.
const (
	ReportPending ReportStatus = "pending"
	ReportReady   ReportStatus = "ready"
	ReportFailed  ReportStatus = "failed"
	ReportSkipped ReportStatus = "skipped"
)

// Assessment is a persisted scoring outcome for one user submission.
type Assessment struct {
	ID                string         `json:"id" bson:"_id"`
	UserID            string         `json:"userId" bson:"userId"`
	PatientName       string         `json:"patientName" bson:"patientName"`
	Input             HealthMetrics  `json:"input" bson:"input"`
	RiskScore         int            `json:"riskScore" bson:"riskScore"`
	RiskBand          Band           `json:"riskBand" bson:"riskBand"`
	ConfidenceScore   int            `json:"confidenceScore" bson:"confidenceScore"`
	KeyFactors        []KeyFactor    `json:"keyFactors" bson:"keyFactors"`
	ShapValues        []Contribution `json:"shapValues" bson:"shapValues"`
	HealthSuggestions []string       `json:"healthSuggestions" bson:"healthSuggestions"`
	ModelVersion      string         `json:"modelVersion" bson:"modelVersion"`
	Report            string         `json:"report,omitempty" bson:"report,omitempty"`
	ReportStatus      ReportStatus   `json:"reportStatus" bson:"reportStatus"`
	ReportError       string         `json:"reportError,omitempty" bson:"reportError,omitempty"`
	CreatedAt         time.Time      `json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt" bson:"updatedAt"`
}

// NarrativeInput is what the report narrator receives.
type NarrativeInput struct {
	PatientName       string   `json:"patientName"`
	RiskScore         int      `json:"riskScore"`
	ConfidenceScore   int      `json:"confidenceScore"`
	KeyFactors        []string `json:"keyFactors"`
	HealthSuggestions []string `json:"healthSuggestions"`
}

// NarrativeInput builds the narrator request from a stored assessment.
func (a *Assessment) NarrativeInput() NarrativeInput {
	names := make([]string, len(a.KeyFactors))
	for i, kf := range a.KeyFactors {
		names[i] = kf.Name
	}
	return NarrativeInput{
		PatientName:       a.PatientName,
		RiskScore:         a.RiskScore,
		ConfidenceScore:   a.ConfidenceScore,
		KeyFactors:        names,
		HealthSuggestions: append([]string(nil), a.HealthSuggestions...),
	}
}

// ReportJob asks a worker to narrate a stored assessment.
type ReportJob struct {
	AssessmentID string
	UserID       string
	Input        NarrativeInput
	EnqueuedAt   time.Time
}

// Clone returns a deep copy of a so callers cannot mutate stored state.
func (a Assessment) Clone() Assessment {
	out := a
	out.Input = a.Input.Clone()
	out.KeyFactors = slices.Clone(a.KeyFactors)
	out.ShapValues = slices.Clone(a.ShapValues)
	out.HealthSuggestions = slices.Clone(a.HealthSuggestions)
	return out
}
