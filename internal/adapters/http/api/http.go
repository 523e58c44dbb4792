// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/okian/diarisk/internal/adapters/dataset"
	"github.com/okian/diarisk/internal/domain/model"
	"github.com/okian/diarisk/internal/domain/scoring"
	"github.com/okian/diarisk/internal/domain/types"
)

// Request headers read by the API.
const (
	HeaderUserID         = "X-User-ID"
	HeaderIdempotencyKey = "Idempotency-Key"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Score runs the engine without persisting anything.
	Score(ctx context.Context, m model.HealthMetrics) (types.ScoreResponse, error)

	// Submit scores, stores and enqueues a report job. Duplicate submissions
	// return the first assessment with StatusDuplicate.
	Submit(ctx context.Context, userID, key string, req types.AssessmentRequest) (types.AssessmentResponse, error)

	// Assessment returns one assessment owned by userID.
	Assessment(ctx context.Context, userID, id string) (model.Assessment, error)

	// History lists userID's assessments newest first.
	History(ctx context.Context, userID string, limit int) ([]model.Assessment, error)

	// AnalyzeDataset scores a CSV or XLSX upload.
	AnalyzeDataset(ctx context.Context, r io.Reader, f dataset.Format) (dataset.Report, error)

	// Model returns the active model table.
	Model() scoring.Model
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	scoreHandler       *ScoreHandler
	assessmentsHandler *AssessmentsHandler
	datasetsHandler    *DatasetsHandler
	modelHandler       *ModelHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		scoreHandler:       NewScoreHandler(deps),
		assessmentsHandler: NewAssessmentsHandler(deps, cfg.defaultLimit, cfg.maxLimit),
		datasetsHandler:    NewDatasetsHandler(deps, cfg.maxBodyBytes),
		modelHandler:       NewModelHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /v1/score", MetricsMiddleware(s.scoreHandler.HandleScore, "score"))
	mux.HandleFunc("POST /v1/assessments", MetricsMiddleware(s.assessmentsHandler.HandleSubmit, "assessments_submit"))
	mux.HandleFunc("GET /v1/assessments/{id}", MetricsMiddleware(s.assessmentsHandler.HandleGet, "assessments_get"))
	mux.HandleFunc("GET /v1/users/{userID}/assessments", MetricsMiddleware(s.assessmentsHandler.HandleHistory, "assessments_history"))
	mux.HandleFunc("POST /v1/datasets/analyze", MetricsMiddleware(s.datasetsHandler.HandleAnalyze, "datasets_analyze"))
	mux.HandleFunc("GET /v1/model", MetricsMiddleware(s.modelHandler.HandleModel, "model"))
}

// internalErrorBody is sent when a response value cannot be encoded.
var internalErrorBody = []byte(`{"code":"internal_error","message":"response encoding failed"}` + "\n")

func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		if ec, ok := w.(errorCoder); ok {
			ec.setErrorCode("internal_error")
		}
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write(internalErrorBody)
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	if ec, ok := w.(errorCoder); ok {
		ec.setErrorCode(code)
	}
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, types.ErrorResponse{Code: code, Message: msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return ErrBadRequest
	}
	return nil
}

func userID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(HeaderUserID))
}
