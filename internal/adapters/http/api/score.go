package api

import (
	"net/http"

	"github.com/okian/diarisk/internal/domain/types"
)

const maxJSONBytes = 1 << 20

// ScoreHandler handles stateless scoring requests.
type ScoreHandler struct {
	deps Dependencies
}

// NewScoreHandler creates a new score handler.
func NewScoreHandler(deps Dependencies) *ScoreHandler {
	return &ScoreHandler{deps: deps}
}

// HandleScore handles POST /v1/score requests.
func (h *ScoreHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.score"
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	var req types.AssessmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, wrap(op, ErrBadRequest, err))
		return
	}
	resp, err := h.deps.Score(r.Context(), req.HealthMetrics)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
