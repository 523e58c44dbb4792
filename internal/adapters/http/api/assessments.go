package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/diarisk/internal/domain/types"
)

// AssessmentsHandler handles submission and history requests.
type AssessmentsHandler struct {
	deps         Dependencies
	defaultLimit int
	maxLimit     int
}

// NewAssessmentsHandler creates a new assessments handler.
func NewAssessmentsHandler(deps Dependencies, defaultLimit, maxLimit int) *AssessmentsHandler {
	return &AssessmentsHandler{deps: deps, defaultLimit: defaultLimit, maxLimit: maxLimit}
}

// HandleSubmit handles POST /v1/assessments requests.
func (h *AssessmentsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_assessment"
	uid := userID(r)
	if uid == "" {
		writeError(w, wrap(op, types.ErrMissingUser, nil))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	var req types.AssessmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, wrap(op, ErrBadRequest, err))
		return
	}

	key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	resp, err := h.deps.Submit(r.Context(), uid, key, req)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusAccepted
	if resp.Status == types.StatusDuplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

// HandleGet handles GET /v1/assessments/{id} requests.
func (h *AssessmentsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_assessment"
	uid := userID(r)
	if uid == "" {
		writeError(w, wrap(op, types.ErrMissingUser, nil))
		return
	}
	a, err := h.deps.Assessment(r.Context(), uid, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// HandleHistory handles GET /v1/users/{userID}/assessments requests. The
// caller may only read its own history.
func (h *AssessmentsHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	const op = "api.history"
	uid := userID(r)
	if uid == "" {
		writeError(w, wrap(op, types.ErrMissingUser, nil))
		return
	}
	owner := r.PathValue("userID")
	if owner != uid {
		writeError(w, wrap(op, types.ErrForbidden, nil))
		return
	}

	limit, err := h.parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, wrap(op, ErrInvalidLimit, err))
		return
	}
	items, err := h.deps.History(r.Context(), owner, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.HistoryResponse{UserID: owner, Count: len(items), Items: items})
}

// parseLimit applies the default when raw is empty and clamps to the maximum.
func (h *AssessmentsHandler) parseLimit(raw string) (int, error) {
	if raw == "" {
		return h.defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, ErrInvalidLimit
	}
	return min(n, h.maxLimit), nil
}
