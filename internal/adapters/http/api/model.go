package api

import "net/http"

// ModelHandler exposes the active model table.
type ModelHandler struct {
	deps Dependencies
}

// NewModelHandler creates a new model handler.
func NewModelHandler(deps Dependencies) *ModelHandler {
	return &ModelHandler{deps: deps}
}

// HandleModel handles GET /v1/model requests.
func (h *ModelHandler) HandleModel(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Model())
}
