package api

import (
	"net/http"
	"strconv"

	"github.com/okian/diarisk/internal/adapters/dataset"
)

// DatasetsHandler handles dataset uploads.
type DatasetsHandler struct {
	deps     Dependencies
	maxBytes int64
}

// NewDatasetsHandler creates a new datasets handler.
func NewDatasetsHandler(deps Dependencies, maxBytes int64) *DatasetsHandler {
	return &DatasetsHandler{deps: deps, maxBytes: maxBytes}
}

// HandleAnalyze handles POST /v1/datasets/analyze?format=csv|xlsx requests.
// Optional minRisk and maxRisk query parameters narrow the returned rows.
func (h *DatasetsHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	const op = "api.analyze_dataset"
	q := r.URL.Query()
	format, err := dataset.ParseFormat(q.Get("format"))
	if err != nil {
		writeError(w, wrap(op, ErrBadRequest, err))
		return
	}
	risk, err := parseRange(q.Get("minRisk"), q.Get("maxRisk"))
	if err != nil {
		writeError(w, wrap(op, ErrBadRequest, err))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	rep, err := h.deps.AnalyzeDataset(r.Context(), r.Body, format)
	if err != nil {
		writeError(w, err)
		return
	}
	if risk != nil {
		rep = dataset.Filter{Risk: risk}.Apply(rep)
	}
	writeJSON(w, http.StatusOK, rep)
}

// parseRange returns nil when neither bound is set.
func parseRange(lo, hi string) (*dataset.Range, error) {
	if lo == "" && hi == "" {
		return nil, nil
	}
	rg := &dataset.Range{Min: 0, Max: 100}
	var err error
	if lo != "" {
		if rg.Min, err = strconv.ParseFloat(lo, 64); err != nil {
			return nil, err
		}
	}
	if hi != "" {
		if rg.Max, err = strconv.ParseFloat(hi, 64); err != nil {
			return nil, err
		}
	}
	return rg, nil
}
