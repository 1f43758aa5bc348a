// Package optimize exposes the dispatch optimizer over HTTP.
package optimize

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/gorilla/mux"

	"github.com/kilianp07/ems/core/dispatch"
	"github.com/kilianp07/ems/core/logger"
	"github.com/kilianp07/ems/core/metrics"
	"github.com/kilianp07/ems/core/model"
	"github.com/kilianp07/ems/pkg/export"
)

// Runner computes a dispatch plan. *dispatch.Optimizer implements it.
type Runner interface {
	Optimize(req dispatch.Request) (*dispatch.Result, error)
}

// Publisher fans finished results out to subscribers.
type Publisher interface {
	Publish(r *dispatch.Result) int
}

// DefaultMaxBodyBytes limits request bodies when no limit is configured.
const DefaultMaxBodyBytes = 1 << 20

// Handler serves the optimization endpoints.
type Handler struct {
	runner  Runner
	pub     Publisher
	maxBody int64
	site    model.SiteParams
	history metrics.RunLister
	log     logger.Logger
	started time.Time
}

// NewHandler returns a Handler. pub and log may be nil.
func NewHandler(runner Runner, pub Publisher, maxBody int64, log logger.Logger) *Handler {
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Handler{
		runner:  runner,
		pub:     pub,
		maxBody: maxBody,
		site:    model.DefaultSiteParams(),
		log:     log,
		started: time.Now(),
	}
}

// SetSite replaces the parameters that requests start from. Fields a request
// omits keep the values of p.
func (h *Handler) SetSite(p model.SiteParams) { h.site = p }

// SetHistory enables GET /api/v1/runs backed by l.
func (h *Handler) SetHistory(l metrics.RunLister) { h.history = l }

func (h *Handler) baseRequest() dispatch.Request {
	return dispatch.Request{Params: h.site}
}

// Register mounts the routes under /api/v1 on r. Responses are gzip
// compressed for clients that accept it. Routes sit on r itself rather than
// a subrouter so a wrong method on a known path answers 405.
func (h *Handler) Register(r *mux.Router) {
	handle := func(path, method string, fn http.HandlerFunc) {
		r.Handle("/api/v1"+path, gziphandler.GzipHandler(fn)).Methods(method)
	}
	handle("/status", http.MethodGet, h.handleStatus)
	handle("/optimize", http.MethodPost, h.handleOptimize)
	handle("/optimize/defaults", http.MethodGet, h.handleDefaults)
	handle("/runs", http.MethodGet, h.handleRuns)
	if r.MethodNotAllowedHandler == nil {
		r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	}
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method " + r.Method + " not allowed"})
}

// NewRouter returns a router serving only h.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	h.Register(r)
	return r
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

func (h *Handler) handleDefaults(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.baseRequest().WithDefaults())
}

func (h *Handler) handleRuns(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "run history is not enabled"})
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer", Field: "limit"})
			return
		}
		limit = n
	}
	runs, err := h.history.Recent(limit)
	if err != nil {
		h.log.Errorf("list runs: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *Handler) handleOptimize(w http.ResponseWriter, r *http.Request) {
	req := h.baseRequest()
	body := http.MaxBytesReader(w, r.Body, h.maxBody)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	res, err := h.runner.Optimize(req.WithDefaults())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if h.pub != nil {
		h.pub.Publish(res)
	}

	switch r.URL.Query().Get("format") {
	case "", "json":
		writeJSON(w, http.StatusOK, res)
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="dispatch-`+res.RunID+`.csv"`)
		if err := export.WriteCSV(w, res); err != nil {
			h.log.Errorf("run %s: write csv: %v", res.RunID, err)
		}
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unsupported format", Field: "format"})
	}
}

// writeError maps the optimizer's typed failures to status codes.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var (
		verr *model.ValidationError
		ierr *model.InfeasibleError
		serr *model.SolverError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Error(), Field: verr.Field})
	case errors.As(err, &ierr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: ierr.Error()})
	case errors.As(err, &serr):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: serr.Error()})
	default:
		h.log.Errorf("optimize: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
