package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/microsoft/DeepVideoDiscovery/internal/application/port/input"
	"github.com/microsoft/DeepVideoDiscovery/internal/application/port/output"
	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/semaphore"
)

const maxBodyBytes = 1 << 20

// StoreOpener resolves a database.json path to a segment store.
type StoreOpener func(path string) (output.SegmentStore, error)

type Options struct {
	Runner input.SessionRunner
	Stores StoreOpener
	// Archive is optional; without it GET /v1/sessions/{id} answers 501.
	Archive output.SessionArchive
	Logger  output.LoggerPort
	// Gatherer backs /metrics when set.
	Gatherer prometheus.Gatherer
	// DataRoot confines database paths in requests.
	DataRoot string
	// MaxConcurrent bounds sessions running at once. Zero means 4.
	MaxConcurrent int64
	// RequestLogJSON switches httplog to JSON output.
	RequestLogJSON bool
}

type Handler struct {
	opts  Options
	slots *semaphore.Weighted
}

type createSessionRequest struct {
	Database           string  `json:"database"`
	Question           string  `json:"question"`
	MaxIterations      int     `json:"max_iterations"`
	MaxToolCalls       int     `json:"max_tool_calls"`
	MaxDurationSeconds float64 `json:"max_duration_seconds"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewHandler(opts Options) *Handler {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	return &Handler{
		opts:  opts,
		slots: semaphore.NewWeighted(opts.MaxConcurrent),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	reqLogger := httplog.NewLogger("dvd-agent", httplog.Options{
		JSON:    h.opts.RequestLogJSON,
		Concise: true,
	})
	r.Use(middleware.RequestID)
	r.Use(httplog.RequestLogger(reqLogger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)
	if h.opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", h.createSession)
		r.Get("/{sessionID}", h.getSession)
	})
	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, errors.New("question is required"))
		return
	}

	path, err := h.resolve(req.Database)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	store, err := h.opts.Stores(path)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	if err := h.slots.Acquire(r.Context(), 1); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	defer h.slots.Release(1)

	result, err := h.opts.Runner.Run(r.Context(), input.SessionRequest{
		Store:    store,
		Question: req.Question,
		Budget: entity.Budget{
			MaxIterations: req.MaxIterations,
			MaxToolCalls:  req.MaxToolCalls,
			MaxDuration:   time.Duration(req.MaxDurationSeconds * float64(time.Second)),
		},
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	h.opts.Logger.Info("Session served", "session_id", result.SessionID, "reason", result.Reason)
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	if h.opts.Archive == nil {
		writeError(w, http.StatusNotImplemented, errors.New("session archive is disabled"))
		return
	}

	result, err := h.opts.Archive.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// resolve maps a request path into DataRoot. Absolute paths and ".."
// segments cannot leave the root.
func (h *Handler) resolve(database string) (string, error) {
	if strings.TrimSpace(database) == "" {
		return "", errors.New("database is required")
	}
	clean := filepath.Clean("/" + database)
	if filepath.Ext(clean) != ".json" {
		clean = filepath.Join(clean, "database.json")
	}
	return filepath.Join(h.opts.DataRoot, clean), nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
