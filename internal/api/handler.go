package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Cuervinho/Data-engineering-challenge/internal/config"
	"github.com/Cuervinho/Data-engineering-challenge/internal/stage"
)

// Handler holds all HTTP handler dependencies.
type Handler struct {
	runner *stage.Runner
	loader *config.Loader
	log    *slog.Logger
	mux    *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(runner *stage.Runner, loader *config.Loader, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{runner: runner, loader: loader, log: log, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /v1/stages/{name}/run", h.runStage)
	h.mux.HandleFunc("GET /v1/stages", h.listStages)
	h.mux.HandleFunc("GET /v1/config", h.getConfig)
	h.mux.HandleFunc("POST /v1/config/reload", h.reloadConfig)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(log, h.mux)
}

// POST /v1/stages/{name}/run: run one stage synchronously.
func (h *Handler) runStage(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	res, err := h.runner.TryRun(r.Context(), name)
	switch {
	case errors.Is(err, stage.ErrUnknownStage):
		writeError(w, http.StatusNotFound, apiError{Code: codeUnknownStage, Error: err.Error(), Stage: name})
	case errors.Is(err, stage.ErrBusy):
		writeError(w, http.StatusConflict, apiError{Code: codeBusy, Error: err.Error(), Stage: name})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, res)
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

// stageInfo is one entry of the stage listing.
type stageInfo struct {
	Name string        `json:"name"`
	Last *stage.Result `json:"last,omitempty"`
}

// GET /v1/stages: registered stages and their most recent result.
func (h *Handler) listStages(w http.ResponseWriter, r *http.Request) {
	last := h.runner.Last()
	names := h.runner.Registry().Names()
	out := make([]stageInfo, len(names))
	for i, n := range names {
		out[i] = stageInfo{Name: n, Last: last[n]}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"stages": out})
}

// GET /v1/config: the active configuration.
func (h *Handler) getConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.loader.Config())
}

// POST /v1/config/reload: re-read the config file. The stage set is rebuilt
// by the loader's change callbacks.
func (h *Handler) reloadConfig(w http.ResponseWriter, r *http.Request) {
	if h.loader.Path() == "" {
		writeError(w, http.StatusConflict, apiError{Code: codeNoConfigFile, Error: config.ErrNoConfigFile.Error()})
		return
	}
	cfg, err := h.loader.Reload()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, apiError{Code: codeInvalidConfig, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded": true,
		"version":  cfg.Version,
		"rules":    len(cfg.Clean.Rules),
	})
}

// GET /healthz: always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
