package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"orcacast/domain/core"
	"orcacast/internal"
	apperrors "orcacast/internal/errors"
	"orcacast/internal/registry"
)

// Reloader re-reads the equation source
type Reloader interface {
	ReloadEquations(ctx context.Context) (core.EquationSetHash, error)
}

// Pinger checks a backing store
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Router serves operational endpoints on a separate port: health, equation reload
// and the runtime profiler.
type Router struct {
	router   *chi.Mux
	registry *registry.Registry
	reloader Reloader
	db       Pinger
	logger   *internal.Logger
}

// NewRouter builds the ops router. db may be nil when persistence is disabled.
func NewRouter(reg *registry.Registry, reloader Reloader, db Pinger, logger *internal.Logger) *Router {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	r := &Router{
		router:   chi.NewRouter(),
		registry: reg,
		reloader: reloader,
		db:       db,
		logger:   logger,
	}
	r.setupMiddleware()
	r.setupRoutes()
	return r
}

// Handler returns the HTTP handler
func (r *Router) Handler() http.Handler {
	return r.router
}

func (r *Router) setupMiddleware() {
	r.router.Use(middleware.RequestID)
	r.router.Use(middleware.Recoverer)
	r.router.Use(middleware.Timeout(60 * time.Second))
}

func (r *Router) setupRoutes() {
	r.router.Get("/healthz", r.handleHealth)
	r.router.Post("/admin/reload", r.handleReload)
	r.router.Mount("/debug", middleware.Profiler())
}

type healthResponse struct {
	Status          string `json:"status"`
	Behaviors       int    `json:"behaviors"`
	EquationVersion string `json:"equation_version,omitempty"`
	Database        string `json:"database"`
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	resp := healthResponse{Status: "ok", Database: "disabled"}
	status := http.StatusOK

	snap, err := r.registry.Snapshot()
	if err != nil {
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	} else {
		resp.Behaviors = snap.Len()
		resp.EquationVersion = snap.Version().String()
	}

	if r.db != nil {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := r.db.PingContext(ctx); err != nil {
			resp.Status = "degraded"
			resp.Database = "unreachable"
			if status == http.StatusOK {
				status = http.StatusServiceUnavailable
			}
		} else {
			resp.Database = "ok"
		}
	}

	writeJSON(w, status, resp)
}

func (r *Router) handleReload(w http.ResponseWriter, req *http.Request) {
	version, err := r.reloader.ReloadEquations(req.Context())
	if err != nil {
		r.logger.Warn("Equation reload failed, keeping current set: %v", err)
		appErr := apperrors.FromDomain(err)
		code := apperrors.GetCode(appErr)
		writeJSON(w, apperrors.HTTPStatus(code), map[string]string{"error": err.Error(), "code": code})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"equation_version": version,
		"behaviors":        r.registry.ListBehaviors(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
