package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"workerhub/internal/workers/hub"
	"workerhub/internal/workers/models"
	"workerhub/pkg/platform/httputil"
)

// Registry is the read-only view of the hub served over HTTP.
type Registry interface {
	Snapshot(ctx context.Context) ([]models.Worker, error)
	Stats(ctx context.Context) (hub.Stats, error)
}

// Handler serves registry inspection endpoints. Mutations only arrive over
// socket.io.
type Handler struct {
	registry Registry
	logger   *slog.Logger
}

// NewHandler constructs an inspection handler.
func NewHandler(registry Registry, logger *slog.Logger) *Handler {
	return &Handler{registry: registry, logger: logger}
}

// Register mounts the inspection endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/workers", h.HandleListWorkers)
	r.Get("/health", h.HandleHealth)
}

// HandleListWorkers handles GET /api/workers.
func (h *Handler) HandleListWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := h.registry.Snapshot(r.Context())
	if err != nil {
		h.logger.WarnContext(r.Context(), "snapshot unavailable", "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, workers)
}

type healthResponse struct {
	Status      string `json:"status"`
	Workers     int    `json:"workers"`
	Connections int    `json:"connections"`
}

// HandleHealth handles GET /health.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := h.registry.Stats(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		Workers:     stats.Workers,
		Connections: stats.Connections,
	})
}
