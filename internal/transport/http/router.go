// Package httptransport wires the HTTP surface: inspection endpoints,
// Prometheus metrics and the socket.io endpoint.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"workerhub/pkg/platform/middleware/metadata"
)

// NewRouter mounts h, the metrics handler and the socket.io handler. socket
// may be nil in tests.
func NewRouter(h *Handler, metrics, socket http.Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metadata.RequestLogger(logger))

	h.Register(r)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
	if socket != nil {
		r.Handle("/socket.io/*", socket)
	}
	return r
}
