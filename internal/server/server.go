// Package server exposes the HTTP ingress for inbound host events plus
// scheduler introspection. It is a producer: every accepted event is
// funneled to the host loop, never pushed into the scheduler directly.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/me/exthost/internal/host"
)

// HostControl is the slice of the host loop the gateway needs.
type HostControl interface {
	EnqueueEvent(eventID string, payload any)
	Inspect(ctx context.Context) (host.Snapshot, error)
}

// Server is the ExtHost event gateway.
type Server struct {
	router    chi.Router
	host      HostControl
	logger    *slog.Logger
	startTime time.Time
}

// New creates a Server with all routes registered.
func New(h HostControl, logger *slog.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		host:      h,
		logger:    logger.With("component", "server"),
		startTime: time.Now(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(requestIDMiddleware)
	s.router.Use(loggingMiddleware(s.logger))

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/events", s.handleEnqueueEvent)
		r.Get("/status", s.handleStatus)
		r.Get("/healthz", s.handleHealth)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
