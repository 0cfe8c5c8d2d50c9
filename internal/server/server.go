package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"panorama-viewer/internal/panorama"
)

type Config struct {
	Addr    string // e.g. ":5002"
	Service *panorama.Service

	// Checks are probed by /health and /ready. A nil Pinger reports the
	// component as not configured. "database" gates readiness.
	Checks map[string]panorama.Pinger

	Version string

	// AllowedOrigins defaults to DefaultAllowedOrigins.
	AllowedOrigins []string
}

type Server struct {
	httpServer *http.Server
	svc        *panorama.Service
	checks     map[string]panorama.Pinger
	version    string
}

func New(cfg Config) *Server {
	s := &Server{
		svc:     cfg.Service,
		checks:  cfg.Checks,
		version: cfg.Version,
	}
	if s.svc == nil {
		s.svc = panorama.NewService(nil, panorama.Options{})
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = DefaultAllowedOrigins
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(origins),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes(origins []string) http.Handler {
	r := chi.NewRouter()

	// requestID -> logging/metrics -> recover -> headers -> cors -> routes
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(securityHeadersMiddleware)
	r.Use(corsMiddleware(origins))
	r.Use(middleware.Compress(5, "application/json"))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeErrorStatus(w, http.StatusNotFound, "not_found", "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeErrorStatus(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	r.Get("/status", s.statusHandler)
	r.Get("/health", s.HandleHealth)
	r.Get("/ready", s.HandleReady)
	r.Get("/live", s.HandleLive)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/panoramas", func(r chi.Router) {
		r.Get("/", s.listHandler)
		r.Post("/", s.uploadHandler)
		r.Get("/{id}", s.metadataHandler)
		r.Put("/{id}", s.updateHandler)
		r.Delete("/{id}", s.deleteHandler)
		r.Get("/{id}/image", s.imageHandler)
	})

	r.Route("/api/albums", func(r chi.Router) {
		r.Get("/", s.listAlbumsHandler)
		r.Post("/", s.createAlbumHandler)
		r.Get("/{id}", s.getAlbumHandler)
		r.Put("/{id}", s.updateAlbumHandler)
		r.Delete("/{id}", s.deleteAlbumHandler)
	})

	return r
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	err := s.httpServer.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
