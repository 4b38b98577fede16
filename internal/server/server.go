// Package server exposes the daemon's HTTP surface: the websocket upgrade
// endpoint for paired displays and a small JSON API for the host UI.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"glancehub/internal/hub"
	"glancehub/internal/playback"
	"glancehub/internal/store"
	"glancehub/internal/version"
)

type Server struct {
	router     chi.Router
	store      *store.Store
	manager    *playback.Manager
	hub        *hub.Hub
	checker    *version.Checker
	corsOrigin string
}

type Option func(*Server)

func WithCORSOrigin(origin string) Option {
	return func(s *Server) { s.corsOrigin = origin }
}

func WithManager(m *playback.Manager) Option {
	return func(s *Server) { s.manager = m }
}

func WithHub(h *hub.Hub) Option {
	return func(s *Server) { s.hub = h }
}

func WithVersionChecker(c *version.Checker) Option {
	return func(s *Server) { s.checker = c }
}

func NewServer(st *store.Store, opts ...Option) *Server {
	srv := &Server{
		router: chi.NewRouter(),
		store:  st,
	}
	for _, o := range opts {
		o(srv)
	}
	srv.router.Use(middleware.Logger)
	srv.router.Use(middleware.Recoverer)
	srv.routes()
	return srv
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
