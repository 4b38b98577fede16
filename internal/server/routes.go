package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)

	if s.hub != nil {
		s.router.Get("/ws", s.hub.HandleWS)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(limitBody)
		r.Use(corsMiddleware(s.corsOrigin))

		// Artwork is raw image bytes, everything else is JSON.
		r.Get("/playback/image", s.handlePlaybackImage)

		r.Group(func(jr chi.Router) {
			jr.Use(jsonContentType)

			jr.Get("/version", s.handleVersion)
			jr.Get("/playback", s.handleGetPlayback)

			jr.Get("/provider", s.handleGetProvider)
			jr.Post("/provider", s.handleActivateProvider)
			jr.Delete("/provider", s.handleDeactivateProvider)
			jr.Post("/provider/validate", s.handleValidateProvider)

			jr.Get("/settings", s.handleGetSettings)
			jr.Put("/settings/{key}", s.handleSetSetting)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.store.Ping(); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"error"}`))
		return
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
