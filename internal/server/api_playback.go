package server

import (
	"errors"
	"net/http"

	"glancehub/internal/playback"
)

func (s *Server) handleGetPlayback(w http.ResponseWriter, r *http.Request) {
	if s.manager == nil {
		writeError(w, http.StatusServiceUnavailable, "playback not configured")
		return
	}
	data, err := s.manager.GetPlayback(r.Context())
	if err != nil {
		if errors.Is(err, playback.ErrNoHandler) {
			writeError(w, http.StatusNotFound, "no active playback provider")
			return
		}
		writeError(w, http.StatusBadGateway, "fetching playback: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) handlePlaybackImage(w http.ResponseWriter, r *http.Request) {
	if s.manager == nil {
		writeError(w, http.StatusServiceUnavailable, "playback not configured")
		return
	}
	img, err := s.manager.GetImage(r.Context())
	if err != nil {
		if errors.Is(err, playback.ErrNoHandler) {
			writeError(w, http.StatusNotFound, "no active playback provider")
			return
		}
		writeError(w, http.StatusBadGateway, "fetching artwork: "+err.Error())
		return
	}
	if len(img) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(img))
	_, _ = w.Write(img)
}
