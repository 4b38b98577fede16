package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.GetDisplaySettings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading settings: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleSetSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.store.SetDisplaySetting(key, req.Value); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Keep paired displays in sync with host-side changes.
	if s.hub != nil {
		if all, err := s.store.GetDisplaySettings(); err == nil {
			s.hub.Broadcast("settings", all)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": req.Value})
}
