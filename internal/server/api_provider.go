package server

import (
	"encoding/json"
	"net/http"

	"glancehub/internal/models"
	"glancehub/internal/playback"
)

type providerRequest struct {
	Provider string                `json:"provider"`
	Config   models.ProviderConfig `json:"config"`
}

func (s *Server) handleGetProvider(w http.ResponseWriter, r *http.Request) {
	if s.manager == nil {
		writeError(w, http.StatusServiceUnavailable, "playback not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"provider": s.manager.Active()})
}

// handleValidateProvider checks credentials without activating anything.
// Invalid credentials are a normal outcome, not an error status.
func (s *Server) handleValidateProvider(w http.ResponseWriter, r *http.Request) {
	var req providerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h, err := playback.NewHandler(req.Provider)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	valid, err := h.ValidateConfig(r.Context(), req.Config)
	if err != nil {
		writeError(w, http.StatusBadGateway, "validating credentials: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

// handleActivateProvider validates, persists encrypted credentials and
// activates the provider so it survives a daemon restart.
func (s *Server) handleActivateProvider(w http.ResponseWriter, r *http.Request) {
	if s.manager == nil {
		writeError(w, http.StatusServiceUnavailable, "playback not configured")
		return
	}

	var req providerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h, err := playback.NewHandler(req.Provider)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	valid, err := h.ValidateConfig(r.Context(), req.Config)
	if err != nil {
		writeError(w, http.StatusBadGateway, "validating credentials: "+err.Error())
		return
	}
	if !valid {
		writeError(w, http.StatusUnprocessableEntity, "credentials rejected by provider")
		return
	}

	if err := s.manager.Activate(r.Context(), h, req.Config); err != nil {
		writeError(w, http.StatusBadGateway, "activating provider: "+err.Error())
		return
	}

	if s.store.HasEncryptor() {
		if err := s.store.StoreProviderCredentials(req.Provider, req.Config); err != nil {
			writeError(w, http.StatusInternalServerError, "storing credentials: "+err.Error())
			return
		}
	}
	if err := s.store.SetActiveProvider(req.Provider); err != nil {
		writeError(w, http.StatusInternalServerError, "recording provider: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"provider": req.Provider})
}

func (s *Server) handleDeactivateProvider(w http.ResponseWriter, r *http.Request) {
	if s.manager == nil {
		writeError(w, http.StatusServiceUnavailable, "playback not configured")
		return
	}

	provider := s.manager.Active()
	s.manager.Deactivate()

	if provider != "" {
		if err := s.store.DeleteProviderCredentials(provider); err != nil {
			writeError(w, http.StatusInternalServerError, "deleting credentials: "+err.Error())
			return
		}
	}
	if err := s.store.SetActiveProvider(""); err != nil {
		writeError(w, http.StatusInternalServerError, "clearing provider: "+err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
