package server

import (
	"net/http"

	"glancehub/internal/version"
)

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if s.checker == nil {
		writeJSON(w, http.StatusOK, version.Info{Current: "dev"})
		return
	}
	writeJSON(w, http.StatusOK, s.checker.Info())
}
