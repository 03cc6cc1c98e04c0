package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/scopelink-core/internal/core"
)

// handleSelectedTelemetry returns the latest telemetry of the selected
// device, or 204 when none has arrived yet.
func (s *Server) handleSelectedTelemetry(w http.ResponseWriter, r *http.Request) {
	sel := s.core.DeviceList().Selected
	if sel == nil {
		s.writeCoreError(w, r, core.ErrNoDeviceSelected)
		return
	}
	s.writeTelemetry(w, sel.Key())
}

func (s *Server) handleDeviceTelemetry(w http.ResponseWriter, r *http.Request) {
	s.writeTelemetry(w, chi.URLParam(r, "key"))
}

func (s *Server) writeTelemetry(w http.ResponseWriter, key string) {
	snap, ok := s.core.Telemetry().Latest(key)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleListNotices lists active notices; ?all=true includes dismissed.
func (s *Server) handleListNotices(w http.ResponseWriter, r *http.Request) {
	all, _ := strconv.ParseBool(r.URL.Query().Get("all")) //nolint:errcheck // invalid means false
	writeJSON(w, http.StatusOK, s.core.Notices().List(all))
}

func (s *Server) handleDismissNotice(w http.ResponseWriter, r *http.Request) {
	if err := s.core.Notices().Dismiss(chi.URLParam(r, "id")); err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleControls(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.core.Controls())
}

func (s *Server) handleGetUIState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.core.UIState(chi.URLParam(r, "scope")))
}

// handleSetUIState merges the posted values into a UI scope.
func (s *Server) handleSetUIState(w http.ResponseWriter, r *http.Request) {
	var values map[string]any
	if !decodeJSON(w, r, &values) {
		return
	}
	if len(values) == 0 {
		writeBadRequest(w, "at least one value is required")
		return
	}
	scope := chi.URLParam(r, "scope")
	for key, v := range values {
		s.core.SetUIValue(scope, key, v)
	}
	writeJSON(w, http.StatusOK, s.core.UIState(scope))
}
