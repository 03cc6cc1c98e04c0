package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/scopelink-core/internal/session"
)

type startSessionRequest struct {
	Location  *session.Location `json:"location"`
	Equipment []string          `json:"equipment"`
}

type notesRequest struct {
	Notes string `json:"notes"`
}

type equipmentRequest struct {
	Equipment []string `json:"equipment"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.core.Sessions().State())
}

// handleStartSession starts a session. An omitted location or equipment
// list falls back to what was pre-filled through the PUT endpoints.
func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	st := s.core.Sessions().State()
	loc := st.Location
	if req.Location != nil {
		loc = *req.Location
	}
	equipment := st.Equipment
	if req.Equipment != nil {
		equipment = req.Equipment
	}

	sess, err := s.core.StartSession(loc, equipment)
	if err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handlePauseSession(w http.ResponseWriter, r *http.Request) {
	s.sessionTransition(w, r, s.core.PauseSession)
}

func (s *Server) handleResumeSession(w http.ResponseWriter, r *http.Request) {
	s.sessionTransition(w, r, s.core.ResumeSession)
}

func (s *Server) sessionTransition(w http.ResponseWriter, r *http.Request, fn func() error) {
	if err := fn(); err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.core.Sessions().State())
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.core.EndSession()
	if err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSessionNotes(w http.ResponseWriter, r *http.Request) {
	var req notesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.core.Sessions().SetNotes(req.Notes)
	writeJSON(w, http.StatusOK, s.core.Sessions().State())
}

func (s *Server) handleSessionLocation(w http.ResponseWriter, r *http.Request) {
	var loc session.Location
	if !decodeJSON(w, r, &loc) {
		return
	}
	if loc.Latitude != nil && (*loc.Latitude < -90 || *loc.Latitude > 90) {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "latitude must be within [-90, 90]")
		return
	}
	if loc.Longitude != nil && (*loc.Longitude < -180 || *loc.Longitude > 180) {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "longitude must be within [-180, 180]")
		return
	}
	if loc.Bortle != nil && (*loc.Bortle < 1 || *loc.Bortle > 9) {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "bortle must be within [1, 9]")
		return
	}
	s.core.Sessions().SetLocation(loc)
	writeJSON(w, http.StatusOK, s.core.Sessions().State())
}

func (s *Server) handleSessionEquipment(w http.ResponseWriter, r *http.Request) {
	var req equipmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.core.Sessions().SetEquipment(req.Equipment)
	writeJSON(w, http.StatusOK, s.core.Sessions().State())
}

func (s *Server) handleSessionConditions(w http.ResponseWriter, r *http.Request) {
	var cond session.Conditions
	if !decodeJSON(w, r, &cond) {
		return
	}
	s.core.Sessions().SetConditions(cond)
	writeJSON(w, http.StatusOK, s.core.Sessions().State())
}

func (s *Server) handleDeletePastSession(w http.ResponseWriter, r *http.Request) {
	if err := s.core.Sessions().DeletePastSession(chi.URLParam(r, "id")); err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
