package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/scopelink-core/internal/observation"
)

type ratingRequest struct {
	Rating int `json:"rating"`
}

func (s *Server) handleListObservations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.core.Recorder().Entries())
}

// handleSaveObservation logs the draft. Without a target there is nothing
// to log and the response is 204.
func (s *Server) handleSaveObservation(w http.ResponseWriter, _ *http.Request) {
	entry, ok := s.core.SaveObservation()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleDeleteObservation(w http.ResponseWriter, r *http.Request) {
	if err := s.core.DeleteObservation(chi.URLParam(r, "id")); err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetDraft(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.core.Recorder().Draft())
}

// handleDraftTarget sets the draft target; a JSON null clears it.
func (s *Server) handleDraftTarget(w http.ResponseWriter, r *http.Request) {
	var target *observation.Target
	if !decodeJSON(w, r, &target) {
		return
	}
	if target != nil && target.Name == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "target name is required")
		return
	}
	s.core.Recorder().SetTarget(target)
	writeJSON(w, http.StatusOK, s.core.Recorder().Draft())
}

func (s *Server) handleDraftNotes(w http.ResponseWriter, r *http.Request) {
	var req notesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.core.Recorder().SetNotes(req.Notes)
	writeJSON(w, http.StatusOK, s.core.Recorder().Draft())
}

func (s *Server) handleDraftRating(w http.ResponseWriter, r *http.Request) {
	var req ratingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.core.Recorder().SetRating(req.Rating); err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.core.Recorder().Draft())
}
