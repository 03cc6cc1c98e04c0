package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/scopelink-core/internal/command"
)

type directionRequest struct {
	Direction string `json:"direction"`
}

type sceneryRequest struct {
	Enabled bool `json:"enabled"`
}

type syncRequest struct {
	RA  *float64 `json:"ra"`
	Dec *float64 `json:"dec"`
}

// writeResult answers a dispatched command.
func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, res *command.Result, err error) {
	if err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req directionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.core.Move(r.Context(), command.Direction(req.Direction))
	s.writeResult(w, r, res, err)
}

func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request) {
	var req directionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.core.AdjustFocus(r.Context(), command.FocusDirection(req.Direction))
	s.writeResult(w, r, res, err)
}

func (s *Server) handlePark(w http.ResponseWriter, r *http.Request) {
	res, err := s.core.Park(r.Context())
	s.writeResult(w, r, res, err)
}

func (s *Server) handleGoto(w http.ResponseWriter, r *http.Request) {
	var req command.GotoRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.core.GotoTarget(r.Context(), req)
	s.writeResult(w, r, res, err)
}

// handleScenery toggles scenery mode. The flag flips before the device
// answers, so the response reflects it even when the command then fails.
func (s *Server) handleScenery(w http.ResponseWriter, r *http.Request) {
	var req sceneryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.core.SetSceneryMode(r.Context(), req.Enabled); err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"scenery_mode": s.core.SceneryMode()})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RA == nil || req.Dec == nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "ra and dec are required")
		return
	}
	if err := s.core.Sync(r.Context(), *req.RA, *req.Dec); err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePlateSolve(w http.ResponseWriter, r *http.Request) {
	job, err := s.core.PlateSolve(r.Context())
	if err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleGetPlateSolve(w http.ResponseWriter, r *http.Request) {
	job, err := s.core.Telemetry().Job(chi.URLParam(r, "id"))
	if err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}
