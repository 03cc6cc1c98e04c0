package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/scopelink-core/internal/core"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/metrics", s.handleMetrics)
			r.Get("/ws", s.handleWebSocket)

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Post("/", s.handleAddDevice)
				r.Post("/refresh", s.handleRefreshDevices)
				r.Route("/{key}", func(r chi.Router) {
					r.Delete("/", s.handleRemoveDevice)
					r.Post("/select", s.handleSelectDevice)
				})
			})

			r.Route("/connection", func(r chi.Router) {
				r.Get("/", s.handleConnectionStatus)
				r.Post("/reconnect", s.handleReconnect)
			})

			r.Route("/commands", func(r chi.Router) {
				r.Post("/move", s.handleMove)
				r.Post("/focus", s.handleFocus)
				r.Post("/park", s.handlePark)
				r.Post("/goto", s.handleGoto)
				r.Put("/scenery", s.handleScenery)
				r.Post("/sync", s.handleSync)
			})

			r.Route("/plate-solve", func(r chi.Router) {
				r.Post("/", s.handlePlateSolve)
				r.Get("/{id}", s.handleGetPlateSolve)
			})

			r.Route("/session", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Post("/start", s.handleStartSession)
				r.Post("/pause", s.handlePauseSession)
				r.Post("/resume", s.handleResumeSession)
				r.Post("/end", s.handleEndSession)
				r.Put("/notes", s.handleSessionNotes)
				r.Put("/location", s.handleSessionLocation)
				r.Put("/equipment", s.handleSessionEquipment)
				r.Put("/conditions", s.handleSessionConditions)
				r.Delete("/past/{id}", s.handleDeletePastSession)
			})

			r.Route("/observations", func(r chi.Router) {
				r.Get("/", s.handleListObservations)
				r.Post("/", s.handleSaveObservation)
				r.Delete("/{id}", s.handleDeleteObservation)
				r.Route("/draft", func(r chi.Router) {
					r.Get("/", s.handleGetDraft)
					r.Put("/target", s.handleDraftTarget)
					r.Put("/notes", s.handleDraftNotes)
					r.Put("/rating", s.handleDraftRating)
				})
			})

			r.Route("/telemetry", func(r chi.Router) {
				r.Get("/", s.handleSelectedTelemetry)
				r.Get("/{key}", s.handleDeviceTelemetry)
			})

			r.Route("/notices", func(r chi.Router) {
				r.Get("/", s.handleListNotices)
				r.Post("/{id}/dismiss", s.handleDismissNotice)
			})

			r.Get("/controls", s.handleControls)
			r.Route("/ui/{scope}", func(r chi.Router) {
				r.Get("/", s.handleGetUIState)
				r.Put("/", s.handleSetUIState)
			})
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"version":    s.version,
		"connection": s.core.ConnectionStatus().State,
	})
}

// channelSnapshot primes WebSocket subscriptions with current state.
func (s *Server) channelSnapshot(channel string) (any, bool) {
	switch channel {
	case core.ChannelConnection:
		return s.core.ConnectionStatus(), true
	case core.ChannelDevices:
		return s.core.DeviceList(), true
	case core.ChannelSession:
		return s.core.Sessions().State(), true
	case core.ChannelObservations:
		return s.core.Recorder().Entries(), true
	case core.ChannelTelemetry:
		sel := s.core.DeviceList().Selected
		if sel == nil {
			return nil, false
		}
		snap, ok := s.core.Telemetry().Latest(sel.Key())
		return snap, ok
	case core.ChannelNotices:
		return s.core.Notices().List(false), true
	case core.ChannelControls:
		return s.core.Controls(), true
	}
	return nil, false
}
