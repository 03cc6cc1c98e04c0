package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/scopelink-core/internal/core"
	"github.com/nerrad567/scopelink-core/internal/device"
)

// addDeviceRequest is the body of POST /devices.
type addDeviceRequest struct {
	Name         string `json:"name"`
	SerialNumber string `json:"serial_number"`
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ProductModel string `json:"product_model"`
	Description  string `json:"description"`
}

func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.core.DeviceList())
}

// handleRefreshDevices runs a discovery pass. A backend failure is not an
// HTTP error: the response names the fallback source that was used.
func (s *Server) handleRefreshDevices(w http.ResponseWriter, r *http.Request) {
	res, err := s.core.RefreshDevices(r.Context())
	if err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	list := s.core.DeviceList()
	writeJSON(w, http.StatusOK, map[string]any{
		"source":   res.Source,
		"error":    res.Error,
		"devices":  list.Devices,
		"selected": list.Selected,
	})
}

func (s *Server) handleAddDevice(w http.ResponseWriter, r *http.Request) {
	var req addDeviceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Host == "" || req.Port <= 0 || req.Port > 65535 {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "host and a valid port are required")
		return
	}

	d, err := s.core.AddDevice(r.Context(), device.Device{
		Name:         req.Name,
		SerialNumber: req.SerialNumber,
		Host:         req.Host,
		Port:         req.Port,
		ProductModel: req.ProductModel,
		Description:  req.Description,
	})
	if err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleRemoveDevice(w http.ResponseWriter, r *http.Request) {
	if err := s.core.RemoveDevice(r.Context(), chi.URLParam(r, "key")); err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSelectDevice selects a device and waits for the first connect
// attempt. A failed connect still leaves the device selected; the
// response carries the connection status either way.
func (s *Server) handleSelectDevice(w http.ResponseWriter, r *http.Request) {
	d, err := s.core.SelectDevice(r.Context(), chi.URLParam(r, "key"))
	if errors.Is(err, device.ErrDeviceNotFound) {
		s.writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"device":     d,
		"connection": s.core.ConnectionStatus(),
	})
}

func (s *Server) handleConnectionStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.core.ConnectionStatus())
}

// handleReconnect reports a failed dial through the connection status,
// as handleSelectDevice does.
func (s *Server) handleReconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.core.Reconnect(r.Context()); errors.Is(err, core.ErrNoDeviceSelected) {
		s.writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.core.ConnectionStatus())
}
