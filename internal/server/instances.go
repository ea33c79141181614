package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/yourorg/sessionmock/internal/gamestate"
)

type instanceMetadataResponse struct {
	Attributes  map[string]any `json:"attributes"`
	DisplayName string         `json:"display_name"`
	Owner       string         `json:"owner"`
}

// handleInstanceMetadata fabricates metadata. Every call draws a new display
// name and replaces the stored instance.
func (s *Server) handleInstanceMetadata(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	inst := &gamestate.Instance{ID: id, DisplayName: s.names(), UpdatedAt: s.now()}
	if err := s.store.PutInstance(inst); err != nil {
		writeError(w, http.StatusInternalServerError, "store_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, instanceMetadataResponse{
		Attributes:  map[string]any{},
		DisplayName: inst.DisplayName,
		Owner:       s.cfg.Sessions.OwnerID,
	})
}

func (s *Server) handleAssociateInstance(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json: "+err.Error())
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "session_id required")
		return
	}
	inst, err := s.store.AssociateInstance(id, req.SessionID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"instance_id":  inst.ID,
		"session_id":   inst.SessionID,
		"display_name": inst.DisplayName,
	})
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	var stateErr *gamestate.StateError
	switch {
	case errors.As(err, &stateErr):
		s.log.Warn("rejected state transition", "kind", stateErr.Kind, "id", stateErr.ID, "op", stateErr.Op)
		writeError(w, stateErr.StatusCode(), "invalid_state", stateErr.Error())
	case errors.Is(err, gamestate.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "store_failed", err.Error())
	}
}
