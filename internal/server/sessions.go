package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yourorg/sessionmock/internal/gamestate"
)

type createSessionRequest struct {
	ID         string                     `json:"id"`
	Name       string                     `json:"name"`
	Region     string                     `json:"region"`
	SlotCount  int                        `json:"slot_count"`
	JoinParams gamestate.JoinParams       `json:"join_params"`
	Attributes map[string]json.RawMessage `json:"attributes"`
}

type sessionResponse struct {
	ID               string                     `json:"id"`
	Name             string                     `json:"name"`
	Region           string                     `json:"region"`
	SlotCount        int                        `json:"slot_count"`
	FilledSlots      int                        `json:"filled_slots"`
	ReservationCount int                        `json:"reservation_count"`
	Purpose          string                     `json:"purpose"`
	State            string                     `json:"state"`
	JoinParams       gamestate.JoinParams       `json:"join_params"`
	Attributes       map[string]json.RawMessage `json:"attributes"`
	CreatedAt        time.Time                  `json:"created_at"`
	UpdatedAt        time.Time                  `json:"updated_at"`
}

// handleCreateSession stores the session under the caller's id, replacing
// any previous record, and answers with a backend-shaped envelope. The
// caller's state attribute is ignored: new sessions are always "created".
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json: "+err.Error())
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "id required")
		return
	}
	if req.Attributes == nil {
		req.Attributes = map[string]json.RawMessage{}
	}

	now := s.now()
	sess := &gamestate.Session{
		ID:                    req.ID,
		Address:               req.JoinParams.ServerAddress,
		Port:                  req.JoinParams.ServerPort,
		ChallengeKey:          req.JoinParams.ChallengeKey,
		SecondaryChallengeKey: req.JoinParams.SecondaryChallengeKey,
		ServerProfile:         attrString(req.Attributes, "serverProfile"),
		State:                 gamestate.StateCreated,
		Name:                  req.Name,
		Region:                req.Region,
		SlotCount:             req.SlotCount,
		JoinDisabled:          attrBool(req.Attributes, "joinDisabled"),
		GameMode:              attrString(req.Attributes, "gameMode"),
		Public:                attrBool(req.Attributes, "public"),
		Attributes:            req.Attributes,
		CreatedAt:             now,
		UpdatedAt:             now,
		LastTouchedAt:         now,
	}
	if err := s.store.CreateSession(sess); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.log.Info("session created", "session_id", sess.ID, "region", sess.Region, "purpose", sess.Purpose())

	w.Header().Set("Content-Location", "/o/_sessions/"+url.PathEscape(sess.ID))
	writeJSON(w, http.StatusCreated, sessionResponse{
		ID:         sess.ID,
		Name:       sess.Name,
		Region:     sess.Region,
		SlotCount:  sess.SlotCount,
		Purpose:    sess.Purpose(),
		State:      sess.State,
		JoinParams: sess.JoinParams(),
		Attributes: sess.Attributes,
		CreatedAt:  sess.CreatedAt,
		UpdatedAt:  sess.UpdatedAt,
	})
}

// handleUpdateSessionMetadata accepts metadata updates without applying them.
func (s *Server) handleUpdateSessionMetadata(w http.ResponseWriter, r *http.Request) {
	s.log.Debug("session metadata update ignored", "session_id", r.PathValue("id"))
	writeJSON(w, http.StatusOK, struct{}{})
}

// handleTouchSession is always accepted. Known sessions get their idle clock
// reset.
func (s *Server) handleTouchSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.TouchSession(id, s.now()); err != nil && !errors.Is(err, gamestate.ErrSessionNotFound) {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func attrString(attrs map[string]json.RawMessage, key string) string {
	var v string
	if raw, ok := attrs[key]; ok {
		_ = json.Unmarshal(raw, &v)
	}
	return v
}

// attrBool accepts JSON booleans and the strings "true"/"false".
func attrBool(attrs map[string]json.RawMessage, key string) bool {
	raw, ok := attrs[key]
	if !ok {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.EqualFold(strings.TrimSpace(s), "true")
	}
	return false
}
