package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/yourorg/sessionmock/internal/config"
	"github.com/yourorg/sessionmock/internal/fixture"
	"github.com/yourorg/sessionmock/internal/gamestate"
	"github.com/yourorg/sessionmock/internal/presence"
)

// Server routes the hand-written backend endpoints and replays fixtures for
// everything else.
type Server struct {
	cfg      *config.Config
	index    *fixture.Index
	store    gamestate.Store
	presence *presence.Handler
	log      *slog.Logger
	mux      *http.ServeMux

	names gamestate.NameFunc
	now   func() time.Time
}

// New constructs a new Server with routes registered.
func New(cfg *config.Config, idx *fixture.Index, st gamestate.Store, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if idx == nil {
		return nil, errors.New("fixture index is nil")
	}
	if st == nil {
		return nil, errors.New("store is nil")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	srv := &Server{
		cfg:   cfg,
		index: idx,
		store: st,
		presence: presence.NewHandler(presence.Config{
			Interval:  cfg.Presence.HeartbeatInterval,
			MaxChunks: cfg.Presence.MaxChunks,
			WebSocket: cfg.Presence.WebSocket,
		}, logger),
		log:   logger,
		mux:   http.NewServeMux(),
		names: gamestate.RandomName,
		now:   func() time.Time { return time.Now().UTC() },
	}
	srv.registerRoutes()
	return srv, nil
}

// Handler returns the http handler with logging and panic recovery.
func (s *Server) Handler() http.Handler {
	return s.recoverPanics(s.logRequests(http.HandlerFunc(s.route)))
}

// route sends requests for non-canonical paths ("//", "/./", "/../")
// straight to replay. ServeMux would answer them with a redirect to the
// cleaned path, but fixtures are keyed on the path as recorded, and no
// explicit route owns such a path.
func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodConnect && cleanPath(r.URL.Path) != r.URL.Path {
		s.handleReplay(w, r)
		return
	}
	s.mux.ServeHTTP(w, r)
}

// cleanPath mirrors the canonical form ServeMux redirects to.
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	np := path.Clean(p)
	if p[len(p)-1] == '/' && np != "/" {
		np += "/"
	}
	return np
}

// registerRoutes wires the explicit routes. The catch-all "/" replays
// fixtures, so the explicit routes win for the paths they own and the store
// is never reachable from replay.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.Handle("GET /presence/connect", s.presence)

	s.mux.HandleFunc("GET /o/_instances/{id}/metadata", s.handleInstanceMetadata)
	s.mux.HandleFunc("POST /o/_instances/{id}/associate_with_session", s.handleAssociateInstance)

	s.mux.HandleFunc("POST /o/_sessions/create", s.handleCreateSession)
	for _, m := range []string{http.MethodPut, http.MethodPatch, http.MethodPost} {
		s.mux.HandleFunc(m+" /o/_sessions/{id}/metadata", s.handleUpdateSessionMetadata)
	}
	s.mux.HandleFunc("POST /o/_sessions/{id}/touch", s.handleTouchSession)

	s.mux.HandleFunc("/", s.handleReplay)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListSessions()
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	sessions := len(list)
	writeJSON(w, http.StatusOK, map[string]any{
		"service":          "sessionmock",
		"status":           "ok",
		"fixtures":         s.index.Len(),
		"key_policy":       s.index.Policy(),
		"presence_streams": s.presence.Active(),
		"sessions":         sessions,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error":   code,
		"message": message,
	})
}
