package server

import (
	"errors"
	"net/http"

	"github.com/yourorg/sessionmock/internal/fixture"
)

const notFoundBody = "Not found"

// handleReplay answers from the fixture index. A miss is the designed 404,
// not a server fault.
func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	resp, err := s.index.Resolve(r.Method, r.URL.RequestURI())
	if err != nil {
		var miss *fixture.MatchError
		if !errors.As(err, &miss) {
			s.log.Error("fixture lookup failed", "method", r.Method, "path", r.URL.RequestURI(), "err", err)
		} else {
			s.log.Info("no fixture matched", "method", r.Method, "path", r.URL.RequestURI(), "key", miss.Key)
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(notFoundBody))
		return
	}
	w.Header().Set("Content-Type", resp.ContentType)
	w.WriteHeader(resp.Status)
	// Status codes such as 204 forbid a body; the write error is expected.
	_, _ = w.Write(resp.Body)
}
