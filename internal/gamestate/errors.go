package gamestate

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrSessionNotFound is returned by GetSession for unknown ids.
var ErrSessionNotFound = errors.New("session not found")

// StateError reports an operation on a session or instance that is not in a
// state supporting it, such as associating an instance that was never
// created.
type StateError struct {
	Kind   string
	ID     string
	Op     string
	Reason string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s %q: cannot %s: %s", e.Kind, e.ID, e.Op, e.Reason)
}

// StatusCode returns the HTTP status code for this error.
func (e *StateError) StatusCode() int {
	return http.StatusConflict
}
