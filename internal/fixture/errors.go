package fixture

import (
	"fmt"
	"net/http"
)

// ConfigurationError reports a malformed or missing fixture corpus. It is
// fatal at startup.
type ConfigurationError struct {
	Source string
	// Entry is the zero-based corpus position, or -1 when the corpus as a
	// whole is unusable.
	Entry int
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	src := e.Source
	if src == "" {
		src = "corpus"
	}
	switch {
	case e.Entry < 0:
		return fmt.Sprintf("fixture %s: %v", src, e.Err)
	case e.Field != "":
		return fmt.Sprintf("fixture %s: entry %d: %s: %v", src, e.Entry, e.Field, e.Err)
	default:
		return fmt.Sprintf("fixture %s: entry %d: %v", src, e.Entry, e.Err)
	}
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// MatchError is returned by Resolve when no recorded exchange answers the
// request. It is an expected outcome, not a fault.
type MatchError struct {
	Method string
	Key    string
	// UnknownMethod is set when the verb is never indexed.
	UnknownMethod bool
}

func (e *MatchError) Error() string {
	if e.UnknownMethod {
		return fmt.Sprintf("no fixtures for method %s", e.Method)
	}
	return fmt.Sprintf("no fixture for %s %s", e.Method, e.Key)
}

// StatusCode returns the HTTP status code for this error.
func (e *MatchError) StatusCode() int {
	return http.StatusNotFound
}
