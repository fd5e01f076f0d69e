// Package client implements the sync operations of the SDK: every call
// builds a request from the current session state, delegates transport to
// the configured *http.Client, and applies the response to the local cache
// transactionally. This file centralizes the error values callers are
// expected to check with errors.Is / errors.As.
package client

import (
	"errors"
	"fmt"

	"github.com/tidewatch/tidesync/cache"
)

var (
	// ErrNoSession is returned by operations that require an authenticated
	// session when the cache holds none. Aliases the cache sentinel so both
	// layers report the same value.
	ErrNoSession = cache.ErrNoSession

	// ErrMissingSessionHeader is returned when a sign-in response succeeded
	// but carried no session token header. This is an authentication
	// failure, not a transport failure.
	ErrMissingSessionHeader = errors.New("no session token returned in response headers")

	// ErrUnknownEnvironment is returned when an environment name does not
	// resolve to a known deployment.
	ErrUnknownEnvironment = errors.New("unknown environment")

	// ErrMissingNoteID is returned when a server response that must carry a
	// note id does not, or when an operation needs an id the note lacks.
	ErrMissingNoteID = errors.New("note id missing")
)

// APIError reports a non-2xx response. The method name identifies which
// sync operation failed.
type APIError struct {
	Method     string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: server returned status %d", e.Method, e.StatusCode)
}
