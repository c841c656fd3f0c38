package testutil

import (
	"net/http"

	"taxportal/pkg/requestcontext"
)

// WithSession adds a browser session id to the request context.
// This simulates what the session cookie middleware does for every request.
func WithSession(req *http.Request, sessionID string) *http.Request {
	return req.WithContext(requestcontext.WithSessionID(req.Context(), sessionID))
}
