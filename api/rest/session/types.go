package session

import (
	"net/http"

	"codeberg.org/vestilook/server/internal/auth"
)

const (
	EventSignedIn  = "SIGNED_IN"
	EventSignedOut = "SIGNED_OUT"
)

// Bridge stores and clears the browser session cookies
type Bridge interface {
	SaveSession(w http.ResponseWriter, r *http.Request, tokens auth.SessionTokens) (*auth.Claims, error)
	ClearSession(w http.ResponseWriter, r *http.Request) error
}

// Request mirrors the auth state change events the browser forwards
type Request struct {
	Event   string              `json:"event" binding:"required"`
	Session *auth.SessionTokens `json:"session,omitempty"`
}
