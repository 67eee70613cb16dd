package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/sessions"
)

// context keys set by the middleware
const (
	UserIDKey    = "user_id"
	UserEmailKey = "user_email"
)

const (
	sessionName     = "vestilook_session"
	accessTokenKey  = "access_token"
	refreshTokenKey = "refresh_token"

	// query parameter browsers use to authenticate websocket upgrades
	tokenQueryParam = "token"

	defaultSessionMaxAge = 7 * 24 * time.Hour
)

// represents the access token claims issued by the auth provider. the
// subject is the user id.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type Config struct {
	JWTSecret     string
	Audience      string
	SessionSecret string
	LoginPath     string
	SecureCookies bool
}

// Authenticator validates access tokens and bridges them into cookies
type Authenticator struct {
	secret    []byte
	audience  string
	loginPath string
	store     sessions.Store
	now       func() time.Time
}

// SessionTokens is the session the browser hands over after sign in
type SessionTokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"`
}
