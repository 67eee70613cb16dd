package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// validates the access token and stores the session in cookies so browser
// navigations and websocket upgrades are authenticated without a header.
// a rejected token is reported as ErrInvalidToken; any other error comes
// from the cookie store.
func (a *Authenticator) SaveSession(w http.ResponseWriter, r *http.Request, tokens SessionTokens) (*Claims, error) {
	claims, err := a.ValidateToken(tokens.AccessToken)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	session, err := a.store.New(r, sessionName)
	if err != nil && session == nil {
		return nil, err
	}

	session.Values[accessTokenKey] = tokens.AccessToken
	session.Values[refreshTokenKey] = tokens.RefreshToken

	if tokens.ExpiresIn > 0 {
		opts := *session.Options
		opts.MaxAge = tokens.ExpiresIn
		session.Options = &opts
	}

	if err := session.Save(r, w); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return claims, nil
}

// expires the session cookies
func (a *Authenticator) ClearSession(w http.ResponseWriter, r *http.Request) error {
	session, err := a.store.New(r, sessionName)
	if err != nil && session == nil {
		return err
	}

	session.Values = map[any]any{}

	opts := *session.Options
	opts.MaxAge = -1
	session.Options = &opts

	return session.Save(r, w)
}

// returns the access token stored in the session cookie, if any
func (a *Authenticator) sessionToken(r *http.Request) string {
	session, err := a.store.Get(r, sessionName)
	if err != nil {
		return ""
	}

	token, _ := session.Values[accessTokenKey].(string)
	return token
}
