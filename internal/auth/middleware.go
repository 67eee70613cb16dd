package auth

import (
	"strings"

	apierrors "codeberg.org/vestilook/server/internal/errors"
	"github.com/gin-gonic/gin"
)

// validates the access token and adds user info to context. the token is
// read from the Authorization header, then the session cookie, then the
// token query parameter on websocket upgrades. browser navigations without
// a valid token are redirected to the login page.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := a.tokenFrom(c)
		if token == "" {
			a.reject(c, "authentication required")
			return
		}

		claims, err := a.ValidateToken(token)
		if err != nil {
			a.reject(c, "invalid or expired token")
			return
		}

		c.Set(UserIDKey, claims.UserID())
		c.Set(UserEmailKey, claims.Email)

		c.Next()
	}
}

func (a *Authenticator) tokenFrom(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}

		return ""
	}

	if token := a.sessionToken(c.Request); token != "" {
		return token
	}

	if isWebsocketUpgrade(c) {
		return c.Query(tokenQueryParam)
	}

	return ""
}

func (a *Authenticator) reject(c *gin.Context, message string) {
	if apierrors.WantsHTML(c) && a.loginPath != "" {
		apierrors.RedirectToLogin(c, a.loginPath)
		return
	}

	apierrors.Unauthorized(c, message)
}

func isWebsocketUpgrade(c *gin.Context) bool {
	return strings.EqualFold(c.GetHeader("Upgrade"), "websocket")
}

// extracts user_id from context after Middleware
func GetUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return "", false
	}

	id, ok := userID.(string)
	return id, ok && id != ""
}
