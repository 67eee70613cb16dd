package session

import (
	"errors"
	"net/http"

	"codeberg.org/vestilook/server/internal/auth"
	apierrors "codeberg.org/vestilook/server/internal/errors"
	"github.com/gin-gonic/gin"
)

// Handler godoc
// @Summary Sync the browser session
// @Description Stores the session cookies on SIGNED_IN and clears them on SIGNED_OUT
// @Tags auth
// @Accept json
// @Param request body Request true "Auth state change"
// @Success 204
// @Failure 400 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /api/auth/session [post]
func Handler(bridge Bridge) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req Request
		if err := c.ShouldBindJSON(&req); err != nil {
			apierrors.InvalidRequest(c, "invalid session payload", err)
			return
		}

		switch req.Event {
		case EventSignedIn:
			if req.Session == nil || req.Session.AccessToken == "" {
				apierrors.InvalidRequest(c, "session is required for SIGNED_IN", nil)
				return
			}

			if _, err := bridge.SaveSession(c.Writer, c.Request, *req.Session); err != nil {
				if errors.Is(err, auth.ErrInvalidToken) {
					apierrors.InvalidRequest(c, "invalid access token", nil)
					return
				}

				apierrors.InternalError(c, "failed to store session", err)
				return
			}

		case EventSignedOut:
			if err := bridge.ClearSession(c.Writer, c.Request); err != nil {
				apierrors.InternalError(c, "failed to clear session", err)
				return
			}

		default:
			apierrors.InvalidRequest(c, "unsupported event "+req.Event, nil)
			return
		}

		c.Status(http.StatusNoContent)
	}
}
