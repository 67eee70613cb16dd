package errors

import (
	"net/http"
	"net/url"
	"strings"

	"codeberg.org/vestilook/server/internal/logger"
	"github.com/gin-gonic/gin"
)

// Handlers answer failures through the helpers below; they abort the gin
// context and write the {"error": {...}} envelope. Domain packages return
// wrapped errors and leave logging to the handler, except for the worker and
// the scheduler which have no caller to report to.

// writes the error envelope with the given status
func Respond(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{Code: code, Message: message},
	})
}

// returns a 401 unauthorized error
func Unauthorized(c *gin.Context, message string) {
	Respond(c, http.StatusUnauthorized, CodeUnauthorized, orDefault(message, "authentication required"))
}

// redirects browser requests to the login page, preserving the original path
func RedirectToLogin(c *gin.Context, loginPath string) {
	target := loginPath + "?redirectTo=" + url.QueryEscape(c.Request.URL.RequestURI())
	c.Redirect(http.StatusFound, target)
	c.Abort()
}

// reports whether the caller is a browser navigation rather than an API call
func WantsHTML(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "text/html")
}

// returns a 400 invalid request error
func InvalidRequest(c *gin.Context, message string, err error) {
	body := ErrorBody{Code: CodeInvalidRequest, Message: orDefault(message, "invalid request")}
	if err != nil {
		body.Details = classifyError(err).sanitized
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: body})
}

// returns an image validation failure with its own code and status
func ValidationFailed(c *gin.Context, status int, code, message string) {
	Respond(c, status, code, message)
}

// returns a 404 not found error
func NotFound(c *gin.Context, resource string) {
	if resource == "" {
		resource = "resource"
	}

	Respond(c, http.StatusNotFound, CodeNotFound, resource+" not found")
}

// returns a 409 conflict error
func Conflict(c *gin.Context, message string) {
	Respond(c, http.StatusConflict, CodeConflict, orDefault(message, "resource conflict"))
}

// returns a 429 error when the user has no generations left
func QuotaExhausted(c *gin.Context, message string) {
	Respond(c, http.StatusTooManyRequests, CodeQuotaExhausted, orDefault(message, "generation quota exhausted"))
}

// returns a 429 too many requests error
func TooManyRequests(c *gin.Context, message string) {
	Respond(c, http.StatusTooManyRequests, CodeTooManyRequests, orDefault(message, "too many requests"))
}

// returns a 500 internal server error
func InternalError(c *gin.Context, message string, err error) {
	message = orDefault(message, "an error occurred")

	logger.FromContext(c.Request.Context()).Error(message,
		"error", err,
		"path", c.Request.URL.Path,
		"method", c.Request.Method,
		"user_id", c.GetString("user_id"),
	)

	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
		Error: ErrorBody{
			Code:    CodeServerError,
			Message: message,
			Details: classifyError(err).sanitized,
		},
	})
}

func orDefault(message, fallback string) string {
	if message == "" {
		return fallback
	}
	return message
}

// validates a UUID parameter from the request path
func ValidatePathUUID(c *gin.Context, paramName string) (string, bool) {
	id := c.Param(paramName)

	if id == "" {
		InvalidRequest(c, "missing "+paramName, nil)
		return "", false
	}

	if !IsValidUUID(id) {
		NotFound(c, "generation")
		return "", false
	}

	return id, true
}
