package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	return resp
}

func TestHelpers_WriteEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name   string
		call   func(c *gin.Context)
		status int
		code   string
	}{
		{"unauthorized", func(c *gin.Context) { Unauthorized(c, "") }, http.StatusUnauthorized, CodeUnauthorized},
		{"invalid request", func(c *gin.Context) { InvalidRequest(c, "bad", nil) }, http.StatusBadRequest, CodeInvalidRequest},
		{"not found", func(c *gin.Context) { NotFound(c, "generation") }, http.StatusNotFound, CodeNotFound},
		{"conflict", func(c *gin.Context) { Conflict(c, "") }, http.StatusConflict, CodeConflict},
		{"quota", func(c *gin.Context) { QuotaExhausted(c, "") }, http.StatusTooManyRequests, CodeQuotaExhausted},
		{"validation", func(c *gin.Context) {
			ValidationFailed(c, http.StatusRequestEntityTooLarge, "exceeds_max_size", "too big")
		}, http.StatusRequestEntityTooLarge, "exceeds_max_size"},
		{"internal", func(c *gin.Context) { InternalError(c, "boom", fmt.Errorf("x")) }, http.StatusInternalServerError, CodeServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)

			tc.call(c)

			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, decode(t, w).Error.Code)
			assert.True(t, c.IsAborted())
		})
	}
}

func TestRedirectToLogin_PreservesPath(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/vton/generations/abc?x=1", nil)

	RedirectToLogin(c, "/auth/login")

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/auth/login?redirectTo=%2Fapi%2Fvton%2Fgenerations%2Fabc%3Fx%3D1", w.Header().Get("Location"))
}

func TestClassifyError(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")

	cases := []struct {
		err      error
		category string
		msg      string
	}{
		{&pgconn.PgError{Message: "duplicate"}, CategoryDatabase, "database operation failed"},
		{fmt.Errorf("get: %w", pgx.ErrNoRows), CategoryNotFound, "resource not found"},
		{context.DeadlineExceeded, CategoryTimeout, "request timed out"},
		{fmt.Errorf("s3 put failed"), CategoryStorage, "storage operation failed"},
		{fmt.Errorf("dial tcp refused"), CategoryNetwork, "connection error occurred"},
		{fmt.Errorf("weird"), CategoryUnknown, "an error occurred"},
	}

	for _, tc := range cases {
		info := classifyError(tc.err)
		assert.Equal(t, tc.category, info.category, tc.err.Error())
		assert.Equal(t, tc.msg, info.sanitized, tc.err.Error())
	}
}

func TestIsValidUUID(t *testing.T) {
	assert.True(t, IsValidUUID("3f1c6b1e-8a5d-4c2b-9f0e-2d7a1b3c4e5f"))
	assert.True(t, IsValidUUID("3F1C6B1E-8A5D-4C2B-9F0E-2D7A1B3C4E5F"))
	assert.False(t, IsValidUUID(""))
	assert.False(t, IsValidUUID("not-a-uuid"))
}
