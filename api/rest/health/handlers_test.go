package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func ok(context.Context) error { return nil }

func TestHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/health", Handler)
	router.GET("/api/ping", PingHandler)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"vestilook","version":"1.0.0"}`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"pong"}`, w.Body.String())
}

func TestReadyHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name string
		deps map[string]Pinger
		code int
		body string
	}{
		{
			name: "all reachable",
			deps: map[string]Pinger{"postgres": pingerFunc(ok), "redis": pingerFunc(ok)},
			code: http.StatusOK,
			body: `{"status":"ready","checks":{"postgres":"ok","redis":"ok"}}`,
		},
		{
			name: "database down",
			deps: map[string]Pinger{
				"postgres": pingerFunc(func(context.Context) error { return errors.New("connection refused") }),
				"redis":    pingerFunc(ok),
			},
			code: http.StatusServiceUnavailable,
			body: `{"status":"unavailable","checks":{"postgres":"connection refused","redis":"ok"}}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/ready", ReadyHandler(tc.deps))

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tc.code, w.Code)
			assert.JSONEq(t, tc.body, w.Body.String())
		})
	}
}
