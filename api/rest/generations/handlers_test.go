package generations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"codeberg.org/vestilook/server/internal/auth"
	apierrors "codeberg.org/vestilook/server/internal/errors"
	"codeberg.org/vestilook/server/internal/garment"
	"codeberg.org/vestilook/server/internal/generation"
	"codeberg.org/vestilook/server/internal/history"
	"codeberg.org/vestilook/server/internal/status"
	"codeberg.org/vestilook/server/internal/vton"
	"codeberg.org/vestilook/server/vestilook/generations"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testUser = "11111111-1111-1111-1111-111111111111"
	testJob  = "22222222-2222-2222-2222-222222222222"
)

type fakeService struct {
	createCalls int
	lastInput   generation.CreateInput
	createErr   error

	lastFilters history.Filters
	lastRating  int
	err         error
}

func (f *fakeService) Create(_ context.Context, in generation.CreateInput) (*vton.Submission, error) {
	f.createCalls++
	f.lastInput = in

	if f.createErr != nil {
		return nil, f.createErr
	}

	expires := time.Date(2026, 10, 20, 12, 0, 0, 0, time.UTC)

	return &vton.Submission{
		Job: vton.Job{
			ID:          testJob,
			UserID:      in.UserID,
			Status:      vton.StatusQueued,
			PersonaPath: in.UserID + "/snapshots/" + testJob + ".png",
			GarmentPath: in.UserID + "/" + testJob + ".png",
			CreatedAt:   time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC),
			ExpiresAt:   &expires,
			ETASeconds:  45,
		},
		Quota: vton.NewQuota(5, 1, nil),
	}, nil
}

func (f *fakeService) Get(_ context.Context, id, userID string) (*vton.Job, error) {
	if f.err != nil {
		return nil, f.err
	}

	return &vton.Job{ID: id, UserID: userID, Status: vton.StatusProcessing}, nil
}

func (f *fakeService) View(_ context.Context, id, _ string) (*status.View, error) {
	if f.err != nil {
		return nil, f.err
	}

	return &status.View{JobID: id, Status: vton.StatusQueued, State: status.StateQueued}, nil
}

func (f *fakeService) List(_ context.Context, _ string, filters history.Filters) (history.Page, error) {
	f.lastFilters = filters

	if f.err != nil {
		return history.Page{}, f.err
	}

	return history.Page{Items: []history.Summary{}, PageSize: filters.PageSize}, nil
}

func (f *fakeService) Rate(_ context.Context, id, _ string, rating int) (*vton.Job, error) {
	f.lastRating = rating

	if f.err != nil {
		return nil, f.err
	}

	return &vton.Job{ID: id, Status: vton.StatusSucceeded, Rating: &rating}, nil
}

func newRouter(svc Service, authenticated bool) *gin.Engine {
	gin.SetMode(gin.TestMode)

	requireAuth := func(c *gin.Context) {
		if authenticated {
			c.Set(auth.UserIDKey, testUser)
		}
		c.Next()
	}
	noLimit := func(c *gin.Context) { c.Next() }

	router := gin.New()
	RegisterRoutes(router.Group("/api"), svc, 1024, requireAuth, noLimit)

	return router
}

func multipartBody(t *testing.T, fields map[string]string, withFile bool) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}

	if withFile {
		part, err := writer.CreateFormFile("garment", "shirt.png")
		require.NoError(t, err)
		_, err = part.Write([]byte("not really a png"))
		require.NoError(t, err)
	}

	require.NoError(t, writer.Close())

	return body, writer.FormDataContentType()
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) apierrors.ErrorBody {
	t.Helper()

	var resp apierrors.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	return resp.Error
}

func TestCreateHandler_Accepted(t *testing.T) {
	svc := &fakeService{}
	router := newRouter(svc, true)

	body, contentType := multipartBody(t, map[string]string{
		"consentVersion": "2026-09",
		"retainForHours": "24",
	}, true)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/vton/generations", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)

	var resp vton.Submission
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, "/api/vton/generations/"+resp.ID, w.Header().Get("Location"))
	assert.Equal(t, testJob, resp.ID)
	assert.Equal(t, vton.StatusQueued, resp.Status)
	assert.Equal(t, 45, resp.ETASeconds)
	assert.Equal(t, 4, resp.Quota.Remaining)

	require.Equal(t, 1, svc.createCalls)
	assert.Equal(t, testUser, svc.lastInput.UserID)
	assert.Equal(t, "2026-09", svc.lastInput.ConsentVersion)
	assert.Equal(t, 24, svc.lastInput.RetainForHours)
	require.NotNil(t, svc.lastInput.Garment)
	assert.Equal(t, "shirt.png", svc.lastInput.Garment.Name)
	assert.Equal(t, []byte("not really a png"), svc.lastInput.Garment.Data)
}

func TestCreateHandler_MissingConsentVersion(t *testing.T) {
	svc := &fakeService{}
	router := newRouter(svc, true)

	body, contentType := multipartBody(t, map[string]string{"retainForHours": "24"}, true)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/vton/generations", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	errBody := decodeError(t, w)
	assert.Equal(t, apierrors.CodeInvalidRequest, errBody.Code)
	assert.Equal(t, "consentVersion field is required.", errBody.Message)
	assert.Zero(t, svc.createCalls, "create must not be invoked")
}

func TestCreateHandler_InvalidRetention(t *testing.T) {
	svc := &fakeService{}
	router := newRouter(svc, true)

	body, contentType := multipartBody(t, map[string]string{
		"consentVersion": "2026-09",
		"retainForHours": "forever",
	}, true)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/vton/generations", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, svc.createCalls)
}

func TestCreateHandler_MissingFilePassesNil(t *testing.T) {
	svc := &fakeService{createErr: &garment.ValidationError{Code: garment.CodeMissingFile, Message: "no image was provided"}}
	router := newRouter(svc, true)

	body, contentType := multipartBody(t, map[string]string{"consentVersion": "2026-09"}, false)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/vton/generations", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", decodeError(t, w).Code)
	assert.Nil(t, svc.lastInput.Garment)
}

func TestCreateHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"consent outdated", generation.ErrConsentOutdated, http.StatusConflict, apierrors.CodeConflict},
		{"consent required", generation.ErrConsentRequired, http.StatusConflict, apierrors.CodeConflict},
		{"persona missing", generation.ErrPersonaMissing, http.StatusConflict, apierrors.CodeConflict},
		{"retention", generation.ErrInvalidRetention, http.StatusBadRequest, apierrors.CodeInvalidRequest},
		{"quota", generations.ErrQuotaExhausted, http.StatusTooManyRequests, apierrors.CodeQuotaExhausted},
		{
			"resolution",
			&garment.ValidationError{Code: garment.CodeBelowMinResolution, Message: "too small"},
			http.StatusUnprocessableEntity,
			string(garment.CodeBelowMinResolution),
		},
		{
			"mime",
			&garment.ValidationError{Code: garment.CodeUnsupportedMIME, Message: "nope"},
			http.StatusUnsupportedMediaType,
			string(garment.CodeUnsupportedMIME),
		},
		{
			"size",
			&garment.ValidationError{Code: garment.CodeExceedsMaxSize, Message: "too big"},
			http.StatusRequestEntityTooLarge,
			string(garment.CodeExceedsMaxSize),
		},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, apierrors.CodeServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(&fakeService{createErr: tt.err}, true)

			body, contentType := multipartBody(t, map[string]string{"consentVersion": "2026-09"}, true)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/vton/generations", body)
			req.Header.Set("Content-Type", contentType)
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Code)
			assert.Empty(t, w.Header().Get("Location"))
		})
	}
}

func TestHandlers_RequireUser(t *testing.T) {
	router := newRouter(&fakeService{}, false)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/vton/generations/"+testJob, nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetHandler(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		router := newRouter(&fakeService{}, true)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/vton/generations/"+testJob, nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"processing"`)
	})

	t.Run("malformed id", func(t *testing.T) {
		router := newRouter(&fakeService{}, true)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/vton/generations/not-a-uuid", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("other user", func(t *testing.T) {
		router := newRouter(&fakeService{err: generations.ErrNotFound}, true)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/vton/generations/"+testJob, nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, apierrors.CodeNotFound, decodeError(t, w).Code)
	})
}

func TestViewHandler(t *testing.T) {
	router := newRouter(&fakeService{}, true)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/vton/generations/"+testJob+"/view", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var view status.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, testJob, view.JobID)
	assert.Equal(t, status.StateQueued, view.State)
}

func TestListHandler(t *testing.T) {
	t.Run("parses filters", func(t *testing.T) {
		svc := &fakeService{}
		router := newRouter(svc, true)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet,
			"/api/vton/generations?status=succeeded,failed&from=2026-10-01T00:00:00Z&limit=10", nil)
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []vton.Status{vton.StatusSucceeded, vton.StatusFailed}, svc.lastFilters.Statuses)
		require.NotNil(t, svc.lastFilters.From)
		assert.Equal(t, 10, svc.lastFilters.PageSize)
		assert.Contains(t, w.Body.String(), `"items":[]`)
	})

	t.Run("unknown status", func(t *testing.T) {
		router := newRouter(&fakeService{}, true)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/vton/generations?status=done", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad cursor", func(t *testing.T) {
		router := newRouter(&fakeService{err: history.ErrInvalidCursor}, true)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/vton/generations?cursor=zzz", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, apierrors.CodeInvalidRequest, decodeError(t, w).Code)
	})
}

func TestRateHandler(t *testing.T) {
	rate := func(router *gin.Engine, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/vton/generations/"+testJob+"/rating", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("rated", func(t *testing.T) {
		svc := &fakeService{}
		w := rate(newRouter(svc, true), `{"rating":4}`)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 4, svc.lastRating)
	})

	t.Run("missing rating", func(t *testing.T) {
		w := rate(newRouter(&fakeService{}, true), `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("out of range", func(t *testing.T) {
		w := rate(newRouter(&fakeService{err: generation.ErrInvalidRating}, true), `{"rating":9}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("not ratable", func(t *testing.T) {
		w := rate(newRouter(&fakeService{err: generations.ErrNotRatable}, true), `{"rating":3}`)
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}
