package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"codeberg.org/vestilook/server/internal/account"
	"codeberg.org/vestilook/server/internal/auth"
	"codeberg.org/vestilook/server/internal/consent"
	apierrors "codeberg.org/vestilook/server/internal/errors"
	"codeberg.org/vestilook/server/internal/garment"
	"codeberg.org/vestilook/server/internal/vton"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUser = "11111111-1111-1111-1111-111111111111"

type fakeService struct {
	receipt   consent.Receipt
	err       error
	persona   *garment.File
	acceptReq consent.Acceptance
}

func (f *fakeService) Profile(_ context.Context, userID string) (vton.Profile, error) {
	return vton.Profile{
		UserID:  userID,
		Consent: consent.NewState("2026-09", "", nil),
		Quota:   vton.NewQuota(5, 0, nil),
	}, f.err
}

func (f *fakeService) Consent(_ context.Context, _ string) (consent.Document, error) {
	return consent.Document{
		State:     consent.NewState("2026-09", "2026-09", nil),
		PolicyURL: "https://vestilook.example/consent",
	}, f.err
}

func (f *fakeService) AcceptConsent(_ context.Context, _ string, a consent.Acceptance) (consent.Receipt, error) {
	f.acceptReq = a
	return f.receipt, f.err
}

func (f *fakeService) UploadPersona(_ context.Context, _ string, file *garment.File) (*vton.Persona, error) {
	f.persona = file

	if f.err != nil {
		return nil, f.err
	}

	return &vton.Persona{Path: testUser + "/persona.png", Width: 800, Height: 1200, ContentType: "image/png"}, nil
}

func newRouter(svc Service) *gin.Engine {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	RegisterRoutes(router.Group("/api"), svc, 1024, func(c *gin.Context) {
		c.Set(auth.UserIDKey, testUser)
		c.Next()
	})

	return router
}

func postConsent(router *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/profile/consent", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	return w
}

func TestGetProfileHandler(t *testing.T) {
	router := newRouter(&fakeService{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/profile", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var profile vton.Profile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &profile))
	assert.Equal(t, testUser, profile.UserID)
	assert.False(t, profile.Consent.IsCompliant)
	assert.Equal(t, 5, profile.Quota.Remaining)
}

func TestGetConsentHandler(t *testing.T) {
	router := newRouter(&fakeService{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/profile/consent", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"requiredVersion":"2026-09"`)
	assert.Contains(t, w.Body.String(), `"isCompliant":true`)
	assert.Contains(t, w.Body.String(), `"policyUrl":"https://vestilook.example/consent"`)
}

func TestAcceptConsentHandler(t *testing.T) {
	acceptedAt := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		svc    *fakeService
		body   string
		status int
		code   string
	}{
		{
			name:   "first acceptance",
			svc:    &fakeService{receipt: consent.Receipt{Version: "2026-09", AcceptedAt: acceptedAt, Status: consent.ReceiptCreated}},
			body:   `{"version":"2026-09","accepted":true}`,
			status: http.StatusCreated,
		},
		{
			name:   "re-acceptance",
			svc:    &fakeService{receipt: consent.Receipt{Version: "2026-09", AcceptedAt: acceptedAt, Status: consent.ReceiptUpdated}},
			body:   `{"version":"2026-09","accepted":true}`,
			status: http.StatusOK,
		},
		{
			name:   "not accepted",
			svc:    &fakeService{err: account.ErrConsentNotAccepted},
			body:   `{"version":"2026-09","accepted":false}`,
			status: http.StatusBadRequest,
			code:   apierrors.CodeInvalidRequest,
		},
		{
			name:   "missing version",
			svc:    &fakeService{err: account.ErrVersionRequired},
			body:   `{"accepted":true}`,
			status: http.StatusBadRequest,
			code:   apierrors.CodeInvalidRequest,
		},
		{
			name:   "outdated version",
			svc:    &fakeService{err: account.ErrConsentOutdated},
			body:   `{"version":"2025-01","accepted":true}`,
			status: http.StatusConflict,
			code:   apierrors.CodeConflict,
		},
		{
			name:   "malformed body",
			svc:    &fakeService{},
			body:   `{"version":`,
			status: http.StatusBadRequest,
			code:   apierrors.CodeInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postConsent(newRouter(tt.svc), tt.body)

			assert.Equal(t, tt.status, w.Code)

			if tt.code != "" {
				assert.Contains(t, w.Body.String(), `"code":"`+tt.code+`"`)
				return
			}

			assert.Contains(t, w.Body.String(), `"acceptedVersion":"2026-09"`)
			assert.NotContains(t, w.Body.String(), "Status")
		})
	}
}

func uploadPersona(t *testing.T, router *gin.Engine, data []byte) *httptest.ResponseRecorder {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if data != nil {
		part, err := writer.CreateFormFile("persona", "me.png")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/profile/persona", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	router.ServeHTTP(w, req)

	return w
}

func TestUploadPersonaHandler(t *testing.T) {
	t.Run("stored", func(t *testing.T) {
		svc := &fakeService{}
		w := uploadPersona(t, newRouter(svc), []byte("photo"))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"path":"`+testUser+`/persona.png"`)
		require.NotNil(t, svc.persona)
		assert.Equal(t, "me.png", svc.persona.Name)
	})

	t.Run("upload truncated past the limit", func(t *testing.T) {
		svc := &fakeService{}
		uploadPersona(t, newRouter(svc), bytes.Repeat([]byte("x"), 4096))

		require.NotNil(t, svc.persona)
		assert.Len(t, svc.persona.Data, 1025)
	})

	t.Run("validation failure", func(t *testing.T) {
		svc := &fakeService{err: &garment.ValidationError{Code: garment.CodeDecodeError, Message: "image could not be decoded"}}
		w := uploadPersona(t, newRouter(svc), []byte("junk"))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), `"code":"decode_error"`)
	})

	t.Run("missing file", func(t *testing.T) {
		svc := &fakeService{err: &garment.ValidationError{Code: garment.CodeMissingFile, Message: "no image was provided"}}
		w := uploadPersona(t, newRouter(svc), nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"code":"invalid_request"`)
		assert.Nil(t, svc.persona)
	})
}
