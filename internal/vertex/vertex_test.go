package vertex

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"codeberg.org/vestilook/server/internal/vton"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return NewClient(Config{Endpoint: srv.URL + "/predict", AccessToken: "vertex-token", RateLimit: 100})
}

func TestTryOn_Success(t *testing.T) {
	c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer vertex-token", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get(requestIDHeader))

		var body predictRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Instances, 1)
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("person")), body.Instances[0].PersonImage.Image.BytesBase64Encoded)
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("garment")), body.Instances[0].ProductImages[0].Image.BytesBase64Encoded)
		assert.Equal(t, 1, body.Parameters.SampleCount)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(predictResponse{Predictions: []prediction{{ //nolint:errcheck,gosec // test server
			MimeType:           "image/jpeg",
			BytesBase64Encoded: base64.StdEncoding.EncodeToString([]byte("result")),
		}}})
	})

	res, err := c.TryOn(context.Background(), []byte("person"), []byte("garment"))
	require.NoError(t, err)

	assert.Equal(t, []byte("result"), res.Image)
	assert.Equal(t, "image/jpeg", res.MimeType)
	assert.NotEmpty(t, res.RequestID)
}

func TestTryOn_ProviderStatusMapping(t *testing.T) {
	cases := []struct {
		httpStatus int
		status     string
		want       vton.ErrorCode
	}{
		{400, "INVALID_ARGUMENT", vton.CodeInvalidGarmentImage},
		{400, "FAILED_PRECONDITION", vton.CodeGarmentNotDetected},
		{429, "RESOURCE_EXHAUSTED", vton.CodeProviderQuota},
		{504, "DEADLINE_EXCEEDED", vton.CodeProviderTimeout},
		{503, "UNAVAILABLE", vton.CodeProviderUnavailable},
		{500, "INTERNAL", vton.CodeInternalError},
		{403, "PERMISSION_DENIED", vton.CodeProviderAuth},
		{401, "UNAUTHENTICATED", vton.CodeProviderAuth},
		{409, "ABORTED", vton.CodeUnknown},
		{429, "", vton.CodeProviderQuota},
		{502, "", vton.CodeProviderUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.status, func(t *testing.T) {
			c := serve(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.httpStatus)

				var body errorResponse
				body.Error.Code = tc.httpStatus
				body.Error.Status = tc.status
				body.Error.Message = "provider said no"
				json.NewEncoder(w).Encode(body) //nolint:errcheck,gosec // test server
			})

			_, err := c.TryOn(context.Background(), []byte("p"), []byte("g"))

			var ve *Error
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.want, ve.Code)
			assert.Equal(t, tc.httpStatus, ve.HTTPStatus)
			assert.Equal(t, tc.want, CodeOf(err))
		})
	}
}

func TestTryOn_EmptyPredictionsIsSafetyBlock(t *testing.T) {
	c := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"predictions":[]}`)) //nolint:errcheck,gosec // test server
	})

	_, err := c.TryOn(context.Background(), []byte("p"), []byte("g"))

	assert.Equal(t, vton.CodeSafetyBlocked, CodeOf(err))
}

func TestTryOn_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	c := NewClient(Config{Endpoint: endpoint, RateLimit: 100})

	_, err := c.TryOn(context.Background(), []byte("p"), []byte("g"))

	assert.Equal(t, vton.CodeProviderUnavailable, CodeOf(err))
}

func TestTryOn_Timeout(t *testing.T) {
	c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.TryOn(ctx, []byte("p"), []byte("g"))

	assert.Equal(t, vton.CodeProviderTimeout, CodeOf(err))
}

func TestCodeOf_ForeignErrors(t *testing.T) {
	assert.Equal(t, vton.CodeInternalError, CodeOf(errors.New("boom")))
	assert.Equal(t, vton.CodeProviderTimeout, CodeOf(context.DeadlineExceeded))
}
