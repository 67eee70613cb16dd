package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/vestilook/server/internal/auth"
	"codeberg.org/vestilook/server/internal/status"
	"codeberg.org/vestilook/server/internal/vton"
	"codeberg.org/vestilook/server/vestilook/generations"
)

const (
	testUser = "11111111-1111-1111-1111-111111111111"
	testJob  = "22222222-2222-2222-2222-222222222222"
)

// walks the job through queued, processing, succeeded
type scriptedFetcher struct {
	calls atomic.Int32
}

func (f *scriptedFetcher) FetchGeneration(_ context.Context, id string) (*vton.Job, error) {
	n := f.calls.Add(1)

	job := &vton.Job{ID: id, Status: vton.StatusQueued, CreatedAt: time.Now(), ETASeconds: 45}

	switch {
	case n == 2:
		job.Status = vton.StatusProcessing
	case n >= 3:
		result := testUser + "/" + id + ".png"
		expires := time.Now().Add(time.Hour)
		job.Status = vton.StatusSucceeded
		job.ResultPath = &result
		job.ExpiresAt = &expires
	}

	return job, nil
}

type fakeSource struct {
	getErr   error
	fetcher  status.Fetcher
	resolved atomic.Int32
}

func (f *fakeSource) Get(_ context.Context, id, _ string) (*vton.Job, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}

	return &vton.Job{ID: id}, nil
}

func (f *fakeSource) Refresher(_ context.Context, _, jobID string) (*status.Refresher, error) {
	return status.NewRefresher(jobID, f.fetcher), nil
}

func (f *fakeSource) Resolve(_ context.Context, v status.View) status.View {
	f.resolved.Add(1)
	return v
}

func newServer(t *testing.T, src Source) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	requireAuth := func(c *gin.Context) {
		c.Set(auth.UserIDKey, testUser)
		c.Next()
	}

	router := gin.New()
	RegisterRoutes(router.Group("/api"), src, StreamConfig{
		Interval: status.FixedInterval(5 * time.Millisecond),
	}, requireAuth)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return srv
}

func wsURL(srv *httptest.Server, jobID string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/vton/generations/" + jobID + "/stream"
}

func TestStreamHandler_PushesUntilFinal(t *testing.T) {
	src := &fakeSource{fetcher: &scriptedFetcher{}}
	srv := newServer(t, src)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, testJob), nil)
	require.NoError(t, err)
	defer conn.Close() //nolint:errcheck // test cleanup
	defer resp.Body.Close() //nolint:errcheck // test cleanup

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var states []status.State
	var closeErr *websocket.CloseError

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			require.True(t, errors.As(err, &closeErr), "unexpected read error: %v", err)
			break
		}

		require.Equal(t, MessageView, msg.Type)
		require.NotNil(t, msg.View)
		assert.Equal(t, testJob, msg.View.JobID)
		states = append(states, msg.View.State)
	}

	assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
	assert.Equal(t, []status.State{status.StateQueued, status.StateProcessing, status.StateSucceeded}, states)
	assert.EqualValues(t, 3, src.resolved.Load())
}

func TestStreamHandler_UnknownJob(t *testing.T) {
	srv := newServer(t, &fakeSource{getErr: generations.ErrNotFound})

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, testJob), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close() //nolint:errcheck // test cleanup

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStreamHandler_MalformedID(t *testing.T) {
	srv := newServer(t, &fakeSource{})

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "nope"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close() //nolint:errcheck // test cleanup

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNewOriginChecker(t *testing.T) {
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	dev := NewOriginChecker(nil, false)
	assert.True(t, dev(req("")))
	assert.True(t, dev(req("https://anything.example")))

	prod := NewOriginChecker([]string{"https://vestilook.example"}, true)
	assert.True(t, prod(req("https://vestilook.example")))
	assert.False(t, prod(req("https://evil.example")))
	assert.False(t, prod(req("")))

	unconfigured := NewOriginChecker(nil, true)
	assert.False(t, unconfigured(req("https://vestilook.example")))
}
