package ws

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/api/domain"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/api/model"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeBlacklist struct{}

func (fakeBlacklist) BlacklistJTI(ctx context.Context, jti string, userID int64, expiresAt time.Time) (bool, error) {
	return true, nil
}

func (fakeBlacklist) IsJTIBlacklisted(ctx context.Context, jti string) (bool, error) {
	return false, nil
}

type fakeUsers struct {
	users map[int64]*model.User
}

func (f *fakeUsers) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return user, nil
}

type fakeJobs struct {
	mu   sync.Mutex
	jobs map[string]*model.Job
}

func (f *fakeJobs) GetJob(ctx context.Context, userID int64, jobUUID string) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobUUID]
	if !ok || job.UserID != userID {
		return nil, domain.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (f *fakeJobs) setStatus(jobUUID, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[jobUUID].Status = status
}

const testUserID int64 = 7

func newTestServer(t *testing.T, jobs *fakeJobs, allowedOrigins []string) (*httptest.Server, *auth.Codec) {
	t.Helper()

	codec := auth.NewCodec("ws-test-secret", time.Hour, time.Hour, fakeBlacklist{})
	users := &fakeUsers{users: map[int64]*model.User{
		testUserID: {ID: testUserID, Email: "ws@example.com", Verified: true, IsActive: true},
	}}
	authenticator := auth.NewAuthenticator(codec, users, auth.Config{
		AccessCookieName: "access_token",
		CSRFCookieName:   "csrf_token",
		CSRFHeaderName:   "X-CSRF-Token",
	})

	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), authenticator, jobs, allowedOrigins)

	r := gin.New()
	r.GET("/ws", h.Serve)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, codec
}

func dial(t *testing.T, srv *httptest.Server, codec *auth.Codec, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()

	pair, err := codec.Issue(testUserID)
	require.NoError(t, err)

	header := http.Header{}
	header.Set("Cookie", "access_token="+pair.Access)
	if origin != "" {
		header.Set("Origin", origin)
	}

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	return websocket.DefaultDialer.Dial(wsURL, header)
}

func TestHandshakeRejectsDisallowedOrigin(t *testing.T) {
	srv, codec := newTestServer(t, &fakeJobs{jobs: map[string]*model.Job{}},
		[]string{"https://app.example.com"})

	conn, resp, err := dial(t, srv, codec, "https://evil.example.com")
	require.Error(t, err)
	require.Nil(t, conn)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHandshakeAllowsListedOrigin(t *testing.T) {
	srv, codec := newTestServer(t, &fakeJobs{jobs: map[string]*model.Job{}},
		[]string{"https://app.example.com"})

	conn, resp, err := dial(t, srv, codec, "https://app.example.com")
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
}

func TestHandshakeAllowsMissingOrigin(t *testing.T) {
	// non-browser clients send no Origin header
	srv, codec := newTestServer(t, &fakeJobs{jobs: map[string]*model.Job{}},
		[]string{"https://app.example.com"})

	conn, _, err := dial(t, srv, codec, "")
	require.NoError(t, err)
	conn.Close()
}

func TestHandshakeRequiresAuthentication(t *testing.T) {
	srv, _ := newTestServer(t, &fakeJobs{jobs: map[string]*model.Job{}}, nil)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.Nil(t, conn)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWatchPushesStatusUntilTerminal(t *testing.T) {
	jobUUID := uuid.NewString()
	jobs := &fakeJobs{jobs: map[string]*model.Job{
		jobUUID: {UUID: jobUUID, UserID: testUserID, Kind: "detect", Status: "queued"},
	}}
	srv, codec := newTestServer(t, jobs, nil)

	conn, _, err := dial(t, srv, codec, "")
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "watch", "job_uuid": jobUUID}))

	var ev statusEvent
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "job_status", ev.Type)
	assert.Equal(t, jobUUID, ev.JobUUID)
	assert.Equal(t, "queued", ev.Status)

	jobs.setStatus(jobUUID, "succeeded")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "succeeded", ev.Status)

	// a job that is already terminal gets its state replayed once and
	// the watch ends there
	doneUUID := uuid.NewString()
	jobs.mu.Lock()
	jobs.jobs[doneUUID] = &model.Job{UUID: doneUUID, UserID: testUserID, Kind: "detect", Status: "failed"}
	jobs.mu.Unlock()

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "watch", "job_uuid": doneUUID}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, doneUUID, ev.JobUUID)
	assert.Equal(t, "failed", ev.Status)
}

func TestWatchScopedToOwner(t *testing.T) {
	jobUUID := uuid.NewString()
	jobs := &fakeJobs{jobs: map[string]*model.Job{
		jobUUID: {UUID: jobUUID, UserID: 99, Kind: "detect", Status: "queued"},
	}}
	srv, codec := newTestServer(t, jobs, nil)

	conn, _, err := dial(t, srv, codec, "")
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "watch", "job_uuid": jobUUID}))

	var ev statusEvent
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "error", ev.Type)
	assert.Equal(t, "job not found", ev.Detail)
}

func TestWatchRejectsMalformedUUID(t *testing.T) {
	srv, codec := newTestServer(t, &fakeJobs{jobs: map[string]*model.Job{}}, nil)

	conn, _, err := dial(t, srv, codec, "")
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "watch", "job_uuid": "not-a-uuid"}))

	var ev statusEvent
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "error", ev.Type)
	assert.Equal(t, "invalid job uuid", ev.Detail)
}

func TestUnknownActionReportsError(t *testing.T) {
	srv, codec := newTestServer(t, &fakeJobs{jobs: map[string]*model.Job{}}, nil)

	conn, _, err := dial(t, srv, codec, "")
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "subscribe"}))

	var ev statusEvent
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "error", ev.Type)
	assert.Equal(t, "unknown action", ev.Detail)
}
