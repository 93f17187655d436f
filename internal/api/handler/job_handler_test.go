package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/api/domain"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/api/model"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jobRouter(deps *Dependencies, user *model.User) *gin.Engine {
	h := NewJobHandler(deps)
	r := gin.New()
	r.Use(identityMiddleware(user))
	r.POST("/api/v1/jobs/detect", h.SubmitDetect)
	r.POST("/api/v1/jobs/voice-design", h.SubmitVoiceDesign)
	r.POST("/api/v1/jobs/voice-clone", h.SubmitVoiceCloneCreate)
	r.POST("/api/v1/jobs/voice-clone/build", h.SubmitVoiceCloneBuild)
	r.GET("/api/v1/jobs", h.List)
	r.GET("/api/v1/jobs/:job_id", h.Get)
	return r
}

func seedUpload(store *fakeStore, userID int64) *model.Upload {
	upload := &model.Upload{
		UUID:         uuid.NewString(),
		UserID:       userID,
		StoragePath:  "uploads/20260829/abc_clip.wav",
		OriginalName: "clip.wav",
		ContentType:  "audio/wav",
		SizeBytes:    1024,
	}
	store.uploads[upload.UUID] = upload
	return upload
}

func TestSubmitDetect(t *testing.T) {
	store := newFakeStore()
	queue := &fakeQueue{}
	user := seedUser(store, 1)
	upload := seedUpload(store, 1)
	r := jobRouter(testDeps(store, queue), user)

	w := postJSON(t, r, "/api/v1/jobs/detect", gin.H{
		"upload_uuid": upload.UUID,
		"visualize":   true,
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp struct {
		Success bool   `json:"success"`
		JobUUID string `json:"job_uuid"`
		Status  string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, domain.JobStatusQueued, resp.Status)
	require.NotEmpty(t, resp.JobUUID)

	// row persisted before the response
	job, ok := store.jobs[resp.JobUUID]
	require.True(t, ok)
	assert.Equal(t, int64(1), job.UserID)
	assert.Equal(t, domain.JobKindDetect, job.Kind)
	assert.Equal(t, domain.JobStatusQueued, job.Status)
	assert.Equal(t, upload.UUID, job.UploadUUID.String)
	assert.Equal(t, true, job.RequestPayload["visualize"])
	assert.Contains(t, job.RequestPayload["url"], upload.StoragePath)
	assert.NotEmpty(t, job.WorkerTaskID)

	// message published with the row's uuid
	require.Len(t, queue.messages, 1)
	var msg struct {
		JobID  string `json:"job_id"`
		TaskID string `json:"task_id"`
	}
	require.NoError(t, json.Unmarshal(queue.messages[0], &msg))
	assert.Equal(t, resp.JobUUID, msg.JobID)
	assert.Equal(t, job.WorkerTaskID, msg.TaskID)
}

func TestSubmitDetectRejectsForeignUpload(t *testing.T) {
	store := newFakeStore()
	queue := &fakeQueue{}
	user := seedUser(store, 1)
	seedUser(store, 2)
	foreign := seedUpload(store, 2)
	r := jobRouter(testDeps(store, queue), user)

	w := postJSON(t, r, "/api/v1/jobs/detect", gin.H{"upload_uuid": foreign.UUID})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, queue.messages)
	assert.Empty(t, store.jobs)
}

func TestSubmitDetectPublishFailure(t *testing.T) {
	store := newFakeStore()
	queue := &fakeQueue{publishErr: errors.New("broker unavailable")}
	user := seedUser(store, 1)
	upload := seedUpload(store, 1)
	r := jobRouter(testDeps(store, queue), user)

	w := postJSON(t, r, "/api/v1/jobs/detect", gin.H{"upload_uuid": upload.UUID})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestSubmitVoiceDesign(t *testing.T) {
	store := newFakeStore()
	queue := &fakeQueue{}
	user := seedUser(store, 1)
	r := jobRouter(testDeps(store, queue), user)

	w := postJSON(t, r, "/api/v1/jobs/voice-design", gin.H{"user_prompt": "calm narrator"})
	require.Equal(t, http.StatusAccepted, w.Code)

	require.Len(t, store.jobs, 1)
	for _, job := range store.jobs {
		assert.Equal(t, domain.JobKindVoiceDesign, job.Kind)
		assert.Equal(t, "calm narrator", job.RequestPayload["user_prompt"])
		// trial mode defaults on
		assert.Equal(t, true, job.RequestPayload["is_voice_design_trial"])
		assert.False(t, job.UploadUUID.Valid)
	}
}

func TestSubmitVoiceCloneBuild(t *testing.T) {
	store := newFakeStore()
	queue := &fakeQueue{}
	user := seedUser(store, 1)
	r := jobRouter(testDeps(store, queue), user)

	w := postJSON(t, r, "/api/v1/jobs/voice-clone/build", gin.H{
		"voice_uuid": "voice-42",
		"fill":       true,
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	for _, job := range store.jobs {
		assert.Equal(t, domain.JobKindVoiceCloneBuild, job.Kind)
		assert.Equal(t, "voice-42", job.RequestPayload["voice_uuid"])
		assert.Equal(t, true, job.RequestPayload["fill"])
	}
}

func seedJob(store *fakeStore, userID int64, status string) *model.Job {
	now := time.Now().UTC()
	job := &model.Job{
		UUID:           uuid.NewString(),
		UserID:         userID,
		Kind:           domain.JobKindDetect,
		Status:         status,
		RequestPayload: model.JSONMap{"url": "http://media/x.wav"},
		RemoteResponse: model.JSONMap{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	store.jobs[job.UUID] = job
	return job
}

func TestGetJobStatusShapes(t *testing.T) {
	store := newFakeStore()
	user := seedUser(store, 1)
	r := jobRouter(testDeps(store, &fakeQueue{}), user)

	succeeded := seedJob(store, 1, domain.JobStatusSucceeded)
	succeeded.RemoteCorrelationID = "remote-1"
	succeeded.RemoteResponse = model.JSONMap{"item": map[string]any{"uuid": "remote-1"}}

	failed := seedJob(store, 1, domain.JobStatusFailed)
	failed.ErrorMessage = "provider returned 503"

	queued := seedJob(store, 1, domain.JobStatusQueued)

	getItem := func(jobUUID string) map[string]any {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+jobUUID, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Item map[string]any `json:"item"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return resp.Item
	}

	item := getItem(succeeded.UUID)
	assert.Equal(t, "succeeded", item["status"])
	assert.Equal(t, "remote-1", item["remote_correlation_id"])
	assert.NotNil(t, item["result"])
	assert.Nil(t, item["error"])

	item = getItem(failed.UUID)
	assert.Equal(t, "failed", item["status"])
	assert.Equal(t, "provider returned 503", item["error"])
	assert.Nil(t, item["result"])

	item = getItem(queued.UUID)
	assert.Equal(t, "queued", item["status"])
	assert.Nil(t, item["result"])
	assert.Nil(t, item["error"])
}

func TestGetJobOwnershipAndValidation(t *testing.T) {
	store := newFakeStore()
	user := seedUser(store, 1)
	seedUser(store, 2)
	foreign := seedJob(store, 2, domain.JobStatusSucceeded)
	r := jobRouter(testDeps(store, &fakeQueue{}), user)

	// someone else's job reads as absent
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+foreign.UUID, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// malformed id is a 400, not a storage lookup
	req = httptest.NewRequest(http.MethodGet, "/api/v1/jobs/not-a-uuid", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListJobsScopedToUser(t *testing.T) {
	store := newFakeStore()
	user := seedUser(store, 1)
	seedUser(store, 2)
	seedJob(store, 1, domain.JobStatusQueued)
	seedJob(store, 1, domain.JobStatusSucceeded)
	seedJob(store, 2, domain.JobStatusQueued)
	r := jobRouter(testDeps(store, &fakeQueue{}), user)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Items []map[string]any `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Items, 2)
}

func TestListJobsCursorPagination(t *testing.T) {
	store := newFakeStore()
	user := seedUser(store, 1)
	r := jobRouter(testDeps(store, &fakeQueue{}), user)

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 5; i++ {
		job := seedJob(store, 1, domain.JobStatusQueued)
		job.CreatedAt = base.Add(time.Duration(i) * time.Second)
	}

	page := func(path string) ([]map[string]any, string) {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Items      []map[string]any `json:"items"`
			NextCursor string           `json:"next_cursor"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return resp.Items, resp.NextCursor
	}

	seen := map[string]bool{}
	var prev time.Time
	path := "/api/v1/jobs?page_size=2"
	pages := 0
	for path != "" {
		items, next := page(path)
		pages++
		require.LessOrEqual(t, len(items), 2)
		for _, item := range items {
			id := item["job_uuid"].(string)
			// no overlap between pages
			require.False(t, seen[id])
			seen[id] = true

			created, err := time.Parse(time.RFC3339Nano, item["created_at"].(string))
			require.NoError(t, err)
			if !prev.IsZero() {
				assert.False(t, created.After(prev))
			}
			prev = created
		}
		if next == "" {
			break
		}
		path = "/api/v1/jobs?page_size=2&cursor=" + url.QueryEscape(next)
	}
	assert.Equal(t, 3, pages)
	assert.Len(t, seen, 5)
}

func TestListJobsRejectsBadCursor(t *testing.T) {
	store := newFakeStore()
	user := seedUser(store, 1)
	r := jobRouter(testDeps(store, &fakeQueue{}), user)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs?cursor=%21%21not-base64", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
