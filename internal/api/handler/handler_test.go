package handler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/api/domain"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/api/model"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/api/storage"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/auth"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/config"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeStore is an in-memory Store for handler tests. It also satisfies
// auth.Blacklist so one fake backs both the handlers and the codec.
type fakeStore struct {
	mu      sync.Mutex
	nextID  int64
	users   map[string]*model.User // by lowercased email
	uploads map[string]*model.Upload
	jobs    map[string]*model.Job
	jtis    map[string]bool

	lastLoginTouched []int64
	createJobErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   map[string]*model.User{},
		uploads: map[string]*model.Upload{},
		jobs:    map[string]*model.Job{},
		jtis:    map[string]bool{},
	}
}

func (f *fakeStore) CreateUser(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.users[user.Email]; exists {
		return domain.ErrEmailTaken
	}
	f.nextID++
	user.ID = f.nextID
	f.users[user.Email] = user
	return nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return user, nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeStore) TouchLastLogin(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLoginTouched = append(f.lastLoginTouched, id)
	return nil
}

func (f *fakeStore) BlacklistJTI(_ context.Context, jti string, _ int64, _ time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.jtis[jti] {
		return false, nil
	}
	f.jtis[jti] = true
	return true, nil
}

func (f *fakeStore) IsJTIBlacklisted(_ context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jtis[jti], nil
}

func (f *fakeStore) CreateUpload(_ context.Context, upload *model.Upload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads[upload.UUID] = upload
	return nil
}

func (f *fakeStore) GetUpload(_ context.Context, userID int64, uuid string) (*model.Upload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	upload, ok := f.uploads[uuid]
	if !ok || upload.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return upload, nil
}

func (f *fakeStore) CreateJob(_ context.Context, job *model.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createJobErr != nil {
		return f.createJobErr
	}
	f.jobs[job.UUID] = job
	return nil
}

func (f *fakeStore) SetJobTaskID(_ context.Context, uuid, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job, ok := f.jobs[uuid]; ok {
		job.WorkerTaskID = taskID
	}
	return nil
}

func (f *fakeStore) GetJob(_ context.Context, userID int64, uuid string) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[uuid]
	if !ok || job.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

func (f *fakeStore) ListJobs(_ context.Context, filter storage.JobFilter) ([]model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 50
	}

	var out []model.Job
	for _, job := range f.jobs {
		if job.UserID != filter.UserID {
			continue
		}
		if filter.Kind != "" && job.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if filter.Cursor != nil {
			if job.CreatedAt.After(filter.Cursor.CreatedAt) {
				continue
			}
			if job.CreatedAt.Equal(filter.Cursor.CreatedAt) && job.UUID >= filter.Cursor.JobUUID {
				continue
			}
		}
		out = append(out, *job)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].UUID > out[j].UUID
	})

	if len(out) > pageSize+1 {
		out = out[:pageSize+1]
	}
	return out, nil
}

// fakeQueue records published messages
type fakeQueue struct {
	mu         sync.Mutex
	messages   [][]byte
	publishErr error
}

func (f *fakeQueue) PublishWithRetry(_ context.Context, body []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.messages = append(f.messages, body)
	return nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Auth.SigningSecret = "test-secret"
	cfg.Auth.AccessTokenTTL = 5 * 24 * time.Hour
	cfg.Auth.RefreshTokenTTL = 7 * 24 * time.Hour
	cfg.Auth.AccessCookie = config.CookieConfig{Name: "access_token", Path: "/", SameSite: "lax"}
	cfg.Auth.RefreshCookie = config.CookieConfig{Name: "refresh_token", Path: "/api/v1/auth/", SameSite: "lax"}
	cfg.Auth.CSRFCookie = config.CookieConfig{Name: "csrf_token", Path: "/", SameSite: "lax"}
	cfg.Auth.CSRFHeaderName = "X-CSRF-Token"
	cfg.App.PublicBaseURL = "http://localhost:8080"
	cfg.App.MediaURLPath = "/media"
	cfg.Upload.MaxBytes = 1 << 20
	return cfg
}

func testDeps(store *fakeStore, queue *fakeQueue) *Dependencies {
	cfg := testConfig()
	codec := auth.NewCodec(cfg.Auth.SigningSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL, store)
	return &Dependencies{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config:  cfg,
		Storage: store,
		Codec:   codec,
		Queue:   queue,
	}
}

// identityMiddleware injects an authenticated identity the way the
// session middleware would
func identityMiddleware(user *model.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("auth_identity", auth.Identity{User: user, Source: auth.SourceCookie})
		c.Next()
	}
}

func seedUser(store *fakeStore, id int64) *model.User {
	user := &model.User{
		ID:       id,
		Email:    fmt.Sprintf("user%d@example.com", id),
		Name:     "Test User",
		Verified: true,
		IsActive: true,
	}
	store.users[user.Email] = user
	if id > store.nextID {
		store.nextID = id
	}
	return user
}
