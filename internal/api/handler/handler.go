package handler

import (
	"context"
	"log/slog"

	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/api/model"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/api/storage"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/auth"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/config"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/resemble"
)

// Store is the persistence surface the handlers need
type Store interface {
	auth.UserStore

	CreateUser(ctx context.Context, user *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	TouchLastLogin(ctx context.Context, id int64) error

	CreateUpload(ctx context.Context, upload *model.Upload) error
	GetUpload(ctx context.Context, userID int64, uuid string) (*model.Upload, error)

	CreateJob(ctx context.Context, job *model.Job) error
	SetJobTaskID(ctx context.Context, uuid, taskID string) error
	GetJob(ctx context.Context, userID int64, uuid string) (*model.Job, error)
	ListJobs(ctx context.Context, filter storage.JobFilter) ([]model.Job, error)
}

// QueuePublisher enqueues job messages for the worker service
type QueuePublisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger   *slog.Logger
	Config   *config.Config
	Storage  Store
	Codec    *auth.Codec
	Auth     *auth.Authenticator
	Resemble *resemble.Client
	Queue    QueuePublisher
}
