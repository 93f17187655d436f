package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/api/domain"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/api/model"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/shared/postgresql"
	"github.com/jmoiron/sqlx"
)

// Storage handles all database operations for the API service
type Storage struct {
	db *sqlx.DB
}

// NewStorage creates a new Storage instance
func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{db: pg.GetDB()}
}

// NewStorageWithDB wires an existing sqlx.DB (used by tests)
func NewStorageWithDB(db *sqlx.DB) *Storage {
	return &Storage{db: db}
}

// ---- Users ----

// CreateUser inserts a user. Email is case-normalized before insert.
func (s *Storage) CreateUser(ctx context.Context, user *model.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	query := `
		INSERT INTO users (email, name, password_hash, is_active, is_staff, verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := s.db.QueryRowContext(
		ctx, query,
		user.Email, user.Name, user.PasswordHash,
		user.IsActive, user.IsStaff, user.Verified,
		time.Now().UTC(),
	).Scan(&user.ID)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByEmail looks a user up by case-normalized email
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	query := `
		SELECT id, email, name, password_hash, is_active, is_staff, verified, last_login, created_at
		FROM users
		WHERE email = $1
	`

	err := s.db.GetContext(ctx, &user, query, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return &user, nil
}

// GetUserByID resolves a token's user_id claim to a user row
func (s *Storage) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	query := `
		SELECT id, email, name, password_hash, is_active, is_staff, verified, last_login, created_at
		FROM users
		WHERE id = $1
	`

	err := s.db.GetContext(ctx, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// TouchLastLogin records a successful login
func (s *Storage) TouchLastLogin(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_login = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to update last_login: %w", err)
	}
	return nil
}

// ---- Token blacklist ----

// BlacklistJTI inserts a revoked refresh token id. Returns true when
// this call inserted the row, false when the jti was already present.
// The unique insert is what makes refresh rotation single-use.
func (s *Storage) BlacklistJTI(ctx context.Context, jti string, userID int64, expiresAt time.Time) (bool, error) {
	query := `
		INSERT INTO token_blacklist (jti, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (jti) DO NOTHING
	`

	res, err := s.db.ExecContext(ctx, query, jti, userID, expiresAt)
	if err != nil {
		return false, fmt.Errorf("failed to blacklist jti: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return n == 1, nil
}

// IsJTIBlacklisted checks whether a refresh token id was revoked
func (s *Storage) IsJTIBlacklisted(ctx context.Context, jti string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM token_blacklist WHERE jti = $1)`, jti)
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}
	return exists, nil
}

// ---- Uploads ----

// CreateUpload persists upload metadata after the file is stored
func (s *Storage) CreateUpload(ctx context.Context, upload *model.Upload) error {
	query := `
		INSERT INTO uploads (uuid, user_id, storage_path, original_name, content_type, size_bytes, sha256, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.db.ExecContext(
		ctx, query,
		upload.UUID, upload.UserID, upload.StoragePath,
		upload.OriginalName, upload.ContentType, upload.SizeBytes,
		upload.SHA256, upload.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create upload: %w", err)
	}

	return nil
}

// GetUpload returns an upload only when owned by the caller
func (s *Storage) GetUpload(ctx context.Context, userID int64, uuid string) (*model.Upload, error) {
	var upload model.Upload
	query := `
		SELECT uuid, user_id, storage_path, original_name, content_type, size_bytes, sha256, created_at
		FROM uploads
		WHERE uuid = $1 AND user_id = $2
	`

	err := s.db.GetContext(ctx, &upload, query, uuid, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get upload: %w", err)
	}

	return &upload, nil
}

// ---- Jobs ----

// CreateJob persists a job row in queued state. The row must exist
// before the message is published so polling always has something to
// read.
func (s *Storage) CreateJob(ctx context.Context, job *model.Job) error {
	query := `
		INSERT INTO jobs (
			uuid, user_id, kind, upload_uuid, status,
			worker_task_id, remote_correlation_id,
			request_payload, remote_response, error_message,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7,
			$8, $9, $10,
			$11, $12
		)
	`

	_, err := s.db.ExecContext(
		ctx, query,
		job.UUID, job.UserID, job.Kind, job.UploadUUID, job.Status,
		job.WorkerTaskID, job.RemoteCorrelationID,
		job.RequestPayload, job.RemoteResponse, job.ErrorMessage,
		job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// SetJobTaskID records the queue message id after publishing
func (s *Storage) SetJobTaskID(ctx context.Context, uuid, taskID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET worker_task_id = $1, updated_at = NOW() WHERE uuid = $2`,
		taskID, uuid)
	if err != nil {
		return fmt.Errorf("failed to set job task id: %w", err)
	}
	return nil
}

// GetJob returns a job only when owned by the caller. A missing row
// and a row owned by someone else are indistinguishable.
func (s *Storage) GetJob(ctx context.Context, userID int64, uuid string) (*model.Job, error) {
	var job model.Job
	query := `
		SELECT uuid, user_id, kind, upload_uuid, status,
		       worker_task_id, remote_correlation_id,
		       request_payload, remote_response, error_message,
		       created_at, updated_at
		FROM jobs
		WHERE uuid = $1 AND user_id = $2
	`

	err := s.db.GetContext(ctx, &job, query, uuid, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// JobFilter narrows a job listing. The cursor points past the last row
// of the previous page.
type JobFilter struct {
	UserID   int64
	Kind     string
	Status   string
	PageSize int
	Cursor   *JobCursor
}

// JobCursor is the (created_at, uuid) position pagination resumes from.
// Ordering on the pair keeps pages stable while new jobs arrive.
type JobCursor struct {
	CreatedAt time.Time
	JobUUID   string
}

// ListJobs returns one page of the caller's jobs, newest first. One row
// beyond PageSize is fetched so the caller can tell whether a next page
// exists.
func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 50
	}

	query := `
		SELECT uuid, user_id, kind, upload_uuid, status,
		       worker_task_id, remote_correlation_id,
		       request_payload, remote_response, error_message,
		       created_at, updated_at
		FROM jobs
		WHERE user_id = $1
	`
	args := []any{filter.UserID}
	argIdx := 2

	if filter.Kind != "" {
		query += fmt.Sprintf(" AND kind = $%d", argIdx)
		args = append(args, filter.Kind)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, uuid) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobUUID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, uuid DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var jobs []model.Job
	err := s.db.SelectContext(ctx, &jobs, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}
