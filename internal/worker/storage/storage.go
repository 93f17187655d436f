package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	apidomain "github.com/HamzaAhmedWajeeh/stc-voice-api/internal/api/domain"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/worker/domain"
	"github.com/jmoiron/sqlx"
)

// Storage handles all database operations for the worker
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// ClaimJob moves a queued job to running and returns it. Transitions
// only move forward, so the guard on status doubles as the claim lock:
// a second worker on the same delivery finds zero rows.
func (s *Storage) ClaimJob(ctx context.Context, jobUUID string) (*domain.Job, error) {
	query := `
		UPDATE jobs
		SET status = $1,
		    updated_at = NOW()
		WHERE uuid = $2
		  AND status = $3
		RETURNING uuid, user_id, kind, request_payload
	`

	var job domain.Job
	err := s.db.QueryRowContext(ctx, query,
		apidomain.JobStatusRunning, jobUUID, apidomain.JobStatusQueued,
	).Scan(&job.UUID, &job.UserID, &job.Kind, &job.Payload)

	if err == nil {
		s.logger.Info("Job claimed",
			slog.String("job_uuid", jobUUID),
			slog.String("kind", job.Kind),
		)
		return &job, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	// Distinguish a finished redelivery from a concurrent claim
	var status string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM jobs WHERE uuid = $1`, jobUUID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to read job status: %w", err)
	}

	switch status {
	case apidomain.JobStatusSucceeded, apidomain.JobStatusFailed:
		return nil, domain.ErrJobAlreadyDone
	default:
		return nil, domain.ErrJobAlreadyClaimed
	}
}

// MarkSucceeded records the provider response on a running job. The
// status guard keeps a late writer from touching a row another path
// already finished.
func (s *Storage) MarkSucceeded(ctx context.Context, jobUUID, correlationID string, response map[string]any) error {
	responseJSON, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	query := `
		UPDATE jobs
		SET status = $1,
		    remote_correlation_id = $2,
		    remote_response = $3,
		    updated_at = NOW()
		WHERE uuid = $4
		  AND status = $5
	`

	result, err := s.db.ExecContext(ctx, query,
		apidomain.JobStatusSucceeded, correlationID, responseJSON, jobUUID, apidomain.JobStatusRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to mark job succeeded: %w", err)
	}

	return s.logOutcome(result, jobUUID, apidomain.JobStatusSucceeded)
}

// MarkFailed records the terminal error on a running job
func (s *Storage) MarkFailed(ctx context.Context, jobUUID, errorMsg string) error {
	query := `
		UPDATE jobs
		SET status = $1,
		    error_message = $2,
		    updated_at = NOW()
		WHERE uuid = $3
		  AND status = $4
	`

	result, err := s.db.ExecContext(ctx, query,
		apidomain.JobStatusFailed, errorMsg, jobUUID, apidomain.JobStatusRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}

	return s.logOutcome(result, jobUUID, apidomain.JobStatusFailed)
}

func (s *Storage) logOutcome(result sql.Result, jobUUID, status string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		s.logger.Warn("Job terminal update matched no running row",
			slog.String("job_uuid", jobUUID),
			slog.String("status", status),
		)
		return nil
	}

	s.logger.Info("Job status updated",
		slog.String("job_uuid", jobUUID),
		slog.String("status", status),
	)
	return nil
}
