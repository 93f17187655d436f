package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/resemble"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/worker/domain"
)

// processJob runs one delivery end to end: claim, execute with bounded
// retry, record the terminal state. A nil return acks the message.
func (w *Worker) processJob(ctx context.Context, msg *domain.JobMessage) error {
	w.logger.Info("Processing job",
		slog.String("job_uuid", msg.JobID),
		slog.String("task_id", msg.TaskID),
		slog.String("worker_id", w.workerID),
	)

	job, err := w.storage.ClaimJob(ctx, msg.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobAlreadyDone) {
			// redelivery of a finished job, nothing to do
			w.logger.Info("Job already finished, acking redelivery",
				slog.String("job_uuid", msg.JobID),
			)
			return nil
		}
		if errors.Is(err, domain.ErrJobAlreadyClaimed) || errors.Is(err, domain.ErrJobNotFound) {
			// a running row here is either a concurrent worker mid-flight
			// or one that died without marking the job; requeueing would
			// risk double execution, so stale running rows are left for
			// an operator to reset
			return fmt.Errorf("claim rejected: %w", err)
		}
		// database hiccup, let another delivery try
		return domain.NewRetryableError(fmt.Errorf("failed to claim job: %w", err))
	}

	var payload map[string]any
	if len(job.Payload) > 0 {
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			w.logger.Error("Failed to parse job payload",
				slog.String("job_uuid", job.UUID),
				slog.String("error", err.Error()),
			)
			if markErr := w.storage.MarkFailed(ctx, job.UUID, "invalid payload JSON"); markErr != nil {
				w.logger.Error("Failed to mark job failed",
					slog.String("job_uuid", job.UUID),
					slog.String("error", markErr.Error()),
				)
			}
			return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
		}
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	result, err := w.executeWithRetry(jobCtx, job, payload)
	if err != nil {
		w.logger.Error("Job execution failed",
			slog.String("job_uuid", job.UUID),
			slog.String("kind", job.Kind),
			slog.String("error", err.Error()),
		)
		if markErr := w.storage.MarkFailed(ctx, job.UUID, errorMessage(err)); markErr != nil {
			w.logger.Error("Failed to mark job failed",
				slog.String("job_uuid", job.UUID),
				slog.String("error", markErr.Error()),
			)
			return domain.NewRetryableError(fmt.Errorf("failed to record job failure: %w", markErr))
		}
		// terminal failure is recorded, the message is consumed
		return nil
	}

	correlationID := extractCorrelationID(result)
	if err := w.storage.MarkSucceeded(ctx, job.UUID, correlationID, result); err != nil {
		// the provider call went through, acking anyway beats re-running it
		w.logger.Error("Failed to mark job succeeded",
			slog.String("job_uuid", job.UUID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	w.logger.Info("Job completed successfully",
		slog.String("job_uuid", job.UUID),
		slog.String("kind", job.Kind),
		slog.String("remote_correlation_id", correlationID),
	)
	return nil
}

// executeWithRetry runs the provider call up to maxAttempts times with
// exponential backoff and jitter. Provider rejections (4xx) are
// permanent and never retried.
func (w *Worker) executeWithRetry(ctx context.Context, job *domain.Job, payload map[string]any) (map[string]any, error) {
	var lastErr error

	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		result, err := w.executeJob(ctx, job, payload)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if errors.Is(err, domain.ErrInvalidPayload) {
			return nil, err
		}
		if resemble.IsRemoteStatus(err, 400, 499) {
			w.logger.Warn("Provider rejected job, not retrying",
				slog.String("job_uuid", job.UUID),
				slog.String("error", err.Error()),
			)
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("job canceled: %w", ctx.Err())
		}
		if attempt == w.maxAttempts {
			break
		}

		delay := w.retryBaseDelay << (attempt - 1)
		delay += time.Duration(rand.Int63n(int64(w.retryBaseDelay)))
		w.logger.Warn("Job attempt failed, backing off",
			slog.String("job_uuid", job.UUID),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", w.maxAttempts),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("job canceled: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("all %d attempts failed: %w", w.maxAttempts, lastErr)
}

// errorMessage renders the stored failure text. Provider errors keep
// their status and body so the polling client sees what the provider
// said.
func errorMessage(err error) string {
	var remoteErr *resemble.RemoteError
	if errors.As(err, &remoteErr) {
		body, _ := json.Marshal(remoteErr.Body)
		return fmt.Sprintf("provider returned %d: %s", remoteErr.Status, body)
	}
	return err.Error()
}

// extractCorrelationID pulls the provider-side uuid out of the
// response, trying the wrapped item shape first
func extractCorrelationID(resp map[string]any) string {
	if item, ok := resp["item"].(map[string]any); ok {
		if id, ok := item["uuid"].(string); ok {
			return id
		}
	}
	if id, ok := resp["uuid"].(string); ok {
		return id
	}
	return ""
}
