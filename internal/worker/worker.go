package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/resemble"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/worker/domain"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/worker/storage"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/shared/postgresql"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/shared/rabbitmq"
	"github.com/google/uuid"
)

// Store is the persistence surface the worker needs
type Store interface {
	ClaimJob(ctx context.Context, jobUUID string) (*domain.Job, error)
	MarkSucceeded(ctx context.Context, jobUUID, correlationID string, response map[string]any) error
	MarkFailed(ctx context.Context, jobUUID, errorMsg string) error
}

// Gateway is the provider surface the executor needs
type Gateway interface {
	DetectCreate(ctx context.Context, payload map[string]any) (map[string]any, error)
	VoiceDesignGenerate(ctx context.Context, userPrompt string, trial bool) (map[string]any, error)
	CreateVoice(ctx context.Context, payload map[string]any) (map[string]any, error)
	BuildVoice(ctx context.Context, voiceUUID string, fill bool) (map[string]any, error)
}

// Config holds worker configuration
type Config struct {
	Logger         *slog.Logger
	DBClient       *postgresql.Client
	RabbitClient   *rabbitmq.Client
	Resemble       *resemble.Client
	Concurrency    int
	JobTimeout     time.Duration
	MaxAttempts    int
	RetryBaseDelay time.Duration
	PrefetchCount  int
	QueueName      string
}

// Worker consumes queued provider jobs and executes them
type Worker struct {
	logger       *slog.Logger
	rabbitClient *rabbitmq.Client
	storage      Store
	gateway      Gateway

	concurrency    int
	jobTimeout     time.Duration
	maxAttempts    int
	retryBaseDelay time.Duration
	prefetchCount  int
	queueName      string
	workerID       string

	jobsChan chan *domain.JobMessage
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	hostname, _ := os.Hostname()
	workerID := fmt.Sprintf("%s-%s", hostname, uuid.NewString()[:8])

	return &Worker{
		logger:         cfg.Logger,
		rabbitClient:   cfg.RabbitClient,
		storage:        storage.NewStorage(cfg.DBClient.GetDB(), cfg.Logger),
		gateway:        cfg.Resemble,
		concurrency:    cfg.Concurrency,
		jobTimeout:     cfg.JobTimeout,
		maxAttempts:    cfg.MaxAttempts,
		retryBaseDelay: cfg.RetryBaseDelay,
		prefetchCount:  cfg.PrefetchCount,
		queueName:      cfg.QueueName,
		workerID:       workerID,
		jobsChan:       make(chan *domain.JobMessage),
		stopChan:       make(chan struct{}),
	}
}

// Start begins processing jobs until the context is canceled
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
		slog.Int("max_attempts", w.maxAttempts),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return fmt.Errorf("failed to set up consumer: %w", err)
	}

	w.spawnWorkerPool(ctx)
	w.startMessageDispatcher(ctx, deliveries)

	return nil
}

// Stop gracefully stops the worker, draining in-flight jobs
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...", slog.String("worker_id", w.workerID))
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped", slog.String("worker_id", w.workerID))
}
