package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/api/domain"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/api/dto"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/api/model"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/api/storage"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/auth"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// JobHandler submits asynchronous provider jobs and serves polling
type JobHandler struct {
	logger  *slog.Logger
	cfg     *config.Config
	storage Store
	queue   QueuePublisher
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:  deps.Logger,
		cfg:     deps.Config,
		storage: deps.Storage,
		queue:   deps.Queue,
	}
}

// SubmitDetect handles POST /api/v1/jobs/detect
func (h *JobHandler) SubmitDetect(c *gin.Context) {
	var req dto.DetectJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	identity := auth.IdentityFromContext(c)

	upload, err := h.storage.GetUpload(c.Request.Context(), identity.User.ID, req.UploadUUID)
	if err != nil {
		respondStorageError(c, h.logger, err)
		return
	}

	payload := buildDetectPayload(&req, publicMediaURL(h.cfg, upload.StoragePath))
	h.submit(c, identity.User.ID, domain.JobKindDetect, upload.UUID, payload)
}

// SubmitVoiceDesign handles POST /api/v1/jobs/voice-design
func (h *JobHandler) SubmitVoiceDesign(c *gin.Context) {
	var req dto.VoiceDesignJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	trial := true
	if req.IsVoiceDesignTrial != nil {
		trial = *req.IsVoiceDesignTrial
	}

	identity := auth.IdentityFromContext(c)
	payload := model.JSONMap{
		"user_prompt":           req.UserPrompt,
		"is_voice_design_trial": trial,
	}
	h.submit(c, identity.User.ID, domain.JobKindVoiceDesign, "", payload)
}

// SubmitVoiceCloneCreate handles POST /api/v1/jobs/voice-clone
func (h *JobHandler) SubmitVoiceCloneCreate(c *gin.Context) {
	var req dto.VoiceCloneCreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	identity := auth.IdentityFromContext(c)

	payload := model.JSONMap{
		"name":       req.Name,
		"voice_type": req.VoiceType,
	}
	putNonEmpty(payload, "language", req.Language)
	putNonEmpty(payload, "description", req.Description)
	putNonEmpty(payload, "dataset_url", req.DatasetURL)
	putNonEmpty(payload, "callback_uri", req.CallbackURI)

	h.submit(c, identity.User.ID, domain.JobKindVoiceCloneCreate, "", payload)
}

// SubmitVoiceCloneBuild handles POST /api/v1/jobs/voice-clone/build
func (h *JobHandler) SubmitVoiceCloneBuild(c *gin.Context) {
	var req dto.VoiceCloneBuildJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	identity := auth.IdentityFromContext(c)
	payload := model.JSONMap{
		"voice_uuid": req.VoiceUUID,
		"fill":       req.Fill,
	}
	h.submit(c, identity.User.ID, domain.JobKindVoiceCloneBuild, "", payload)
}

// submit is the shared two-phase handoff: the queued row must exist
// before the message is published, and the response goes out as soon
// as both have happened. Job completion is observed by polling.
func (h *JobHandler) submit(c *gin.Context, userID int64, kind, uploadUUID string, payload model.JSONMap) {
	now := time.Now().UTC()
	job := model.Job{
		UUID:           uuid.NewString(),
		UserID:         userID,
		Kind:           kind,
		Status:         domain.JobStatusQueued,
		RequestPayload: payload,
		RemoteResponse: model.JSONMap{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if uploadUUID != "" {
		job.UploadUUID.String = uploadUUID
		job.UploadUUID.Valid = true
	}

	if err := h.storage.CreateJob(c.Request.Context(), &job); err != nil {
		h.logger.Error("Failed to create job",
			slog.String("kind", kind),
			slog.Any("error", err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to create job"})
		return
	}

	taskID := uuid.NewString()
	msg, _ := json.Marshal(gin.H{"job_id": job.UUID, "task_id": taskID})

	if err := h.queue.PublishWithRetry(c.Request.Context(), msg, "application/json"); err != nil {
		h.logger.Error("Failed to enqueue job",
			slog.String("job_uuid", job.UUID),
			slog.Any("error", err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to enqueue job"})
		return
	}

	if err := h.storage.SetJobTaskID(c.Request.Context(), job.UUID, taskID); err != nil {
		h.logger.Warn("Failed to record job task id",
			slog.String("job_uuid", job.UUID),
			slog.Any("error", err),
		)
	}

	h.logger.Info("Job submitted",
		slog.String("job_uuid", job.UUID),
		slog.String("kind", kind),
		slog.Int64("user_id", userID),
	)

	c.JSON(http.StatusAccepted, gin.H{
		"success":  true,
		"job_uuid": job.UUID,
		"status":   job.Status,
	})
}

// Get handles GET /api/v1/jobs/:job_id, the polling endpoint.
// Status is read from the persisted row, so it survives worker
// restarts.
func (h *JobHandler) Get(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "job_id must be a valid UUID"})
		return
	}

	identity := auth.IdentityFromContext(c)

	job, err := h.storage.GetJob(c.Request.Context(), identity.User.ID, jobID)
	if err != nil {
		respondStorageError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "item": jobToStatus(job)})
}

// List handles GET /api/v1/jobs with cursor pagination
func (h *JobHandler) List(c *gin.Context) {
	var q dto.JobListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindingError(c, err)
		return
	}

	cursor, err := DecodeJobCursor(q.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid cursor"})
		return
	}

	identity := auth.IdentityFromContext(c)

	jobs, err := h.storage.ListJobs(c.Request.Context(), storage.JobFilter{
		UserID:   identity.User.ID,
		Kind:     q.Kind,
		Status:   q.Status,
		PageSize: q.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		respondStorageError(c, h.logger, err)
		return
	}

	// the extra row only signals that a next page exists
	var nextCursor string
	if len(jobs) > q.PageSize {
		jobs = jobs[:q.PageSize]
		last := jobs[len(jobs)-1]
		nextCursor = EncodeJobCursor(&storage.JobCursor{CreatedAt: last.CreatedAt, JobUUID: last.UUID})
	}

	items := make([]dto.JobStatusResponse, len(jobs))
	for i := range jobs {
		items[i] = jobToStatus(&jobs[i])
	}

	resp := gin.H{"success": true, "items": items}
	if nextCursor != "" {
		resp["next_cursor"] = nextCursor
	}
	c.JSON(http.StatusOK, resp)
}

func jobToStatus(job *model.Job) dto.JobStatusResponse {
	resp := dto.JobStatusResponse{
		JobUUID:             job.UUID,
		Kind:                job.Kind,
		Status:              job.Status,
		RemoteCorrelationID: job.RemoteCorrelationID,
		CreatedAt:           job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:           job.UpdatedAt.Format(time.RFC3339),
	}
	if job.Status == domain.JobStatusSucceeded {
		resp.Result = job.RemoteResponse
	}
	if job.Status == domain.JobStatusFailed {
		resp.Error = job.ErrorMessage
	}
	return resp
}

// buildDetectPayload assembles the provider detect request from the
// allow-listed fields. Unset optional fields are omitted rather than
// sent as zero values.
func buildDetectPayload(req *dto.DetectJobRequest, mediaURL string) model.JSONMap {
	payload := model.JSONMap{"url": mediaURL}

	if req.Visualize != nil {
		payload["visualize"] = *req.Visualize
	}
	if req.FrameLength > 0 {
		payload["frame_length"] = req.FrameLength
	}
	putNonEmpty(payload, "model_type", req.ModelType)
	if req.Intelligence != nil {
		payload["intelligence"] = *req.Intelligence
	}
	if req.AudioSourceTracingEnabled != nil {
		payload["audio_source_tracing_enabled"] = *req.AudioSourceTracingEnabled
	}
	if req.UseOODDetector != nil {
		payload["use_ood_detector"] = *req.UseOODDetector
	}
	// -1 from the UI means "full file": omit the region entirely
	if req.StartRegion != nil && *req.StartRegion >= 0 {
		payload["start_region"] = *req.StartRegion
	}
	if req.EndRegion != nil && *req.EndRegion >= 0 {
		payload["end_region"] = *req.EndRegion
	}

	return payload
}

func putNonEmpty(payload model.JSONMap, key, value string) {
	if value != "" {
		payload[key] = value
	}
}
