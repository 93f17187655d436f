package handler

import (
	"log/slog"
	"net/http"

	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/api/dto"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/resemble"
	"github.com/gin-gonic/gin"
)

// VoiceHandler proxies the provider's voice library
type VoiceHandler struct {
	logger   *slog.Logger
	resemble *resemble.Client
}

// NewVoiceHandler creates a new VoiceHandler instance
func NewVoiceHandler(deps *Dependencies) *VoiceHandler {
	return &VoiceHandler{
		logger:   deps.Logger,
		resemble: deps.Resemble,
	}
}

// List handles GET /api/v1/voices
func (h *VoiceHandler) List(c *gin.Context) {
	var q dto.VoicesListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindingError(c, err)
		return
	}

	advanced := true
	if q.Advanced != nil {
		advanced = *q.Advanced
	}

	data, err := h.resemble.ListVoices(c.Request.Context(), resemble.ListVoicesParams{
		Page:     q.Page,
		PageSize: q.PageSize,
		Advanced: advanced,
	})
	if err != nil {
		respondProxyError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// MyVoices handles GET /api/v1/voices/mine.
// The provider has no ownership filter, so every page is fetched and
// the custom voices are re-paginated locally.
func (h *VoiceHandler) MyVoices(c *gin.Context) {
	var q dto.VoicesListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindingError(c, err)
		return
	}

	const fetchPageSize = 100
	const maxPages = 50

	var custom []any
	for page := 1; page <= maxPages; page++ {
		data, err := h.resemble.ListVoices(c.Request.Context(), resemble.ListVoicesParams{
			Page:     page,
			PageSize: fetchPageSize,
			Advanced: true,
		})
		if err != nil {
			respondProxyError(c, h.logger, err)
			return
		}

		items, _ := data["items"].([]any)
		for _, item := range items {
			v, ok := item.(map[string]any)
			if !ok {
				continue
			}
			source, _ := v["source"].(string)
			if source == "" || source == "Custom Voice" {
				custom = append(custom, v)
			}
		}

		numPages, _ := data["num_pages"].(float64)
		if len(items) == 0 || page >= int(numPages) {
			break
		}
	}

	start := (q.Page - 1) * q.PageSize
	if start > len(custom) {
		start = len(custom)
	}
	end := start + q.PageSize
	if end > len(custom) {
		end = len(custom)
	}

	numPages := (len(custom) + q.PageSize - 1) / q.PageSize
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"items":     custom[start:end],
		"page":      q.Page,
		"num_pages": numPages,
		"total":     len(custom),
	})
}

// Create handles POST /api/v1/voices (direct synchronous creation)
func (h *VoiceHandler) Create(c *gin.Context) {
	var req dto.VoiceCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	payload := map[string]any{"name": req.Name}
	putNonEmpty(payload, "dataset_url", req.DatasetURL)
	putNonEmpty(payload, "voice_type", req.VoiceType)
	putNonEmpty(payload, "language", req.Language)

	data, err := h.resemble.CreateVoice(c.Request.Context(), payload)
	if err != nil {
		respondProxyError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, data)
}

// Get handles GET /api/v1/voices/:uuid, the training status poll
func (h *VoiceHandler) Get(c *gin.Context) {
	data, err := h.resemble.GetVoice(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		respondProxyError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// CreateRapidVoice handles POST /api/v1/voices/rapid
func (h *VoiceHandler) CreateRapidVoice(c *gin.Context) {
	var req dto.RapidVoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	data, err := h.resemble.CreateRapidVoice(c.Request.Context(),
		req.VoiceDesignModelUUID, *req.VoiceSampleIndex, req.VoiceName)
	if err != nil {
		respondProxyError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, data)
}

// UploadRecording handles POST /api/v1/voices/:uuid/recordings, relaying
// the audio file as a multipart form to the provider
func (h *VoiceHandler) UploadRecording(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "file is required"})
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded recording", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal server error"})
		return
	}
	defer src.Close()

	fields := map[string]string{}
	for _, key := range []string{"name", "text", "emotion", "is_active"} {
		if v := c.PostForm(key); v != "" {
			fields[key] = v
		}
	}

	data, err := h.resemble.UploadVoiceRecording(c.Request.Context(), c.Param("uuid"), fields, &resemble.FileField{
		FieldName:   "file",
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Reader:      src,
	})
	if err != nil {
		respondProxyError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, data)
}
