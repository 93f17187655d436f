package handler

import (
	"log/slog"
	"net/http"

	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/api/dto"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/resemble"
	"github.com/gin-gonic/gin"
)

// STTHandler proxies the provider's speech-to-text surface
type STTHandler struct {
	logger   *slog.Logger
	resemble *resemble.Client
}

// NewSTTHandler creates a new STTHandler instance
func NewSTTHandler(deps *Dependencies) *STTHandler {
	return &STTHandler{
		logger:   deps.Logger,
		resemble: deps.Resemble,
	}
}

// ListTranscripts handles GET /api/v1/stt/transcripts
func (h *STTHandler) ListTranscripts(c *gin.Context) {
	var q dto.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindingError(c, err)
		return
	}

	data, err := h.resemble.ListTranscripts(c.Request.Context(), q.Page, q.PerPage)
	if err != nil {
		respondProxyError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// CreateTranscript handles POST /api/v1/stt/transcripts, relaying the
// audio file and transcription options to the provider
func (h *STTHandler) CreateTranscript(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "file is required"})
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded audio", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal server error"})
		return
	}
	defer src.Close()

	fields := map[string]string{}
	for _, key := range []string{"name", "language", "diarize", "summarize", "translate_to"} {
		if v := c.PostForm(key); v != "" {
			fields[key] = v
		}
	}

	data, err := h.resemble.CreateTranscript(c.Request.Context(), fields, &resemble.FileField{
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

// GetTranscript handles GET /api/v1/stt/transcripts/:uuid
func (h *STTHandler) GetTranscript(c *gin.Context) {
	data, err := h.resemble.GetTranscript(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		respondProxyError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// Ask handles POST /api/v1/stt/transcripts/:uuid/ask
func (h *STTHandler) Ask(c *gin.Context) {
	var req dto.AskQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	data, err := h.resemble.AskTranscript(c.Request.Context(), c.Param("uuid"),
		map[string]any{"question": req.Question})
	if err != nil {
		respondProxyError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// ListQuestions handles GET /api/v1/stt/transcripts/:uuid/questions
func (h *STTHandler) ListQuestions(c *gin.Context) {
	var q dto.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindingError(c, err)
		return
	}

	data, err := h.resemble.ListQuestions(c.Request.Context(), c.Param("uuid"), q.Page, q.PerPage)
	if err != nil {
		respondProxyError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// GetQuestion handles GET /api/v1/stt/transcripts/:uuid/questions/:question_uuid
func (h *STTHandler) GetQuestion(c *gin.Context) {
	data, err := h.resemble.GetQuestion(c.Request.Context(), c.Param("uuid"), c.Param("question_uuid"))
	if err != nil {
		respondProxyError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, data)
}
