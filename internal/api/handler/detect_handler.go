package handler

import (
	"log/slog"
	"net/http"

	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/api/dto"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/resemble"
	"github.com/gin-gonic/gin"
)

// DetectHandler exposes deepfake detection metadata and the direct
// provider read proxies. Submissions go through the async job surface.
type DetectHandler struct {
	logger   *slog.Logger
	resemble *resemble.Client
}

// NewDetectHandler creates a new DetectHandler instance
func NewDetectHandler(deps *Dependencies) *DetectHandler {
	return &DetectHandler{
		logger:   deps.Logger,
		resemble: deps.Resemble,
	}
}

// Meta handles GET /api/v1/deepfake/meta
func (h *DetectHandler) Meta(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"model_types":   []string{"image", "talking_head"},
		"frame_lengths": []int{1, 2, 3, 4},
		"flags": []string{
			"visualize", "intelligence",
			"audio_source_tracing_enabled", "use_ood_detector",
		},
	})
}

// List handles GET /api/v1/deepfake, the provider-side detection history
func (h *DetectHandler) List(c *gin.Context) {
	var q dto.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindingError(c, err)
		return
	}

	data, err := h.resemble.DetectList(c.Request.Context(), q.Page, q.PerPage)
	if err != nil {
		respondProxyError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// Get handles GET /api/v1/deepfake/:uuid, polling a detection by its
// remote uuid
func (h *DetectHandler) Get(c *gin.Context) {
	data, err := h.resemble.DetectGet(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		respondProxyError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, data)
}
