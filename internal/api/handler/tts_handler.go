package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/api/dto"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/resemble"
	"github.com/gin-gonic/gin"
)

// TTSHandler proxies synthesis streaming and voice settings presets
type TTSHandler struct {
	logger   *slog.Logger
	resemble *resemble.Client
}

// NewTTSHandler creates a new TTSHandler instance
func NewTTSHandler(deps *Dependencies) *TTSHandler {
	return &TTSHandler{
		logger:   deps.Logger,
		resemble: deps.Resemble,
	}
}

// Meta handles GET /api/v1/tts/meta
func (h *TTSHandler) Meta(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"models": []gin.H{
			{"value": "", "label": "Auto (default by voice)"},
			{"value": "chatterbox-turbo", "label": "Chatterbox Turbo (low latency + tags)"},
			{"value": "tts-v4", "label": "Chatterbox (v4 code)"},
			{"value": "tts-v4-turbo", "label": "Chatterbox Turbo (v4 code)"},
			{"value": "tts-v3", "label": "Enhanced TTS v3 (deprecated)"},
		},
		"output_formats": []string{"wav", "mp3"},
		"precisions":     []string{"MULAW", "PCM_16", "PCM_24", "PCM_32"},
		"sample_rates":   []int{8000, 16000, 22050, 32000, 44100, 48000},
	})
}

// Stream handles POST /api/v1/tts/stream.
// The upstream body is relayed chunk by chunk; a provider rejection
// before any audio is sent becomes a normal error response, never a
// truncated stream.
func (h *TTSHandler) Stream(c *gin.Context) {
	var req dto.StreamSynthesizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	payload := buildStreamPayload(&req)

	upstream, err := h.resemble.Stream(c.Request.Context(), payload)
	if err != nil {
		respondProxyError(c, h.logger, err)
		return
	}
	defer upstream.Body.Close()

	contentType := upstream.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/wav"
	}

	c.Header("Content-Type", contentType)
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Header("Content-Disposition", `inline; filename="tts.wav"`)
	c.Status(http.StatusOK)

	flusher, _ := c.Writer.(http.Flusher)
	buf := make([]byte, 64*1024)
	for {
		n, readErr := upstream.Body.Read(buf)
		if n > 0 {
			if _, writeErr := c.Writer.Write(buf[:n]); writeErr != nil {
				// client went away, stop pulling from upstream
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr != nil {
			if readErr != io.EOF {
				h.logger.Warn("Synthesis stream interrupted", slog.Any("error", readErr))
			}
			return
		}
	}
}

func buildStreamPayload(req *dto.StreamSynthesizeRequest) map[string]any {
	payload := map[string]any{
		"voice_uuid": req.VoiceUUID,
		"data":       req.Data,
	}
	if req.ModelName != "" {
		payload["model_name"] = req.ModelName
	}
	if req.OutputFormat != "" {
		payload["output_format"] = req.OutputFormat
	}
	if req.Precision != "" {
		payload["precision"] = req.Precision
	}
	if req.SampleRate > 0 {
		payload["sample_rate"] = req.SampleRate
	}
	if req.VoiceSettingsPresetUUID != "" {
		payload["voice_settings_preset_uuid"] = req.VoiceSettingsPresetUUID
	}
	// provider-specific extras pass through untouched
	for k, v := range req.Extras {
		if _, taken := payload[k]; !taken {
			payload[k] = v
		}
	}
	return payload
}

// ---- voice settings presets ----

// ListPresets handles GET /api/v1/tts/presets
func (h *TTSHandler) ListPresets(c *gin.Context) {
	data, err := h.resemble.ListPresets(c.Request.Context())
	if err != nil {
		respondProxyError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// CreatePreset handles POST /api/v1/tts/presets
func (h *TTSHandler) CreatePreset(c *gin.Context) {
	var req dto.PresetCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	data, err := h.resemble.CreatePreset(c.Request.Context(), map[string]any{
		"name":     req.Name,
		"settings": map[string]any(req.Settings),
	})
	if err != nil {
		respondProxyError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, data)
}

// GetPreset handles GET /api/v1/tts/presets/:uuid
func (h *TTSHandler) GetPreset(c *gin.Context) {
	data, err := h.resemble.GetPreset(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		respondProxyError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// UpdatePreset handles PATCH /api/v1/tts/presets/:uuid
func (h *TTSHandler) UpdatePreset(c *gin.Context) {
	var req dto.PresetUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	payload := map[string]any{}
	if req.Name != "" {
		payload["name"] = req.Name
	}
	if req.Settings != nil {
		payload["settings"] = map[string]any(req.Settings)
	}

	data, err := h.resemble.UpdatePreset(c.Request.Context(), c.Param("uuid"), payload)
	if err != nil {
		respondProxyError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// DeletePreset handles DELETE /api/v1/tts/presets/:uuid
func (h *TTSHandler) DeletePreset(c *gin.Context) {
	data, err := h.resemble.DeletePreset(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		respondProxyError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, data)
}
