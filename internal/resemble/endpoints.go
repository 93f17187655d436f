package resemble

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Stream starts a synthesis stream on the synthesis cluster
func (c *Client) Stream(ctx context.Context, payload map[string]any) (*http.Response, error) {
	return c.CallStream(ctx, c.cfg.SynthBase+"/stream", payload)
}

// ---- Voices ----

// ListVoicesParams are the accepted voice listing filters
type ListVoicesParams struct {
	Page     int
	PageSize int
	Advanced bool
}

// ListVoices proxies GET /api/v2/voices
func (c *Client) ListVoices(ctx context.Context, p ListVoicesParams) (map[string]any, error) {
	params := url.Values{}
	if p.Page > 0 {
		params.Set("page", strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 {
		params.Set("page_size", strconv.Itoa(p.PageSize))
	}
	params.Set("advanced", strconv.FormatBool(p.Advanced))

	return c.CallJSON(ctx, http.MethodGet, c.cfg.AppBase+"/api/v2/voices", nil, params)
}

// CreateVoice proxies POST /api/v2/voices
func (c *Client) CreateVoice(ctx context.Context, payload map[string]any) (map[string]any, error) {
	return c.CallJSON(ctx, http.MethodPost, c.cfg.AppBase+"/api/v2/voices", payload, nil)
}

// GetVoice proxies GET /api/v2/voices/:uuid (training status polling)
func (c *Client) GetVoice(ctx context.Context, voiceUUID string) (map[string]any, error) {
	return c.CallJSON(ctx, http.MethodGet, c.cfg.AppBase+"/api/v2/voices/"+voiceUUID, nil, nil)
}

// BuildVoice proxies POST /api/v2/voices/:uuid/build
func (c *Client) BuildVoice(ctx context.Context, voiceUUID string, fill bool) (map[string]any, error) {
	payload := map[string]any{"fill": fill}
	return c.CallJSON(ctx, http.MethodPost, c.cfg.AppBase+"/api/v2/voices/"+voiceUUID+"/build", payload, nil)
}

// UploadVoiceRecording proxies the multipart recording upload for a
// voice under construction
func (c *Client) UploadVoiceRecording(ctx context.Context, voiceUUID string, fields map[string]string, file *FileField) (map[string]any, error) {
	u := fmt.Sprintf("%s/api/v2/voices/%s/recordings", c.cfg.AppBase, voiceUUID)
	return c.CallMultipart(ctx, u, fields, file)
}

// ---- Voice design ----

// VoiceDesignGenerate proxies POST /api/v2/voice-design
func (c *Client) VoiceDesignGenerate(ctx context.Context, userPrompt string, trial bool) (map[string]any, error) {
	payload := map[string]any{
		"user_prompt":           userPrompt,
		"is_voice_design_trial": trial,
	}
	data, err := c.CallJSON(ctx, http.MethodPost, c.cfg.AppBase+"/api/v2/voice-design", payload, nil)
	if err != nil {
		// some provider deployments only accept the multipart form
		if IsRemoteStatus(err, 400, 400) || IsRemoteStatus(err, 404, 404) ||
			IsRemoteStatus(err, 415, 415) || IsRemoteStatus(err, 422, 422) {
			data, err = c.CallMultipart(ctx, c.cfg.AppBase+"/api/v2/voice-design",
				map[string]string{"user_prompt": userPrompt}, nil)
		}
		if err != nil {
			return nil, err
		}
	}
	return normalizeVoiceDesignResponse(data), nil
}

// CreateRapidVoice proxies the rapid-voice creation from a design candidate
func (c *Client) CreateRapidVoice(ctx context.Context, modelUUID string, sampleIndex int, voiceName string) (map[string]any, error) {
	u := fmt.Sprintf("%s/api/v2/voice-design/%s/%d/create_rapid_voice", c.cfg.AppBase, modelUUID, sampleIndex)
	return c.CallJSON(ctx, http.MethodPost, u, map[string]any{"voice_name": voiceName}, nil)
}

// normalizeVoiceDesignResponse collapses the two voice_candidates
// shapes the provider returns (flat list vs. model uuid + samples)
// into the second one.
func normalizeVoiceDesignResponse(raw map[string]any) map[string]any {
	vc, ok := raw["voice_candidates"].([]any)
	if !ok {
		return raw
	}

	var modelUUID string
	samples := make([]any, 0, len(vc))
	for i, item := range vc {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if modelUUID == "" {
			modelUUID, _ = m["uuid"].(string)
		}
		idx := i
		if v, ok := m["voice_sample_index"].(float64); ok {
			idx = int(v)
		}
		samples = append(samples, map[string]any{
			"audio_url":    m["audio_url"],
			"sample_index": idx,
		})
	}

	return map[string]any{
		"voice_candidates": map[string]any{
			"voice_design_model_uuid": modelUUID,
			"samples":                 samples,
		},
	}
}

// ---- Voice settings presets ----

// ListPresets proxies GET /api/v2/voice_settings_presets
func (c *Client) ListPresets(ctx context.Context) (map[string]any, error) {
	return c.CallJSON(ctx, http.MethodGet, c.cfg.AppBase+"/api/v2/voice_settings_presets", nil, nil)
}

// CreatePreset proxies POST /api/v2/voice_settings_presets
func (c *Client) CreatePreset(ctx context.Context, payload map[string]any) (map[string]any, error) {
	return c.CallJSON(ctx, http.MethodPost, c.cfg.AppBase+"/api/v2/voice_settings_presets", payload, nil)
}

// GetPreset proxies GET /api/v2/voice_settings_presets/:uuid
func (c *Client) GetPreset(ctx context.Context, uuid string) (map[string]any, error) {
	return c.CallJSON(ctx, http.MethodGet, c.cfg.AppBase+"/api/v2/voice_settings_presets/"+uuid, nil, nil)
}

// UpdatePreset proxies PATCH /api/v2/voice_settings_presets/:uuid
func (c *Client) UpdatePreset(ctx context.Context, uuid string, payload map[string]any) (map[string]any, error) {
	return c.CallJSON(ctx, http.MethodPatch, c.cfg.AppBase+"/api/v2/voice_settings_presets/"+uuid, payload, nil)
}

// DeletePreset proxies DELETE /api/v2/voice_settings_presets/:uuid
func (c *Client) DeletePreset(ctx context.Context, uuid string) (map[string]any, error) {
	return c.CallJSON(ctx, http.MethodDelete, c.cfg.AppBase+"/api/v2/voice_settings_presets/"+uuid, nil, nil)
}

// ---- Deepfake detection ----

// DetectCreate submits a detection request for a public media URL
func (c *Client) DetectCreate(ctx context.Context, payload map[string]any) (map[string]any, error) {
	return c.CallJSON(ctx, http.MethodPost, c.cfg.AppBase+"/api/v2/detect", payload, nil)
}

// DetectGet polls a detection by remote uuid
func (c *Client) DetectGet(ctx context.Context, uuid string) (map[string]any, error) {
	return c.CallJSON(ctx, http.MethodGet, c.cfg.AppBase+"/api/v2/detect/"+uuid, nil, nil)
}

// DetectList proxies the provider's detection listing
func (c *Client) DetectList(ctx context.Context, page, pageSize int) (map[string]any, error) {
	params := url.Values{}
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		params.Set("page_size", strconv.Itoa(pageSize))
	}
	return c.CallJSON(ctx, http.MethodGet, c.cfg.AppBase+"/api/v2/detect", nil, params)
}

// ---- Speech to text ----

// ListTranscripts proxies GET /api/v2/speech-to-text
func (c *Client) ListTranscripts(ctx context.Context, page, perPage int) (map[string]any, error) {
	params := url.Values{}
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}
	if perPage > 0 {
		params.Set("per_page", strconv.Itoa(perPage))
	}
	return c.CallJSON(ctx, http.MethodGet, c.cfg.AppBase+"/api/v2/speech-to-text", nil, params)
}

// CreateTranscript proxies the multipart transcription submission
func (c *Client) CreateTranscript(ctx context.Context, fields map[string]string, file *FileField) (map[string]any, error) {
	return c.CallMultipart(ctx, c.cfg.AppBase+"/api/v2/speech-to-text", fields, file)
}

// GetTranscript proxies GET /api/v2/speech-to-text/:uuid
func (c *Client) GetTranscript(ctx context.Context, uuid string) (map[string]any, error) {
	return c.CallJSON(ctx, http.MethodGet, c.cfg.AppBase+"/api/v2/speech-to-text/"+uuid, nil, nil)
}

// AskTranscript proxies POST /api/v2/speech-to-text/:uuid/ask
func (c *Client) AskTranscript(ctx context.Context, uuid string, payload map[string]any) (map[string]any, error) {
	return c.CallJSON(ctx, http.MethodPost, c.cfg.AppBase+"/api/v2/speech-to-text/"+uuid+"/ask", payload, nil)
}

// ListQuestions proxies GET /api/v2/speech-to-text/:uuid/questions
func (c *Client) ListQuestions(ctx context.Context, uuid string, page, perPage int) (map[string]any, error) {
	params := url.Values{}
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}
	if perPage > 0 {
		params.Set("per_page", strconv.Itoa(perPage))
	}
	return c.CallJSON(ctx, http.MethodGet, c.cfg.AppBase+"/api/v2/speech-to-text/"+uuid+"/questions", nil, params)
}

// GetQuestion proxies GET /api/v2/speech-to-text/:uuid/questions/:question_uuid
func (c *Client) GetQuestion(ctx context.Context, uuid, questionUUID string) (map[string]any, error) {
	u := fmt.Sprintf("%s/api/v2/speech-to-text/%s/questions/%s", c.cfg.AppBase, uuid, questionUUID)
	return c.CallJSON(ctx, http.MethodGet, u, nil, nil)
}
