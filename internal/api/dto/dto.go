package dto

// RegisterRequest creates an account
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required,max=255"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest obtains a token pair
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// DetectJobRequest submits an async deepfake detection for an upload
type DetectJobRequest struct {
	UploadUUID                string `json:"upload_uuid" binding:"required,uuid"`
	Visualize                 *bool  `json:"visualize"`
	FrameLength               int    `json:"frame_length" binding:"omitempty,min=1,max=4"`
	ModelType                 string `json:"model_type" binding:"omitempty,oneof=image talking_head"`
	Intelligence              *bool  `json:"intelligence"`
	AudioSourceTracingEnabled *bool  `json:"audio_source_tracing_enabled"`
	UseOODDetector            *bool  `json:"use_ood_detector"`
	StartRegion               *int   `json:"start_region"`
	EndRegion                 *int   `json:"end_region"`
}

// VoiceDesignJobRequest submits an async voice design generation
type VoiceDesignJobRequest struct {
	UserPrompt         string `json:"user_prompt" binding:"required,max=2000"`
	IsVoiceDesignTrial *bool  `json:"is_voice_design_trial"`
}

// VoiceCloneCreateJobRequest submits an async custom voice creation
type VoiceCloneCreateJobRequest struct {
	Name        string `json:"name" binding:"required,max=255"`
	VoiceType   string `json:"voice_type" binding:"required"`
	Language    string `json:"language"`
	Description string `json:"description"`
	DatasetURL  string `json:"dataset_url" binding:"omitempty,url"`
	CallbackURI string `json:"callback_uri" binding:"omitempty,url"`
}

// VoiceCloneBuildJobRequest submits an async voice build
type VoiceCloneBuildJobRequest struct {
	VoiceUUID string `json:"voice_uuid" binding:"required"`
	Fill      bool   `json:"fill"`
}

// StreamSynthesizeRequest drives the streamed TTS proxy
type StreamSynthesizeRequest struct {
	VoiceUUID               string   `json:"voice_uuid" binding:"required"`
	Data                    string   `json:"data" binding:"required"`
	ModelName               string   `json:"model_name"`
	OutputFormat            string   `json:"output_format" binding:"omitempty,oneof=wav mp3"`
	Precision               string   `json:"precision" binding:"omitempty,oneof=MULAW PCM_16 PCM_24 PCM_32"`
	SampleRate              int      `json:"sample_rate" binding:"omitempty,oneof=8000 16000 22050 32000 44100 48000"`
	VoiceSettingsPresetUUID string   `json:"voice_settings_preset_uuid"`
	Extras                  JSONBody `json:"extras"`
}

// JSONBody is a pass-through map for provider-specific extras
type JSONBody map[string]any

// VoicesListQuery filters the voices proxy
type VoicesListQuery struct {
	Page     int   `form:"page,default=1" binding:"min=1"`
	PageSize int   `form:"page_size,default=24" binding:"min=1,max=1000"`
	Advanced *bool `form:"advanced"`
}

// VoiceCreateRequest proxies direct voice creation
type VoiceCreateRequest struct {
	Name       string `json:"name" binding:"required,max=255"`
	DatasetURL string `json:"dataset_url" binding:"omitempty,url"`
	VoiceType  string `json:"voice_type"`
	Language   string `json:"language"`
}

// RapidVoiceRequest creates a voice from a design candidate
type RapidVoiceRequest struct {
	VoiceDesignModelUUID string `json:"voice_design_model_uuid" binding:"required"`
	VoiceSampleIndex     *int   `json:"voice_sample_index" binding:"required,min=0"`
	VoiceName            string `json:"voice_name" binding:"required,max=255"`
}

// PresetCreateRequest proxies preset creation
type PresetCreateRequest struct {
	Name     string   `json:"name" binding:"required,max=255"`
	Settings JSONBody `json:"settings" binding:"required"`
}

// PresetUpdateRequest proxies preset updates
type PresetUpdateRequest struct {
	Name     string   `json:"name" binding:"omitempty,max=255"`
	Settings JSONBody `json:"settings"`
}

// JobListQuery pages through the caller's jobs with an opaque cursor
type JobListQuery struct {
	Cursor   string `form:"cursor"`
	Kind     string `form:"kind" binding:"omitempty,oneof=detect voice_design voice_clone_create voice_clone_build"`
	Status   string `form:"status" binding:"omitempty,oneof=queued running succeeded failed"`
	PageSize int    `form:"page_size,default=50" binding:"min=1,max=100"`
}

// PageQuery is the shared pagination query for provider list proxies
type PageQuery struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=25" binding:"min=1,max=100"`
}

// AskQuestionRequest asks a question about a transcript
type AskQuestionRequest struct {
	Question string `json:"question" binding:"required,max=2000"`
}

// JobStatusResponse is the normalized polling shape
type JobStatusResponse struct {
	JobUUID             string         `json:"job_uuid"`
	Kind                string         `json:"kind"`
	Status              string         `json:"status"`
	RemoteCorrelationID string         `json:"remote_correlation_id,omitempty"`
	Result              map[string]any `json:"result,omitempty"`
	Error               string         `json:"error,omitempty"`
	CreatedAt           string         `json:"created_at"`
	UpdatedAt           string         `json:"updated_at"`
}
