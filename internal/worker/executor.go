package worker

import (
	"context"
	"fmt"
	"log/slog"

	apidomain "github.com/HamzaAhmedWajeeh/stc-voice-api/internal/api/domain"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/worker/domain"
)

// executeJob dispatches one job to the matching provider call
func (w *Worker) executeJob(ctx context.Context, job *domain.Job, payload map[string]any) (map[string]any, error) {
	w.logger.Debug("Executing job",
		slog.String("job_uuid", job.UUID),
		slog.String("kind", job.Kind),
	)

	switch job.Kind {
	case apidomain.JobKindDetect:
		return w.gateway.DetectCreate(ctx, payload)

	case apidomain.JobKindVoiceDesign:
		prompt, _ := payload["user_prompt"].(string)
		if prompt == "" {
			return nil, fmt.Errorf("%w: user_prompt missing", domain.ErrInvalidPayload)
		}
		trial := true
		if v, ok := payload["is_voice_design_trial"].(bool); ok {
			trial = v
		}
		return w.gateway.VoiceDesignGenerate(ctx, prompt, trial)

	case apidomain.JobKindVoiceCloneCreate:
		return w.gateway.CreateVoice(ctx, payload)

	case apidomain.JobKindVoiceCloneBuild:
		voiceUUID, _ := payload["voice_uuid"].(string)
		if voiceUUID == "" {
			return nil, fmt.Errorf("%w: voice_uuid missing", domain.ErrInvalidPayload)
		}
		fill, _ := payload["fill"].(bool)
		return w.gateway.BuildVoice(ctx, voiceUUID, fill)

	default:
		return nil, fmt.Errorf("%w: unknown job kind %q", domain.ErrInvalidPayload, job.Kind)
	}
}
