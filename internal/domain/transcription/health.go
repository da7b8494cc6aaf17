package transcription

import (
	"context"
	"fmt"

	"github.com/aistack/controlpanel/internal/providers/whisper"
	"go.uber.org/zap"
)

// Health is the transcription backend's self-report.
type Health struct {
	whisper.Health
	// Models lists loadable models; nil when the backend did not say.
	Models *whisper.Models `json:"models,omitempty"`
}

// Health checks the transcription backend. An unreachable backend returns an
// error matching ErrBackendUnavailable; a non-2xx reply one matching
// ErrUpstream.
func (p *Pipeline) Health(ctx context.Context) (Health, error) {
	health, err := p.whisper.Health(ctx)
	if err != nil {
		if kindOf(err) == ErrUpstream {
			err = fmt.Errorf("%w: %w", ErrUpstream, err)
		}
		return Health{}, err
	}

	out := Health{Health: health}
	models, err := p.whisper.Models(ctx)
	if err != nil {
		p.logger.Debug("model listing unavailable", zap.Error(err))
		return out, nil
	}
	out.Models = &models
	return out, nil
}
