package pipeline

import (
	"context"

	"meeting-agent-be/internal/dto"
	"meeting-agent-be/internal/pkg/logger"
)

// Primary lets the upstream voice engine answer from its own conversation.
type Primary struct {
	voice    Voice
	notifier Notifier
	logger   logger.ILogger
}

func NewPrimary(voice Voice, notifier Notifier, log logger.ILogger) *Primary {
	return &Primary{voice: voice, notifier: notifier, logger: log}
}

func (p *Primary) Run(ctx context.Context, req Request) error {
	if err := p.voice.TriggerResponse(req.SessionID); err != nil {
		p.logger.Warn(module, "Primary trigger failed", map[string]interface{}{"session_id": req.SessionID, "error": err.Error()})
		p.notifier.SendTo(req.SessionID, dto.EventError, dto.ErrorPayload{Message: "The voice agent is not connected", Source: dto.SourceRealtime})
		return err
	}
	return nil
}
