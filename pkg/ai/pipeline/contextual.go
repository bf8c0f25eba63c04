package pipeline

import (
	"context"
	"fmt"
	"time"

	"meeting-agent-be/internal/pkg/logger"
)

// Contextual fetches calendar or messaging data, injects it into the voice
// conversation and then asks for a reply.
type Contextual struct {
	voice    Voice
	notifier Notifier
	sources  map[string]ContextSource
	timeout  time.Duration
	logger   logger.ILogger
}

func NewContextual(voice Voice, notifier Notifier, sources map[string]ContextSource, timeout time.Duration, log logger.ILogger) *Contextual {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Contextual{voice: voice, notifier: notifier, sources: sources, timeout: timeout, logger: log}
}

func (c *Contextual) Run(ctx context.Context, req Request) error {
	thinking(c.notifier, req.SessionID, fmt.Sprintf("Checking your %s...", req.Source))

	summary, err := c.fetch(ctx, req.Source)
	if err != nil {
		c.logger.Warn(module, "Context fetch failed", map[string]interface{}{
			"session_id": req.SessionID,
			"source":     req.Source,
			"error":      err.Error(),
		})
		return c.apologize(req)
	}

	directive := fmt.Sprintf("Live %s data for the user's question %q:\n%s\nAnswer the question briefly using only this data.", req.Source, req.Text, summary)
	if err := c.voice.InjectContext(req.SessionID, directive); err != nil {
		c.logger.Warn(module, "Context injection failed", map[string]interface{}{"session_id": req.SessionID, "error": err.Error()})
		return err
	}
	return c.voice.TriggerResponse(req.SessionID)
}

func (c *Contextual) fetch(ctx context.Context, source string) (string, error) {
	src, ok := c.sources[source]
	if !ok || src == nil {
		return "", fmt.Errorf("no %q source configured", source)
	}
	fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return src.Summary(fetchCtx)
}

func (c *Contextual) apologize(req Request) error {
	directive := fmt.Sprintf("Tell the user, in one short sentence: \"I could not access your %s right now.\" Do not guess at its contents.", req.Source)
	if err := c.voice.InjectContext(req.SessionID, directive); err != nil {
		return err
	}
	return c.voice.TriggerResponse(req.SessionID)
}
