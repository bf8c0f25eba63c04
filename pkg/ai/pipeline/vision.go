package pipeline

import (
	"context"
	"fmt"

	"meeting-agent-be/internal/pkg/logger"
)

// Vision answers questions about the most recent shared screen.
type Vision struct {
	voice     Voice
	notifier  Notifier
	snapshots SnapshotSource
	analyzer  VisionAnalyzer
	fallback  Coordinator
	logger    logger.ILogger
}

func NewVision(voice Voice, notifier Notifier, snapshots SnapshotSource, analyzer VisionAnalyzer, fallback Coordinator, log logger.ILogger) *Vision {
	return &Vision{voice: voice, notifier: notifier, snapshots: snapshots, analyzer: analyzer, fallback: fallback, logger: log}
}

func (v *Vision) Run(ctx context.Context, req Request) error {
	snap, ok := v.snapshots.LatestSnapshot(req.SessionID)
	if !ok {
		v.logger.Info(module, "No screen captured, answering without it", map[string]interface{}{"session_id": req.SessionID})
		return v.fallback.Run(ctx, req)
	}

	question := req.Question
	if question == "" {
		question = req.Text
	}

	thinking(v.notifier, req.SessionID, "Looking at your screen...")
	analysis, err := v.analyzer.Analyze(ctx, snap.Image, snap.MimeType, question)
	if err != nil {
		v.logger.Warn(module, "Screen analysis failed", map[string]interface{}{"session_id": req.SessionID, "error": err.Error()})
		return v.voice.TriggerResponse(req.SessionID)
	}

	directive := fmt.Sprintf("The user is sharing their screen. A vision model describes it as follows:\n%s\nUse this to answer %q.", analysis, question)
	if err := v.voice.InjectContext(req.SessionID, directive); err != nil {
		return err
	}
	return v.voice.TriggerResponse(req.SessionID)
}
