package pipeline

import (
	"context"

	"meeting-agent-be/pkg/artifact"
	"meeting-agent-be/pkg/llm"
	"meeting-agent-be/pkg/reference"
	"meeting-agent-be/pkg/store"
	"meeting-agent-be/pkg/voice/tts"
)

// Voice is the upstream voice session seen from a pipeline.
type Voice interface {
	TriggerResponse(sessionID string) error
	InjectContext(sessionID, text string) error
}

// Notifier delivers an outbound event to one client session.
type Notifier interface {
	SendTo(sessionID, eventType string, payload interface{})
}

type SnapshotSource interface {
	LatestSnapshot(sessionID string) (store.Snapshot, bool)
}

type VisionAnalyzer interface {
	Analyze(ctx context.Context, image []byte, mimeType, question string) (string, error)
}

type ContextSource interface {
	Summary(ctx context.Context) (string, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*tts.Audio, error)
}

type ArtifactSaver interface {
	Save(ctx context.Context, a artifact.Artifact) (*artifact.Descriptor, error)
}

type ReferenceReader interface {
	Snapshot(ctx context.Context) reference.Snapshot
}

type HistoryStore interface {
	Get(sessionID string) []llm.Message
	Append(sessionID string, msgs ...llm.Message)
}
