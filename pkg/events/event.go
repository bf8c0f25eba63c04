package events

import (
	"context"
	"time"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "SESSION_STARTED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Domain event codes published on the message bus.
const (
	TypeSessionStarted = "SESSION_STARTED"
	TypeSessionEnded   = "SESSION_ENDED"
	TypeArtifactSaved  = "ARTIFACT_SAVED"
	TypeAnnouncement   = "ANNOUNCEMENT"
)

// In-process topics carried over the watermill channel.
const (
	TopicTranscriptFinal  = "transcripts.final"
	TopicPipelineDispatch = "pipeline.dispatch"
)

func New(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{Type: eventType, Data: data, OccurredAt: time.Now()}
}

// Publisher is satisfied by the NATS publisher. Callers treat a nil Publisher as disabled.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
