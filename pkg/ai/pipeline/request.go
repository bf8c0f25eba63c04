package pipeline

import (
	"context"
	"time"
)

// Kind names one of the mutually exclusive response pipelines.
type Kind string

const (
	KindPrimary    Kind = "primary"
	KindContextual Kind = "contextual"
	KindVision     Kind = "vision"
	KindAssistant  Kind = "assistant"
	KindDocument   Kind = "document"
)

// Request is one routed utterance, carried on the dispatch topic.
type Request struct {
	SessionID   string    `json:"session_id"`
	Kind        Kind      `json:"kind"`
	Utterance   string    `json:"utterance"`          // full transcript
	Text        string    `json:"text"`               // wake phrase removed
	Source      string    `json:"source,omitempty"`   // calendar | messaging
	Screen      bool      `json:"screen,omitempty"`   // assistant asked about the screen
	Question    string    `json:"question,omitempty"` // vision question
	RequestedAt time.Time `json:"requested_at"`
}

// Coordinator runs one pipeline to completion. Failures are reported to
// the session by the coordinator itself; the returned error is for logging.
type Coordinator interface {
	Run(ctx context.Context, req Request) error
}
