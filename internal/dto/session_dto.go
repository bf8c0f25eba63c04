package dto

import "time"

// Client -> server message types.
const (
	MessageStartSession          = "start_session"
	MessageAudio                 = "audio"
	MessageScreenshot            = "screenshot"
	MessageVisionFrame           = "vision_frame"
	MessageStopSession           = "stop_session"
	MessageTriggerResponse       = "trigger_response"
	MessageRequestVisionAnalysis = "request_vision_analysis"
)

// ClientMessage is the single JSON frame shape accepted on the session socket.
type ClientMessage struct {
	Type        string `json:"type" validate:"required,oneof=start_session audio screenshot vision_frame stop_session trigger_response request_vision_analysis"`
	Audio       string `json:"audio" validate:"required_if=Type audio"`
	Image       string `json:"image" validate:"required_if=Type screenshot,required_if=Type vision_frame"`
	MimeType    string `json:"mimeType" validate:"omitempty,oneof=image/png image/jpeg image/webp"`
	Question    string `json:"question" validate:"required_if=Type request_vision_analysis,max=1000"`
	DisplayName string `json:"displayName" validate:"max=120"`
	ContextHint string `json:"contextHint" validate:"max=2000"`
}

// Server -> client event types.
const (
	EventConnected       = "connected"
	EventSessionStarted  = "session_started"
	EventSessionEnded    = "session_ended"
	EventError           = "error"
	EventAudio           = "audio"
	EventTranscript      = "transcript"
	EventSpeakingState   = "speaking_state"
	EventThinking        = "thinking"
	EventClaudeResponse  = "claude_response"
	EventPMResponse      = "pm_response"
	EventFileSaved       = "file_saved"
	EventScreenshotSaved = "screenshot_saved"
)

// Source tags carried on audio, response and error events.
const (
	SourcePrimary     = "primary"
	SourceSynthesized = "synthesized"
	SourceClaude      = "claude"
	SourcePM          = "pm"
	SourceConfig      = "config"
	SourceRealtime    = "realtime"
	SourceDocument    = "document"
	SourceVision      = "vision"
	SourceClient      = "client"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Envelope struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type ConnectedPayload struct {
	SessionID string `json:"sessionId"`
}

type SessionStatusPayload struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Source  string `json:"source"`
}

type AudioPayload struct {
	Audio      string `json:"audio"`
	Source     string `json:"source"`
	Format     string `json:"format"`
	SampleRate int    `json:"sampleRate"`
}

type TranscriptPayload struct {
	Text  string `json:"text"`
	Final bool   `json:"final"`
	Role  string `json:"role"`
}

type SpeakingStatePayload struct {
	Speaking bool `json:"speaking"`
}

type ThinkingPayload struct {
	Status string `json:"status"`
}

type ResponsePayload struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

type FileSavedPayload struct {
	ID           string `json:"id"`
	Filename     string `json:"filename"`
	URL          string `json:"url"`
	DocumentType string `json:"documentType"`
	Title        string `json:"title,omitempty"`
	Content      string `json:"content,omitempty"`
}

type ScreenshotSavedPayload struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
}
