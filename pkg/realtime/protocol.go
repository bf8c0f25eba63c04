package realtime

import "encoding/json"

// Outbound message types.
const (
	typeSessionUpdate       = "session.update"
	typeInputAudioAppend    = "input_audio_buffer.append"
	typeConversationItemAdd = "conversation.item.create"
	typeResponseCreate      = "response.create"
)

// Inbound event types.
const (
	evSessionCreated         = "session.created"
	evSessionUpdated         = "session.updated"
	evSpeechStarted          = "input_audio_buffer.speech_started"
	evSpeechStopped          = "input_audio_buffer.speech_stopped"
	evTranscriptionCompleted = "conversation.item.input_audio_transcription.completed"
	evAudioDelta             = "response.audio.delta"
	evAudioDone              = "response.audio.done"
	evAudioTranscriptDelta   = "response.audio_transcript.delta"
	evAudioTranscriptDone    = "response.audio_transcript.done"
	evTextDelta              = "response.text.delta"
	evTextDone               = "response.text.done"
	evResponseDone           = "response.done"
	evError                  = "error"
)

type turnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMS   int     `json:"prefix_padding_ms"`
	SilenceDurationMS int     `json:"silence_duration_ms"`
	CreateResponse    bool    `json:"create_response"`
}

type transcriptionConfig struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt,omitempty"`
}

type sessionConfig struct {
	Modalities              []string            `json:"modalities"`
	Instructions            string              `json:"instructions"`
	Voice                   string              `json:"voice"`
	InputAudioFormat        string              `json:"input_audio_format"`
	OutputAudioFormat       string              `json:"output_audio_format"`
	InputAudioTranscription transcriptionConfig `json:"input_audio_transcription"`
	TurnDetection           turnDetection       `json:"turn_detection"`
}

type sessionUpdate struct {
	Type    string        `json:"type"`
	Session sessionConfig `json:"session"`
}

type audioAppend struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type conversationItem struct {
	Type    string        `json:"type"`
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type itemCreate struct {
	Type string           `json:"type"`
	Item conversationItem `json:"item"`
}

type responseOptions struct {
	Modalities []string `json:"modalities"`
	Voice      string   `json:"voice,omitempty"`
}

type responseCreate struct {
	Type     string          `json:"type"`
	Response responseOptions `json:"response"`
}

// serverEvent is the union of the inbound fields this bridge reads.
type serverEvent struct {
	Type       string          `json:"type"`
	EventID    string          `json:"event_id"`
	ResponseID string          `json:"response_id"`
	Delta      string          `json:"delta"`
	Transcript string          `json:"transcript"`
	Text       string          `json:"text"`
	Error      *serverError    `json:"error"`
	Session    json.RawMessage `json:"session"`
}

type serverError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Param   string `json:"param"`
}

func (e *serverError) Error() string {
	if e == nil {
		return "unknown upstream error"
	}
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}
