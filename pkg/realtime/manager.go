package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"meeting-agent-be/internal/dto"
	"meeting-agent-be/internal/pkg/logger"
	"meeting-agent-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gorilla/websocket"
)

const module = "REALTIME"

var (
	ErrNotConfigured = errors.New("realtime backend is not configured")
	ErrNoSession     = errors.New("no open realtime session")
)

type Config struct {
	URL                 string
	APIKey              string
	Voice               string
	Instructions        string
	TranscriptionModel  string
	TranscriptionPrompt string
	VADThreshold        float64
	PrefixPaddingMS     int
	SilenceDurationMS   int
	SettleDelay         time.Duration
	SampleRate          int
	DialTimeout         time.Duration
	HistoryLimit        int
}

func (c Config) Configured() bool {
	return c.URL != "" && c.APIKey != ""
}

// Conn is the subset of *websocket.Conn the manager uses.
type Conn interface {
	WriteJSON(v interface{}) error
	ReadMessage() (messageType int, p []byte, err error)
	SetWriteDeadline(t time.Time) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, urlStr string, header http.Header) (Conn, error)
}

type DialerFunc func(ctx context.Context, urlStr string, header http.Header) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, urlStr string, header http.Header) (Conn, error) {
	return f(ctx, urlStr, header)
}

// WebsocketDialer dials the backend with gorilla/websocket.
type WebsocketDialer struct {
	Dialer *websocket.Dialer
}

func (d WebsocketDialer) Dial(ctx context.Context, urlStr string, header http.Header) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, urlStr, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", redact(urlStr), err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", redact(urlStr), err)
	}
	return conn, nil
}

// EventSink delivers an event to the client that owns the session.
type EventSink interface {
	SendTo(sessionID, eventType string, payload interface{})
}

// LossObserver is an optional EventSink extension told when an upstream
// connection drops on its own.
type LossObserver interface {
	UpstreamLost(sessionID string)
}

type SessionOptions struct {
	DisplayName string
	ContextHint string
}

// TranscriptEvent is one transcript fragment or finished utterance.
type TranscriptEvent struct {
	SessionID string    `json:"session_id"`
	Text      string    `json:"text"`
	Final     bool      `json:"final"`
	Role      string    `json:"role"`
	Timestamp time.Time `json:"timestamp"`
}

// Manager owns one upstream connection per session.
type Manager struct {
	cfg       Config
	dialer    Dialer
	sink      EventSink
	publisher message.Publisher
	logger    logger.ILogger

	mu       sync.Mutex
	sessions map[string]*upstream
}

func NewManager(cfg Config, dialer Dialer, sink EventSink, publisher message.Publisher, log logger.ILogger) *Manager {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 24000
	}
	return &Manager{
		cfg:       cfg,
		dialer:    dialer,
		sink:      sink,
		publisher: publisher,
		logger:    log,
		sessions:  make(map[string]*upstream),
	}
}

type upstream struct {
	id      string
	ready   chan struct{}
	err     error
	arbiter *Arbiter

	mu     sync.Mutex
	conn   Conn
	closed bool

	responding atomic.Bool

	historyMu sync.Mutex
	history   []TranscriptEvent
}

func (u *upstream) write(v interface{}) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.conn == nil || u.closed {
		return ErrNoSession
	}
	_ = u.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return u.conn.WriteJSON(v)
}

func (u *upstream) isOpen() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.conn != nil && !u.closed
}

// close reports whether this call did the closing.
func (u *upstream) close() bool {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return false
	}
	u.closed = true
	conn := u.conn
	u.mu.Unlock()

	u.arbiter.Close()
	if conn != nil {
		_ = conn.Close()
	}
	return true
}

func (u *upstream) appendHistory(ev TranscriptEvent, limit int) {
	u.historyMu.Lock()
	u.history = append(u.history, ev)
	if over := len(u.history) - limit; over > 0 {
		u.history = append([]TranscriptEvent(nil), u.history[over:]...)
	}
	u.historyMu.Unlock()
}

// CreateSession opens the upstream connection for a session. Calls for a
// session that already exists, or is still connecting, share its result.
func (m *Manager) CreateSession(ctx context.Context, sessionID string, opts SessionOptions) error {
	if !m.cfg.Configured() {
		return ErrNotConfigured
	}

	m.mu.Lock()
	if existing, ok := m.sessions[sessionID]; ok {
		m.mu.Unlock()
		select {
		case <-existing.ready:
			return existing.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	u := &upstream{id: sessionID, ready: make(chan struct{})}
	u.arbiter = NewArbiter(m.cfg.SettleDelay, func(speaking bool) {
		m.sink.SendTo(sessionID, dto.EventSpeakingState, dto.SpeakingStatePayload{Speaking: speaking})
	})
	m.sessions[sessionID] = u
	m.mu.Unlock()

	err := m.open(ctx, u, opts)
	if err != nil {
		m.remove(u)
		u.close()
	}
	u.err = err
	close(u.ready)
	return err
}

func (m *Manager) open(ctx context.Context, u *upstream, opts SessionOptions) error {
	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.DialTimeout)
	defer cancel()

	conn, err := m.dialer.Dial(dialCtx, m.cfg.URL, m.authHeader())
	if err != nil {
		return fmt.Errorf("open realtime session: %w", err)
	}

	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		_ = conn.Close()
		return fmt.Errorf("open realtime session: %w", ErrNoSession)
	}
	u.conn = conn
	u.mu.Unlock()

	if err := u.write(m.sessionUpdate(opts)); err != nil {
		return fmt.Errorf("configure realtime session: %w", err)
	}

	go m.readLoop(u)

	m.logger.Info(module, "Upstream session opened", map[string]interface{}{"session_id": u.id})
	return nil
}

func (m *Manager) authHeader() http.Header {
	h := http.Header{}
	if parsed, err := url.Parse(m.cfg.URL); err == nil && strings.HasSuffix(parsed.Hostname(), ".openai.azure.com") {
		h.Set("api-key", m.cfg.APIKey)
		return h
	}
	h.Set("Authorization", "Bearer "+m.cfg.APIKey)
	h.Set("OpenAI-Beta", "realtime=v1")
	return h
}

func (m *Manager) sessionUpdate(opts SessionOptions) sessionUpdate {
	instructions := m.cfg.Instructions
	if opts.DisplayName != "" {
		instructions += "\nYou are speaking with " + opts.DisplayName + "."
	}
	if opts.ContextHint != "" {
		instructions += "\nMeeting context: " + opts.ContextHint
	}
	return sessionUpdate{
		Type: typeSessionUpdate,
		Session: sessionConfig{
			Modalities:        []string{"text", "audio"},
			Instructions:      instructions,
			Voice:             m.cfg.Voice,
			InputAudioFormat:  "pcm16",
			OutputAudioFormat: "pcm16",
			InputAudioTranscription: transcriptionConfig{
				Model:  m.cfg.TranscriptionModel,
				Prompt: m.cfg.TranscriptionPrompt,
			},
			TurnDetection: turnDetection{
				Type:              "server_vad",
				Threshold:         m.cfg.VADThreshold,
				PrefixPaddingMS:   m.cfg.PrefixPaddingMS,
				SilenceDurationMS: m.cfg.SilenceDurationMS,
				CreateResponse:    false,
			},
		},
	}
}

func (m *Manager) lookup(sessionID string) *upstream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[sessionID]
}

func (m *Manager) remove(u *upstream) {
	m.mu.Lock()
	if m.sessions[u.id] == u {
		delete(m.sessions, u.id)
	}
	m.mu.Unlock()
}

// SendAudio forwards one base64 PCM16 frame. Frames are dropped while the
// session is speaking or not connected; the return value says whether the
// frame went upstream.
func (m *Manager) SendAudio(sessionID, frame string) bool {
	u := m.lookup(sessionID)
	if u == nil || u.arbiter.Speaking() {
		return false
	}
	if err := u.write(audioAppend{Type: typeInputAudioAppend, Audio: frame}); err != nil {
		return false
	}
	return true
}

// TriggerResponse asks the backend to answer now, in text and audio.
func (m *Manager) TriggerResponse(sessionID string) error {
	u := m.lookup(sessionID)
	if u == nil || !u.isOpen() {
		m.logger.Warn(module, "Trigger ignored, no open upstream", map[string]interface{}{"session_id": sessionID})
		return ErrNoSession
	}
	err := u.write(responseCreate{
		Type: typeResponseCreate,
		Response: responseOptions{
			Modalities: []string{"text", "audio"},
			Voice:      m.cfg.Voice,
		},
	})
	if err != nil {
		m.logger.Warn(module, "Trigger failed", map[string]interface{}{"session_id": sessionID, "error": err.Error()})
		return fmt.Errorf("trigger response: %w", err)
	}
	return nil
}

// InjectContext adds a system message to the upstream conversation without
// asking for a reply.
func (m *Manager) InjectContext(sessionID, text string) error {
	u := m.lookup(sessionID)
	if u == nil {
		return ErrNoSession
	}
	err := u.write(itemCreate{
		Type: typeConversationItemAdd,
		Item: conversationItem{
			Type:    "message",
			Role:    "system",
			Content: []contentPart{{Type: "input_text", Text: text}},
		},
	})
	if err != nil {
		return fmt.Errorf("inject context: %w", err)
	}
	return nil
}

// EndSession closes the upstream connection. Safe on unknown sessions.
func (m *Manager) EndSession(sessionID string) {
	u := m.lookup(sessionID)
	if u == nil {
		return
	}
	m.remove(u)
	if u.close() {
		m.logger.Info(module, "Upstream session closed", map[string]interface{}{"session_id": sessionID})
	}
}

// Shutdown closes every upstream connection.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	all := make([]*upstream, 0, len(m.sessions))
	for _, u := range m.sessions {
		all = append(all, u)
	}
	m.sessions = make(map[string]*upstream)
	m.mu.Unlock()

	for _, u := range all {
		u.close()
	}
}

func (m *Manager) Connected(sessionID string) bool {
	u := m.lookup(sessionID)
	return u != nil && u.isOpen()
}

func (m *Manager) Speaking(sessionID string) bool {
	u := m.lookup(sessionID)
	return u != nil && u.arbiter.Speaking()
}

// History returns a copy of the recent finished user utterances.
func (m *Manager) History(sessionID string) []TranscriptEvent {
	u := m.lookup(sessionID)
	if u == nil {
		return nil
	}
	u.historyMu.Lock()
	defer u.historyMu.Unlock()
	return append([]TranscriptEvent(nil), u.history...)
}

func (m *Manager) readLoop(u *upstream) {
	for {
		_, data, err := u.conn.ReadMessage()
		if err != nil {
			if u.close() {
				m.remove(u)
				m.logger.Error(module, "Upstream connection lost", map[string]interface{}{"session_id": u.id, "error": err.Error()})
				m.sink.SendTo(u.id, dto.EventError, dto.ErrorPayload{Message: "Voice connection lost", Source: dto.SourceRealtime})
				if obs, ok := m.sink.(LossObserver); ok {
					obs.UpstreamLost(u.id)
				}
			}
			return
		}
		m.handleEvent(u, data)
	}
}

func (m *Manager) handleEvent(u *upstream, data []byte) {
	var ev serverEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		m.logger.Warn(module, "Undecodable upstream event", map[string]interface{}{"session_id": u.id, "error": err.Error()})
		return
	}

	switch ev.Type {
	case evSessionCreated, evSessionUpdated:
		m.logger.Info(module, "Session acknowledged", map[string]interface{}{"session_id": u.id, "type": ev.Type})

	case evSpeechStarted, evSpeechStopped:
		m.logger.Debug(module, "VAD", map[string]interface{}{"session_id": u.id, "type": ev.Type})

	case evTranscriptionCompleted:
		m.onUserTranscript(u, strings.TrimSpace(ev.Transcript))

	case evAudioDelta:
		if u.responding.CompareAndSwap(false, true) {
			u.arbiter.Begin()
		}
		m.sink.SendTo(u.id, dto.EventAudio, dto.AudioPayload{
			Audio:      ev.Delta,
			Source:     dto.SourcePrimary,
			Format:     "pcm16",
			SampleRate: m.cfg.SampleRate,
		})

	case evAudioTranscriptDelta, evTextDelta:
		m.sink.SendTo(u.id, dto.EventTranscript, dto.TranscriptPayload{Text: ev.Delta, Final: false, Role: dto.RoleAssistant})

	case evAudioTranscriptDone, evTextDone:
		text := ev.Transcript
		if ev.Type == evTextDone {
			text = ev.Text
		}
		m.sink.SendTo(u.id, dto.EventTranscript, dto.TranscriptPayload{Text: text, Final: true, Role: dto.RoleAssistant})
		m.sink.SendTo(u.id, dto.EventPMResponse, dto.ResponsePayload{Text: text, Source: dto.SourcePM})

	case evAudioDone:
		m.logger.Debug(module, "Audio stream done", map[string]interface{}{"session_id": u.id})

	case evResponseDone:
		u.responding.Store(false)
		u.arbiter.Settle()

	case evError:
		m.logger.Error(module, "Upstream error event", map[string]interface{}{"session_id": u.id, "error": ev.Error.Error()})
		u.responding.Store(false)
		u.arbiter.ForceStop()

	default:
		m.logger.Debug(module, "Unhandled upstream event", map[string]interface{}{"session_id": u.id, "type": ev.Type})
	}
}

func (m *Manager) onUserTranscript(u *upstream, text string) {
	if text == "" {
		return
	}
	ev := TranscriptEvent{SessionID: u.id, Text: text, Final: true, Role: dto.RoleUser, Timestamp: time.Now()}

	m.sink.SendTo(u.id, dto.EventTranscript, dto.TranscriptPayload{Text: text, Final: true, Role: dto.RoleUser})
	u.appendHistory(ev, m.cfg.HistoryLimit)

	if m.publisher == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("session_id", u.id)
	if err := m.publisher.Publish(events.TopicTranscriptFinal, msg); err != nil {
		m.logger.Error(module, "Failed to publish transcript", map[string]interface{}{"session_id": u.id, "error": err.Error()})
	}
}

func redact(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	parsed.RawQuery = ""
	return parsed.String()
}
