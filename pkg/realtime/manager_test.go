package realtime_test

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"testing"
	"time"

	"meeting-agent-be/internal/dto"
	"meeting-agent-be/internal/pkg/logger"
	"meeting-agent-be/pkg/events"
	"meeting-agent-be/pkg/realtime"
	"meeting-agent-be/pkg/realtime/realtimetest"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	sessionID string
	eventType string
	payload   interface{}
}

type recordingSink struct {
	mu     sync.Mutex
	events []sent
}

func (s *recordingSink) SendTo(sessionID, eventType string, payload interface{}) {
	s.mu.Lock()
	s.events = append(s.events, sent{sessionID, eventType, payload})
	s.mu.Unlock()
}

func (s *recordingSink) ofType(eventType string) []sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sent
	for _, e := range s.events {
		if e.eventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (s *recordingSink) all() []sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sent(nil), s.events...)
}

// observingSink also records upstream losses.
type observingSink struct {
	recordingSink
	lostMu sync.Mutex
	lost   []string
}

func (s *observingSink) UpstreamLost(sessionID string) {
	s.lostMu.Lock()
	s.lost = append(s.lost, sessionID)
	s.lostMu.Unlock()
}

func (s *observingSink) lostSessions() []string {
	s.lostMu.Lock()
	defer s.lostMu.Unlock()
	return append([]string(nil), s.lost...)
}

func testConfig() realtime.Config {
	return realtime.Config{
		URL:                "wss://realtime.example.test/v1/realtime?model=test",
		APIKey:             "secret",
		Voice:              "alloy",
		Instructions:       "be brief",
		TranscriptionModel: "whisper-1",
		VADThreshold:       0.5,
		PrefixPaddingMS:    300,
		SilenceDurationMS:  500,
		SettleDelay:        50 * time.Millisecond,
		SampleRate:         24000,
		HistoryLimit:       20,
	}
}

func newManager(t *testing.T, cfg realtime.Config, pub message.Publisher) (*realtime.Manager, *realtimetest.Dialer, *recordingSink) {
	t.Helper()
	dialer := &realtimetest.Dialer{}
	sink := &recordingSink{}
	dial := realtime.DialerFunc(func(ctx context.Context, u string, h http.Header) (realtime.Conn, error) {
		return dialer.Dial(ctx, u, h)
	})
	m := realtime.NewManager(cfg, dial, sink, pub, logger.NewNopLogger())
	t.Cleanup(m.Shutdown)
	return m, dialer, sink
}

func TestCreateSession_NotConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.APIKey = ""
	m, dialer, _ := newManager(t, cfg, nil)

	err := m.CreateSession(context.Background(), "s1", realtime.SessionOptions{})

	assert.ErrorIs(t, err, realtime.ErrNotConfigured)
	assert.Equal(t, 0, dialer.Dials())
}

func TestCreateSession_Idempotent(t *testing.T) {
	m, dialer, _ := newManager(t, testConfig(), nil)
	dialer.Delay = 30 * time.Millisecond

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.CreateSession(context.Background(), "s1", realtime.SessionOptions{})
		}(i)
	}
	wg.Wait()
	require.NoError(t, m.CreateSession(context.Background(), "s1", realtime.SessionOptions{}))

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	assert.Equal(t, 1, dialer.Dials())
	assert.True(t, m.Connected("s1"))
}

func TestCreateSession_SendsSessionConfiguration(t *testing.T) {
	m, dialer, _ := newManager(t, testConfig(), nil)

	require.NoError(t, m.CreateSession(context.Background(), "s1", realtime.SessionOptions{ContextHint: "Q3 planning"}))

	written := dialer.Last().Written()
	require.NotEmpty(t, written)
	assert.Equal(t, "session.update", written[0]["type"])

	session := written[0]["session"].(map[string]interface{})
	assert.Equal(t, "pcm16", session["input_audio_format"])
	assert.Contains(t, session["instructions"], "Q3 planning")

	td := session["turn_detection"].(map[string]interface{})
	assert.Equal(t, "server_vad", td["type"])
	assert.Equal(t, 0.5, td["threshold"])
	assert.Equal(t, float64(300), td["prefix_padding_ms"])
	assert.Equal(t, float64(500), td["silence_duration_ms"])
	assert.Equal(t, false, td["create_response"])

	assert.Equal(t, "Bearer secret", dialer.Header().Get("Authorization"))
}

func TestCreateSession_AzureUsesAPIKeyHeader(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "wss://contoso.openai.azure.com/openai/realtime?deployment=rt"
	m, dialer, _ := newManager(t, cfg, nil)

	require.NoError(t, m.CreateSession(context.Background(), "s1", realtime.SessionOptions{}))

	assert.Equal(t, "secret", dialer.Header().Get("api-key"))
	assert.Empty(t, dialer.Header().Get("Authorization"))
}

func TestSendAudio_NeverForwardsWhileSpeaking(t *testing.T) {
	cfg := testConfig()
	cfg.SettleDelay = time.Hour
	m, dialer, _ := newManager(t, cfg, nil)
	require.NoError(t, m.CreateSession(context.Background(), "s1", realtime.SessionOptions{}))
	conn := dialer.Last()

	rng := rand.New(rand.NewSource(7))
	expected := 0
	for round := 0; round < 20; round++ {
		speaking := rng.Intn(2) == 0
		if speaking {
			conn.Emit(map[string]interface{}{"type": "response.audio.delta", "delta": "AAAA"})
			require.Eventually(t, func() bool { return m.Speaking("s1") }, time.Second, time.Millisecond)
		} else {
			conn.Emit(map[string]interface{}{"type": "error", "error": map[string]interface{}{"message": "reset"}})
			require.Eventually(t, func() bool { return !m.Speaking("s1") }, time.Second, time.Millisecond)
		}

		frames := 1 + rng.Intn(5)
		for i := 0; i < frames; i++ {
			forwarded := m.SendAudio("s1", "UklGRg==")
			assert.Equal(t, !speaking, forwarded)
		}
		if !speaking {
			expected += frames
		}
	}

	assert.Equal(t, expected, conn.Count("input_audio_buffer.append"))
}

func TestSendAudio_DroppedWithoutSession(t *testing.T) {
	m, _, _ := newManager(t, testConfig(), nil)
	assert.False(t, m.SendAudio("missing", "AAAA"))
}

func TestAudioDeltas_SpeakingLifecycle(t *testing.T) {
	m, dialer, sink := newManager(t, testConfig(), nil)
	require.NoError(t, m.CreateSession(context.Background(), "s1", realtime.SessionOptions{}))
	conn := dialer.Last()

	for i := 0; i < 3; i++ {
		conn.Emit(map[string]interface{}{"type": "response.audio.delta", "delta": fmt.Sprintf("chunk-%d", i)})
	}
	require.Eventually(t, func() bool { return len(sink.ofType(dto.EventAudio)) == 3 }, time.Second, time.Millisecond)

	all := sink.all()
	require.Equal(t, dto.EventSpeakingState, all[0].eventType, "speaking starts before the first chunk")
	assert.Equal(t, dto.SpeakingStatePayload{Speaking: true}, all[0].payload)
	for i, ev := range sink.ofType(dto.EventAudio) {
		audio := ev.payload.(dto.AudioPayload)
		assert.Equal(t, fmt.Sprintf("chunk-%d", i), audio.Audio)
		assert.Equal(t, dto.SourcePrimary, audio.Source)
		assert.Equal(t, 24000, audio.SampleRate)
	}

	conn.Emit(map[string]interface{}{"type": "response.done"})
	time.Sleep(10 * time.Millisecond)
	assert.True(t, m.Speaking("s1"), "speaking holds through the settle delay")

	require.Eventually(t, func() bool { return !m.Speaking("s1") }, time.Second, time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	states := sink.ofType(dto.EventSpeakingState)
	require.Len(t, states, 2)
	assert.Equal(t, dto.SpeakingStatePayload{Speaking: false}, states[1].payload)
}

func TestErrorEvent_ForcesListeningImmediately(t *testing.T) {
	cfg := testConfig()
	cfg.SettleDelay = time.Hour
	m, dialer, _ := newManager(t, cfg, nil)
	require.NoError(t, m.CreateSession(context.Background(), "s1", realtime.SessionOptions{}))
	conn := dialer.Last()

	conn.Emit(map[string]interface{}{"type": "response.audio.delta", "delta": "AAAA"})
	conn.Emit(map[string]interface{}{"type": "response.done"})
	conn.Emit(map[string]interface{}{"type": "error", "error": map[string]interface{}{"code": "server_error", "message": "boom"}})

	assert.Eventually(t, func() bool { return !m.Speaking("s1") }, 500*time.Millisecond, time.Millisecond)
}

func TestTranscripts_HistoryBoundedAndPublished(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64, BlockPublishUntilSubscriberAck: true}, watermill.NopLogger{})
	defer pubSub.Close()
	msgs, err := pubSub.Subscribe(context.Background(), events.TopicTranscriptFinal)
	require.NoError(t, err)

	m, dialer, sink := newManager(t, testConfig(), pubSub)
	require.NoError(t, m.CreateSession(context.Background(), "s1", realtime.SessionOptions{}))
	conn := dialer.Last()

	for i := 0; i < 25; i++ {
		conn.Emit(map[string]interface{}{
			"type":       "conversation.item.input_audio_transcription.completed",
			"transcript": fmt.Sprintf(" utterance %d ", i),
		})
	}

	received := 0
	for received < 25 {
		select {
		case msg := <-msgs:
			var ev realtime.TranscriptEvent
			require.NoError(t, json.Unmarshal(msg.Payload, &ev))
			assert.Equal(t, fmt.Sprintf("utterance %d", received), ev.Text)
			assert.Equal(t, "s1", msg.Metadata.Get("session_id"))
			msg.Ack()
			received++
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d transcripts published", received)
		}
	}

	history := m.History("s1")
	require.Len(t, history, 20)
	assert.Equal(t, "utterance 5", history[0].Text)
	assert.Equal(t, "utterance 24", history[19].Text)

	transcripts := sink.ofType(dto.EventTranscript)
	require.Len(t, transcripts, 25)
	assert.Equal(t, dto.TranscriptPayload{Text: "utterance 0", Final: true, Role: dto.RoleUser}, transcripts[0].payload)
}

func TestAssistantTranscriptDone_EmitsPMResponse(t *testing.T) {
	m, dialer, sink := newManager(t, testConfig(), nil)
	require.NoError(t, m.CreateSession(context.Background(), "s1", realtime.SessionOptions{}))

	dialer.Last().Emit(map[string]interface{}{"type": "response.audio_transcript.delta", "delta": "Three"})
	dialer.Last().Emit(map[string]interface{}{"type": "response.audio_transcript.done", "transcript": "Three meetings today."})

	require.Eventually(t, func() bool { return len(sink.ofType(dto.EventPMResponse)) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, dto.ResponsePayload{Text: "Three meetings today.", Source: dto.SourcePM}, sink.ofType(dto.EventPMResponse)[0].payload)
	assert.Equal(t, dto.TranscriptPayload{Text: "Three", Final: false, Role: dto.RoleAssistant}, sink.ofType(dto.EventTranscript)[0].payload)
}

func TestTriggerAndInject(t *testing.T) {
	m, dialer, _ := newManager(t, testConfig(), nil)

	assert.ErrorIs(t, m.TriggerResponse("s1"), realtime.ErrNoSession)

	require.NoError(t, m.CreateSession(context.Background(), "s1", realtime.SessionOptions{}))
	require.NoError(t, m.InjectContext("s1", "Calendar: standup at 10"))
	require.NoError(t, m.TriggerResponse("s1"))

	written := dialer.Last().Written()
	item := written[1]
	assert.Equal(t, "conversation.item.create", item["type"])
	content := item["item"].(map[string]interface{})["content"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "Calendar: standup at 10", content["text"])

	trigger := written[2]
	assert.Equal(t, "response.create", trigger["type"])
	assert.ElementsMatch(t, []interface{}{"text", "audio"}, trigger["response"].(map[string]interface{})["modalities"])
}

func TestEndSession_SafeToRepeat(t *testing.T) {
	m, dialer, _ := newManager(t, testConfig(), nil)
	require.NoError(t, m.CreateSession(context.Background(), "s1", realtime.SessionOptions{}))

	m.EndSession("s1")
	m.EndSession("s1")
	m.EndSession("never-existed")

	assert.True(t, dialer.Last().Closed())
	assert.False(t, m.Connected("s1"))
	assert.ErrorIs(t, m.TriggerResponse("s1"), realtime.ErrNoSession)

	require.NoError(t, m.CreateSession(context.Background(), "s1", realtime.SessionOptions{}))
	assert.Equal(t, 2, dialer.Dials())
}

func TestUpstreamLoss_SurfacesErrorWithoutReconnect(t *testing.T) {
	m, dialer, sink := newManager(t, testConfig(), nil)
	require.NoError(t, m.CreateSession(context.Background(), "s1", realtime.SessionOptions{}))

	dialer.Last().Close()

	require.Eventually(t, func() bool { return len(sink.ofType(dto.EventError)) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, dto.SourceRealtime, sink.ofType(dto.EventError)[0].payload.(dto.ErrorPayload).Source)
	assert.False(t, m.Connected("s1"))
	assert.Equal(t, 1, dialer.Dials())
}

func TestUpstreamLoss_NotifiesObserver(t *testing.T) {
	dialer := &realtimetest.Dialer{}
	sink := &observingSink{}
	m := realtime.NewManager(testConfig(), realtime.DialerFunc(func(ctx context.Context, u string, h http.Header) (realtime.Conn, error) {
		return dialer.Dial(ctx, u, h)
	}), sink, nil, logger.NewNopLogger())
	t.Cleanup(m.Shutdown)
	require.NoError(t, m.CreateSession(context.Background(), "s1", realtime.SessionOptions{}))

	dialer.Last().Close()

	require.Eventually(t, func() bool { return len(sink.lostSessions()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"s1"}, sink.lostSessions())

	m.EndSession("s1")
	assert.Len(t, sink.lostSessions(), 1, "an explicit end is not a loss")
}
