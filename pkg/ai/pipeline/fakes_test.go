package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"meeting-agent-be/internal/pkg/logger"
	"meeting-agent-be/internal/repository/memory"
	"meeting-agent-be/pkg/artifact"
	"meeting-agent-be/pkg/llm"
	"meeting-agent-be/pkg/reference"
	"meeting-agent-be/pkg/store"
	"meeting-agent-be/pkg/voice/tts"
)

type voiceOp struct {
	kind string // inject | trigger
	text string
}

type fakeVoice struct {
	mu         sync.Mutex
	ops        []voiceOp
	triggerErr error
}

func (v *fakeVoice) TriggerResponse(sessionID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ops = append(v.ops, voiceOp{kind: "trigger"})
	return v.triggerErr
}

func (v *fakeVoice) InjectContext(sessionID, text string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ops = append(v.ops, voiceOp{kind: "inject", text: text})
	return nil
}

func (v *fakeVoice) kinds() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]string, 0, len(v.ops))
	for _, op := range v.ops {
		out = append(out, op.kind)
	}
	return out
}

func (v *fakeVoice) injected() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, op := range v.ops {
		if op.kind == "inject" {
			return op.text
		}
	}
	return ""
}

type notice struct {
	eventType string
	payload   interface{}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notice
}

func (n *recordingNotifier) SendTo(sessionID, eventType string, payload interface{}) {
	n.mu.Lock()
	n.events = append(n.events, notice{eventType, payload})
	n.mu.Unlock()
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.eventType)
	}
	return out
}

func (n *recordingNotifier) first(eventType string) (interface{}, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range n.events {
		if e.eventType == eventType {
			return e.payload, true
		}
	}
	return nil, false
}

type fakeLLM struct {
	calls atomic.Int32
	reply func(messages []llm.Message) (string, error)

	mu   sync.Mutex
	last []llm.Message
}

func (f *fakeLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.last = append([]llm.Message(nil), history...)
	f.mu.Unlock()
	return f.reply(history)
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return f.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, options...)
}

func (f *fakeLLM) lastMessages() []llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func replyWith(text string) *fakeLLM {
	return &fakeLLM{reply: func([]llm.Message) (string, error) { return text, nil }}
}

func failingLLM() *fakeLLM {
	return &fakeLLM{reply: func([]llm.Message) (string, error) { return "", errors.New("model overloaded") }}
}

type staticReference struct{ snap reference.Snapshot }

func (r staticReference) Snapshot(ctx context.Context) reference.Snapshot { return r.snap }

func sampleReference() staticReference {
	return staticReference{snap: reference.Snapshot{
		Items: []reference.Item{
			{ID: "T-12", Title: "Checkout redesign", Status: "blocked", Requirement: "Waiting on payments API", Rank: 1},
			{ID: "T-15", Title: "Search latency", Status: "in progress", Rank: 2},
		},
		RefreshedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}}
}

type snapshotMap map[string]store.Snapshot

func (m snapshotMap) LatestSnapshot(sessionID string) (store.Snapshot, bool) {
	s, ok := m[sessionID]
	return s, ok
}

type fakeVision struct {
	desc string
	err  error
}

func (v fakeVision) Analyze(ctx context.Context, image []byte, mimeType, question string) (string, error) {
	return v.desc, v.err
}

type fakeSource struct {
	summary string
	err     error
}

func (s fakeSource) Summary(ctx context.Context) (string, error) { return s.summary, s.err }

type fakeTTS struct{}

func (fakeTTS) Synthesize(ctx context.Context, text string) (*tts.Audio, error) {
	return &tts.Audio{Data: []byte(strings.ToUpper(text)), Format: "pcm16", SampleRate: 24000}, nil
}

func newArtifacts() *artifact.Service {
	return artifact.NewService(memory.NewArtifactRepository(time.Hour), nil, "http://localhost:8080", logger.NewNopLogger())
}
