package router

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"meeting-agent-be/internal/dto"
	"meeting-agent-be/internal/pkg/logger"
	"meeting-agent-be/pkg/ai/pipeline"
	"meeting-agent-be/pkg/events"
	"meeting-agent-be/pkg/realtime"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

const module = "ROUTER"

// Notifier delivers an outbound event to one client session.
type Notifier interface {
	SendTo(sessionID, eventType string, payload interface{})
}

// Router turns finished transcripts into pipeline requests.
type Router struct {
	classifier *Classifier
	notifier   Notifier
	publisher  message.Publisher
	logger     logger.ILogger
}

func NewRouter(classifier *Classifier, notifier Notifier, publisher message.Publisher, log logger.ILogger) *Router {
	return &Router{classifier: classifier, notifier: notifier, publisher: publisher, logger: log}
}

// Plan maps a classification to the pipeline that should handle it.
func Plan(sessionID string, c Classification) (pipeline.Request, bool) {
	req := pipeline.Request{
		SessionID:   sessionID,
		Utterance:   c.Utterance,
		Text:        c.Text,
		RequestedAt: time.Now(),
	}

	switch c.Category {
	case CategoryAssistant:
		req.Kind = pipeline.KindAssistant
		req.Screen = c.Intent == IntentScreen
	case CategoryAgent:
		switch c.Intent {
		case IntentDocument:
			req.Kind = pipeline.KindDocument
		case IntentContextual:
			req.Kind = pipeline.KindContextual
			req.Source = c.Source
		case IntentScreen:
			req.Kind = pipeline.KindVision
			req.Question = c.Text
		default:
			req.Kind = pipeline.KindPrimary
		}
	default:
		return pipeline.Request{}, false
	}
	return req, true
}

var detectionStatus = map[pipeline.Kind]string{
	pipeline.KindAssistant:  "Claude heard you",
	pipeline.KindDocument:   "Preparing your document...",
	pipeline.KindContextual: "PM heard you",
	pipeline.KindVision:     "PM heard you",
	pipeline.KindPrimary:    "PM heard you",
}

// Route classifies one finished utterance and, when it addresses an
// agent, hands it to the pipeline dispatcher.
func (r *Router) Route(ctx context.Context, sessionID, text string) (pipeline.Request, bool, error) {
	c := r.classifier.Classify(text)
	req, ok := Plan(sessionID, c)
	if !ok {
		return pipeline.Request{}, false, nil
	}

	r.logger.Info(module, "Wake phrase detected", map[string]interface{}{
		"session_id": sessionID,
		"category":   string(c.Category),
		"intent":     string(c.Intent),
		"pipeline":   string(req.Kind),
	})
	r.notifier.SendTo(sessionID, dto.EventThinking, dto.ThinkingPayload{Status: detectionStatus[req.Kind]})

	return req, true, r.Submit(ctx, req)
}

// Submit publishes a request on the dispatch topic.
func (r *Router) Submit(ctx context.Context, req pipeline.Request) error {
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now()
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal pipeline request: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("session_id", req.SessionID)
	msg.SetContext(ctx)
	if err := r.publisher.Publish(events.TopicPipelineDispatch, msg); err != nil {
		return fmt.Errorf("publish pipeline request: %w", err)
	}
	return nil
}

// Run consumes finished transcripts until ctx is done. Each message is
// acked only after routing, so one session's utterances stay in order.
func (r *Router) Run(ctx context.Context, sub message.Subscriber) error {
	messages, err := sub.Subscribe(ctx, events.TopicTranscriptFinal)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", events.TopicTranscriptFinal, err)
	}
	return r.runMessages(messages)
}

func (r *Router) runMessages(messages <-chan *message.Message) error {
	for msg := range messages {
		var ev realtime.TranscriptEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			r.logger.Warn(module, "Dropping undecodable transcript", map[string]interface{}{"error": err.Error()})
			msg.Ack()
			continue
		}
		if _, _, err := r.Route(msg.Context(), ev.SessionID, ev.Text); err != nil {
			r.logger.Error(module, "Routing failed", map[string]interface{}{"session_id": ev.SessionID, "error": err.Error()})
		}
		msg.Ack()
	}
	return nil
}
