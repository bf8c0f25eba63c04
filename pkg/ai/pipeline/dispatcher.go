package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"meeting-agent-be/internal/dto"
	"meeting-agent-be/internal/pkg/logger"
	"meeting-agent-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const module = "PIPELINE"

var ErrBusy = errors.New("a response is already being prepared for this session")

const busyNotice = "Still working on your previous request"

func thinking(n Notifier, sessionID, status string) {
	n.SendTo(sessionID, dto.EventThinking, dto.ThinkingPayload{Status: status})
}

// Dispatcher runs at most one pipeline per session at a time. Each run gets
// its own goroutine and a context detached from the caller, so a client
// hanging up does not cancel work already in flight.
type Dispatcher struct {
	coordinators map[Kind]Coordinator
	notifier     Notifier
	timeout      time.Duration
	tracer       trace.Tracer
	logger       logger.ILogger

	mu   sync.Mutex
	busy map[string]Kind
	wg   sync.WaitGroup
}

func NewDispatcher(coordinators map[Kind]Coordinator, notifier Notifier, timeout time.Duration, log logger.ILogger) *Dispatcher {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Dispatcher{
		coordinators: coordinators,
		notifier:     notifier,
		timeout:      timeout,
		tracer:       otel.Tracer("meeting-agent-be/pipeline"),
		logger:       log,
		busy:         make(map[string]Kind),
	}
}

// Dispatch starts req in the background. A session that already has a
// pipeline running is told so and the request is dropped with ErrBusy.
func (d *Dispatcher) Dispatch(req Request) error {
	coord, ok := d.coordinators[req.Kind]
	if !ok {
		return fmt.Errorf("no coordinator for pipeline %q", req.Kind)
	}

	d.mu.Lock()
	if running, taken := d.busy[req.SessionID]; taken {
		d.mu.Unlock()
		d.logger.Info(module, "Request rejected, session busy", map[string]interface{}{
			"session_id": req.SessionID,
			"running":    string(running),
			"requested":  string(req.Kind),
		})
		thinking(d.notifier, req.SessionID, busyNotice)
		return ErrBusy
	}
	d.busy[req.SessionID] = req.Kind
	d.wg.Add(1)
	d.mu.Unlock()

	go d.run(coord, req)
	return nil
}

func (d *Dispatcher) run(coord Coordinator, req Request) {
	defer d.wg.Done()
	defer d.release(req.SessionID)

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	ctx, span := d.tracer.Start(ctx, "pipeline."+string(req.Kind), trace.WithAttributes(
		attribute.String("session.id", req.SessionID),
		attribute.String("pipeline.kind", string(req.Kind)),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			span.SetStatus(codes.Error, "panic")
			d.logger.Error(module, "Pipeline panicked", map[string]interface{}{
				"session_id": req.SessionID,
				"kind":       string(req.Kind),
				"panic":      fmt.Sprint(r),
			})
		}
	}()

	started := time.Now()
	err := coord.Run(ctx, req)
	fields := map[string]interface{}{
		"session_id":  req.SessionID,
		"kind":        string(req.Kind),
		"duration_ms": time.Since(started).Milliseconds(),
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		fields["error"] = err.Error()
		d.logger.Warn(module, "Pipeline finished with error", fields)
		return
	}
	d.logger.Info(module, "Pipeline finished", fields)
}

func (d *Dispatcher) release(sessionID string) {
	d.mu.Lock()
	delete(d.busy, sessionID)
	d.mu.Unlock()
}

func (d *Dispatcher) Busy(sessionID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.busy[sessionID]
	return ok
}

// Run consumes routed requests until ctx is done.
func (d *Dispatcher) Run(ctx context.Context, sub message.Subscriber) error {
	messages, err := sub.Subscribe(ctx, events.TopicPipelineDispatch)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", events.TopicPipelineDispatch, err)
	}
	for msg := range messages {
		var req Request
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			d.logger.Warn(module, "Dropping undecodable request", map[string]interface{}{"error": err.Error()})
			msg.Ack()
			continue
		}
		if err := d.Dispatch(req); err != nil && !errors.Is(err, ErrBusy) {
			d.logger.Warn(module, "Dispatch failed", map[string]interface{}{"session_id": req.SessionID, "error": err.Error()})
		}
		msg.Ack()
	}
	return nil
}

// Wait blocks until every started pipeline has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
