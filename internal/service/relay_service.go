package service

import (
	"context"
	"fmt"
	"strings"

	"meeting-agent-be/internal/dto"
	"meeting-agent-be/internal/pkg/logger"
	"meeting-agent-be/pkg/events"
	"meeting-agent-be/pkg/nats"
)

// Broadcaster reaches every connected client.
type Broadcaster interface {
	Broadcast(eventType string, payload interface{})
}

type EventSubscriber interface {
	Subscribe(ctx context.Context, eventType, durableName string, handler nats.EventHandler) error
}

// RelayService forwards operator announcements from the bus to every client.
type RelayService struct {
	subscriber EventSubscriber
	clients    Broadcaster
	logger     logger.ILogger
}

func NewRelayService(sub EventSubscriber, clients Broadcaster, log logger.ILogger) *RelayService {
	return &RelayService{subscriber: sub, clients: clients, logger: log}
}

func (s *RelayService) Start(ctx context.Context) error {
	if err := s.subscriber.Subscribe(ctx, events.TypeAnnouncement, "meeting-agent-announcements", s.handleEvent); err != nil {
		return fmt.Errorf("subscribe announcements: %w", err)
	}
	s.logger.Info("RELAY", "Announcement relay started", nil)
	return nil
}

func (s *RelayService) handleEvent(ctx context.Context, event events.Event) error {
	text, _ := event.Payload()["message"].(string)
	text = strings.TrimSpace(text)
	if text == "" {
		s.logger.Warn("RELAY", "Announcement without message", map[string]interface{}{"type": event.EventType()})
		return nil
	}
	s.clients.Broadcast(dto.EventThinking, dto.ThinkingPayload{Status: text})
	return nil
}
