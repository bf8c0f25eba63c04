package service

import (
	"context"
	"errors"
	"testing"

	"meeting-agent-be/internal/dto"
	"meeting-agent-be/internal/pkg/logger"
	"meeting-agent-be/pkg/events"
	"meeting-agent-be/pkg/nats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubscriber struct {
	err       error
	eventType string
	durable   string
	handler   nats.EventHandler
}

func (s *fakeSubscriber) Subscribe(ctx context.Context, eventType, durableName string, handler nats.EventHandler) error {
	s.eventType, s.durable, s.handler = eventType, durableName, handler
	return s.err
}

func TestRelayService(t *testing.T) {
	tests := []struct {
		name       string
		payload    map[string]interface{}
		wantStatus []string
	}{
		{name: "message broadcast", payload: map[string]interface{}{"message": "  Maintenance at 18:00 "}, wantStatus: []string{"Maintenance at 18:00"}},
		{name: "blank message ignored", payload: map[string]interface{}{"message": "   "}},
		{name: "missing message ignored", payload: map[string]interface{}{"level": "info"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &fakeSubscriber{}
			registry := newRecordingRegistry()
			relay := NewRelayService(sub, registry, logger.NewNopLogger())

			require.NoError(t, relay.Start(context.Background()))
			assert.Equal(t, events.TypeAnnouncement, sub.eventType)
			require.NotNil(t, sub.handler)

			require.NoError(t, sub.handler(context.Background(), events.New(events.TypeAnnouncement, tt.payload)))

			var got []string
			for _, b := range registry.broadcasts {
				assert.Equal(t, dto.EventThinking, b.eventType)
				got = append(got, b.payload.(dto.ThinkingPayload).Status)
			}
			assert.Equal(t, tt.wantStatus, got)
		})
	}
}

func TestRelayService_SubscribeFailure(t *testing.T) {
	relay := NewRelayService(&fakeSubscriber{err: errors.New("no stream")}, newRecordingRegistry(), logger.NewNopLogger())

	err := relay.Start(context.Background())

	assert.ErrorContains(t, err, "subscribe announcements")
}
