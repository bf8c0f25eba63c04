package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"meeting-agent-be/internal/dto"
	"meeting-agent-be/internal/entity"
	"meeting-agent-be/internal/pkg/logger"
	"meeting-agent-be/internal/pkg/serverutils"
	"meeting-agent-be/internal/websocket"
	"meeting-agent-be/pkg/ai/pipeline"
	"meeting-agent-be/pkg/artifact"
	"meeting-agent-be/pkg/events"
	"meeting-agent-be/pkg/realtime"
	"meeting-agent-be/pkg/store"
)

const sessionModule = "SESSION"

// VoiceSessions is the upstream session lifecycle as the session service uses it.
type VoiceSessions interface {
	CreateSession(ctx context.Context, sessionID string, opts realtime.SessionOptions) error
	SendAudio(sessionID, frame string) bool
	EndSession(sessionID string)
}

type RequestSubmitter interface {
	Submit(ctx context.Context, req pipeline.Request) error
}

type HistoryClearer interface {
	Clear(sessionID string)
}

type ClientRegistry interface {
	SendTo(sessionID, eventType string, payload interface{})
	Departures() <-chan string
}

type artifactCounter interface {
	CountForSession(ctx context.Context, sessionID string) (int64, error)
}

type ISessionService interface {
	websocket.InboundHandler
	Run(ctx context.Context) error
}

type sessionService struct {
	hub       ClientRegistry
	voice     VoiceSessions
	router    RequestSubmitter
	artifacts pipeline.ArtifactSaver
	history   HistoryClearer
	publisher events.Publisher
	timeout   time.Duration
	logger    logger.ILogger
}

// NewSessionService accepts a nil publisher.
func NewSessionService(
	hub ClientRegistry,
	voice VoiceSessions,
	router RequestSubmitter,
	artifacts pipeline.ArtifactSaver,
	history HistoryClearer,
	publisher events.Publisher,
	timeout time.Duration,
	log logger.ILogger,
) ISessionService {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &sessionService{
		hub:       hub,
		voice:     voice,
		router:    router,
		artifacts: artifacts,
		history:   history,
		publisher: publisher,
		timeout:   timeout,
		logger:    log,
	}
}

func (s *sessionService) HandleMessage(client *websocket.Client, raw []byte) {
	sessionID := client.ID()

	var msg dto.ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.logger.Warn(sessionModule, "Malformed client message", map[string]interface{}{"session_id": sessionID, "error": err.Error()})
		s.fail(sessionID, "Malformed message", dto.SourceClient)
		return
	}
	if err := serverutils.ValidateStruct(msg); err != nil {
		s.logger.Warn(sessionModule, "Invalid client message", map[string]interface{}{"session_id": sessionID, "type": msg.Type, "error": err.Error()})
		s.fail(sessionID, err.Error(), dto.SourceClient)
		return
	}

	switch msg.Type {
	case dto.MessageStartSession:
		s.startSession(client.Session, msg)
	case dto.MessageAudio:
		s.voice.SendAudio(sessionID, msg.Audio)
	case dto.MessageScreenshot:
		s.screenshot(client.Session, msg, true)
	case dto.MessageVisionFrame:
		s.screenshot(client.Session, msg, false)
	case dto.MessageStopSession:
		s.voice.EndSession(sessionID)
		client.Session.SetUpstreamConnected(false)
		if s.history != nil {
			s.history.Clear(sessionID)
		}
		s.hub.SendTo(sessionID, dto.EventSessionEnded, dto.SessionStatusPayload{SessionID: sessionID})
	case dto.MessageTriggerResponse:
		s.submit(pipeline.Request{SessionID: sessionID, Kind: pipeline.KindPrimary})
	case dto.MessageRequestVisionAnalysis:
		s.submit(pipeline.Request{
			SessionID: sessionID,
			Kind:      pipeline.KindVision,
			Text:      msg.Question,
			Question:  msg.Question,
		})
	}
}

func (s *sessionService) fail(sessionID, message, source string) {
	s.hub.SendTo(sessionID, dto.EventError, dto.ErrorPayload{Message: message, Source: source})
}

func (s *sessionService) startSession(session *store.Session, msg dto.ClientMessage) {
	session.SetMetadata(store.Metadata{DisplayName: msg.DisplayName, ContextHint: msg.ContextHint})

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	err := s.voice.CreateSession(ctx, session.ID, realtime.SessionOptions{
		DisplayName: msg.DisplayName,
		ContextHint: msg.ContextHint,
	})
	switch {
	case errors.Is(err, realtime.ErrNotConfigured):
		s.logger.Error(sessionModule, "Realtime backend not configured", map[string]interface{}{"session_id": session.ID})
		s.fail(session.ID, "Voice backend is not configured", dto.SourceConfig)
		return
	case err != nil:
		s.logger.Error(sessionModule, "Failed to open voice session", map[string]interface{}{"session_id": session.ID, "error": err.Error()})
		s.fail(session.ID, "Could not start the voice session", dto.SourceRealtime)
		return
	}

	session.SetUpstreamConnected(true)
	s.hub.SendTo(session.ID, dto.EventSessionStarted, dto.SessionStatusPayload{SessionID: session.ID, Message: "Session started"})
	s.publish(events.TypeSessionStarted, map[string]interface{}{"session_id": session.ID, "display_name": msg.DisplayName})
}

func (s *sessionService) screenshot(session *store.Session, msg dto.ClientMessage, persist bool) {
	image, mimeType, err := decodeImage(msg.Image, msg.MimeType)
	if err != nil {
		s.logger.Warn(sessionModule, "Undecodable image", map[string]interface{}{"session_id": session.ID, "error": err.Error()})
		s.fail(session.ID, "Image is not valid base64", dto.SourceClient)
		return
	}
	session.SetSnapshot(store.Snapshot{Image: image, MimeType: mimeType, CapturedAt: time.Now()})
	if !persist || s.artifacts == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	desc, err := s.artifacts.Save(ctx, artifact.Artifact{
		SessionID: session.ID,
		Type:      entity.ArtifactScreenshot,
		Title:     "Screenshot",
		Data:      image,
		MimeType:  mimeType,
	})
	if err != nil {
		s.logger.Error(sessionModule, "Failed to save screenshot", map[string]interface{}{"session_id": session.ID, "error": err.Error()})
		return
	}
	s.hub.SendTo(session.ID, dto.EventScreenshotSaved, dto.ScreenshotSavedPayload{ID: desc.ID, Filename: desc.Filename, URL: desc.URL})
}

// decodeImage accepts plain base64 or a data URI.
func decodeImage(raw, mimeType string) ([]byte, string, error) {
	if strings.HasPrefix(raw, "data:") {
		if comma := strings.IndexByte(raw, ','); comma > 0 {
			header := strings.TrimSuffix(strings.TrimPrefix(raw[:comma], "data:"), ";base64")
			if mimeType == "" {
				mimeType = header
			}
			raw = raw[comma+1:]
		}
	}
	if mimeType == "" {
		mimeType = "image/png"
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, "", err
	}
	return data, mimeType, nil
}

func (s *sessionService) submit(req pipeline.Request) {
	if err := s.router.Submit(context.Background(), req); err != nil {
		s.logger.Error(sessionModule, "Failed to submit request", map[string]interface{}{"session_id": req.SessionID, "kind": string(req.Kind), "error": err.Error()})
	}
}

func (s *sessionService) publish(eventType string, data map[string]interface{}) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.publisher.Publish(ctx, events.New(eventType, data)); err != nil {
		s.logger.Warn(sessionModule, "Failed to publish event", map[string]interface{}{"type": eventType, "error": err.Error()})
	}
}

// Run tears down upstream state for every departed client until ctx is done.
func (s *sessionService) Run(ctx context.Context) error {
	departures := s.hub.Departures()
	for {
		select {
		case <-ctx.Done():
			return nil
		case sessionID := <-departures:
			s.voice.EndSession(sessionID)
			if s.history != nil {
				s.history.Clear(sessionID)
			}
			data := map[string]interface{}{"session_id": sessionID}
			if counter, ok := s.artifacts.(artifactCounter); ok {
				if n, err := counter.CountForSession(ctx, sessionID); err == nil {
					data["artifacts"] = n
				}
			}
			s.publish(events.TypeSessionEnded, data)
			s.logger.Info(sessionModule, "Session torn down", data)
		}
	}
}
