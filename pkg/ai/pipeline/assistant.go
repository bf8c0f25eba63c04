package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"meeting-agent-be/internal/dto"
	"meeting-agent-be/internal/entity"
	"meeting-agent-be/internal/pkg/logger"
	"meeting-agent-be/pkg/artifact"
	"meeting-agent-be/pkg/llm"
)

const assistantContract = `You are Claude, a secondary assistant listening in on a project meeting.
Rules:
- Answer in one to three short spoken sentences. No Markdown, lists or headings.
- You cannot take real actions: you cannot send messages, book meetings or change tickets. Say so if asked.
- Only state project facts found in the reference records below or in the conversation. If something is not there, say you don't have that information.
- Never invent ticket numbers, dates, names or figures.`

const assistantApology = "Sorry, I ran into a problem answering that. Could you ask me again?"

// AssistantReply is the outcome of one "Hey Claude" turn.
type AssistantReply struct {
	Text     string
	Document *Document
	Refused  bool
	Topic    string // guardrail topic when Refused
}

// Assistant answers secondary-assistant requests with its own model,
// history and guardrail, independent of the upstream voice session.
type Assistant struct {
	llm       llm.LLMProvider
	docs      *DocumentGenerator
	history   HistoryStore
	reference ReferenceReader
	snapshots SnapshotSource
	vision    VisionAnalyzer
	logger    logger.ILogger
}

type AssistantDeps struct {
	LLM       llm.LLMProvider
	History   HistoryStore
	Reference ReferenceReader
	Snapshots SnapshotSource // optional
	Vision    VisionAnalyzer // optional
	Logger    logger.ILogger
}

func NewAssistant(d AssistantDeps) *Assistant {
	return &Assistant{
		llm:       d.LLM,
		docs:      NewDocumentGenerator(d.LLM),
		history:   d.History,
		reference: d.Reference,
		snapshots: d.Snapshots,
		vision:    d.Vision,
		logger:    d.Logger,
	}
}

// Respond produces the assistant's answer. Guardrail hits return the fixed
// refusal without touching the model.
func (a *Assistant) Respond(ctx context.Context, sessionID, utterance, text string, screen bool) (*AssistantReply, error) {
	if topic, hit := Guardrail(utterance); hit {
		a.logger.Info(module, "Assistant request declined", map[string]interface{}{"session_id": sessionID, "topic": topic})
		return &AssistantReply{Text: RefusalText, Refused: true, Topic: topic}, nil
	}
	if strings.TrimSpace(text) == "" {
		text = utterance
	}

	grounding := a.reference.Snapshot(ctx).Describe()
	history := a.history.Get(sessionID)

	if docType, ok := DetectDocumentType(text); ok {
		doc, err := a.docs.Generate(ctx, docType, text, grounding, history)
		if err != nil {
			return nil, err
		}
		a.history.Append(sessionID,
			llm.Message{Role: llm.RoleUser, Content: text},
			llm.Message{Role: llm.RoleAssistant, Content: doc.Spoken},
		)
		return &AssistantReply{Text: doc.Spoken, Document: doc}, nil
	}

	system := assistantContract + "\n\n" + grounding
	if screen {
		if desc := a.describeScreen(ctx, sessionID, text); desc != "" {
			system += "\n\nThe shared screen currently shows: " + desc
		}
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: text})

	reply, err := a.llm.Chat(ctx, messages, llm.WithTemperature(0.4), llm.WithMaxTokens(300))
	if err != nil {
		return nil, fmt.Errorf("assistant chat: %w", err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return nil, llm.ErrEmptyResponse
	}

	a.history.Append(sessionID,
		llm.Message{Role: llm.RoleUser, Content: text},
		llm.Message{Role: llm.RoleAssistant, Content: reply},
	)
	return &AssistantReply{Text: reply}, nil
}

func (a *Assistant) describeScreen(ctx context.Context, sessionID, question string) string {
	if a.snapshots == nil || a.vision == nil {
		return ""
	}
	snap, ok := a.snapshots.LatestSnapshot(sessionID)
	if !ok {
		return ""
	}
	desc, err := a.vision.Analyze(ctx, snap.Image, snap.MimeType, question)
	if err != nil {
		a.logger.Warn(module, "Screen description failed", map[string]interface{}{"session_id": sessionID, "error": err.Error()})
		return ""
	}
	return desc
}

// AssistantCoordinator delivers an assistant turn: text, synthesized speech
// and, for documents, the saved file.
type AssistantCoordinator struct {
	assistant *Assistant
	notifier  Notifier
	tts       Synthesizer
	artifacts ArtifactSaver
	logger    logger.ILogger
}

func NewAssistantCoordinator(assistant *Assistant, notifier Notifier, tts Synthesizer, artifacts ArtifactSaver, log logger.ILogger) *AssistantCoordinator {
	return &AssistantCoordinator{assistant: assistant, notifier: notifier, tts: tts, artifacts: artifacts, logger: log}
}

func (c *AssistantCoordinator) Run(ctx context.Context, req Request) error {
	thinking(c.notifier, req.SessionID, "Claude is thinking...")

	reply, err := c.assistant.Respond(ctx, req.SessionID, req.Utterance, req.Text, req.Screen)
	if err != nil {
		c.logger.Error(module, "Assistant failed", map[string]interface{}{"session_id": req.SessionID, "error": err.Error()})
		c.deliver(ctx, req.SessionID, assistantApology)
		return err
	}

	c.deliver(ctx, req.SessionID, reply.Text)

	if reply.Document != nil {
		return c.saveDocument(ctx, req.SessionID, reply.Document)
	}
	return nil
}

func (c *AssistantCoordinator) deliver(ctx context.Context, sessionID, text string) {
	c.notifier.SendTo(sessionID, dto.EventClaudeResponse, dto.ResponsePayload{Text: text, Source: dto.SourceClaude})

	if c.tts == nil {
		return
	}
	audio, err := c.tts.Synthesize(ctx, text)
	if err != nil {
		c.logger.Warn(module, "Speech synthesis failed", map[string]interface{}{"session_id": sessionID, "error": err.Error()})
		return
	}
	c.notifier.SendTo(sessionID, dto.EventAudio, dto.AudioPayload{
		Audio:      base64.StdEncoding.EncodeToString(audio.Data),
		Source:     dto.SourceSynthesized,
		Format:     audio.Format,
		SampleRate: audio.SampleRate,
	})
}

func (c *AssistantCoordinator) saveDocument(ctx context.Context, sessionID string, doc *Document) error {
	if c.artifacts == nil {
		return nil
	}
	desc, err := c.artifacts.Save(ctx, artifact.Artifact{
		SessionID: sessionID,
		Type:      doc.Type,
		Title:     doc.Title,
		Content:   doc.Body,
		MimeType:  "text/markdown",
	})
	if err != nil {
		c.logger.Error(module, "Saving document failed", map[string]interface{}{"session_id": sessionID, "error": err.Error()})
		c.notifier.SendTo(sessionID, dto.EventError, dto.ErrorPayload{Message: "The document could not be saved", Source: dto.SourceDocument})
		return err
	}
	c.notifier.SendTo(sessionID, dto.EventFileSaved, fileSaved(desc, doc.Type))
	return nil
}

func fileSaved(desc *artifact.Descriptor, docType entity.ArtifactType) dto.FileSavedPayload {
	return dto.FileSavedPayload{
		ID:           desc.ID,
		Filename:     desc.Filename,
		URL:          desc.URL,
		DocumentType: string(docType),
		Title:        desc.Title,
		Content:      desc.Content,
	}
}
