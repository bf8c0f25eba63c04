package pipeline

import (
	"context"
	"fmt"

	"meeting-agent-be/internal/dto"
	"meeting-agent-be/internal/entity"
	"meeting-agent-be/internal/pkg/logger"
	"meeting-agent-be/pkg/artifact"

	"golang.org/x/sync/errgroup"
)

// SilentDocument has the voice agent acknowledge a document request while
// the document is generated and saved alongside it.
type SilentDocument struct {
	voice     Voice
	notifier  Notifier
	docs      *DocumentGenerator
	reference ReferenceReader
	artifacts ArtifactSaver
	logger    logger.ILogger
}

func NewSilentDocument(voice Voice, notifier Notifier, docs *DocumentGenerator, reference ReferenceReader, artifacts ArtifactSaver, log logger.ILogger) *SilentDocument {
	return &SilentDocument{voice: voice, notifier: notifier, docs: docs, reference: reference, artifacts: artifacts, logger: log}
}

func (s *SilentDocument) Run(ctx context.Context, req Request) error {
	docType := DocumentTypeOf(req.Text)

	var g errgroup.Group
	g.Go(func() error {
		ack := fmt.Sprintf("The user asked for a %s. Tell them in one short sentence that you are preparing it and it will appear on their screen shortly. Do not read it out.", docType)
		if err := s.voice.InjectContext(req.SessionID, ack); err != nil {
			return err
		}
		return s.voice.TriggerResponse(req.SessionID)
	})
	g.Go(func() error {
		if err := s.produce(ctx, req, docType); err != nil {
			s.logger.Error(module, "Background document failed", map[string]interface{}{
				"session_id": req.SessionID,
				"type":       string(docType),
				"error":      err.Error(),
			})
			s.notifier.SendTo(req.SessionID, dto.EventError, dto.ErrorPayload{
				Message: fmt.Sprintf("I couldn't create the %s", docType),
				Source:  dto.SourceDocument,
			})
			return err
		}
		return nil
	})
	return g.Wait()
}

func (s *SilentDocument) produce(ctx context.Context, req Request, docType entity.ArtifactType) error {
	doc, err := s.docs.Generate(ctx, docType, req.Text, s.reference.Snapshot(ctx).Describe(), nil)
	if err != nil {
		return err
	}
	desc, err := s.artifacts.Save(ctx, artifact.Artifact{
		SessionID: req.SessionID,
		Type:      doc.Type,
		Title:     doc.Title,
		Content:   doc.Body,
		MimeType:  "text/markdown",
	})
	if err != nil {
		return fmt.Errorf("save %s: %w", docType, err)
	}
	s.notifier.SendTo(req.SessionID, dto.EventFileSaved, fileSaved(desc, doc.Type))
	return nil
}
