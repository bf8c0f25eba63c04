package handler

import (
	"bytes"
	"errors"
	"fmt"
	"html"

	"meeting-agent-be/internal/pkg/logger"
	"meeting-agent-be/internal/pkg/serverutils"
	"meeting-agent-be/pkg/artifact"

	"github.com/gofiber/fiber/v2"
	"github.com/yuin/goldmark"
)

// ArtifactHandler serves saved documents and screenshots by id.
type ArtifactHandler struct {
	artifacts *artifact.Service
	markdown  goldmark.Markdown
	jwtSecret string
	logger    logger.ILogger
}

func NewArtifactHandler(artifacts *artifact.Service, jwtSecret string, log logger.ILogger) *ArtifactHandler {
	return &ArtifactHandler{artifacts: artifacts, markdown: goldmark.New(), jwtSecret: jwtSecret, logger: log}
}

// RegisterRoutes puts artifacts behind the same secret as the session socket.
func (h *ArtifactHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/artifacts/:id", serverutils.JwtMiddleware(h.jwtSecret), h.Show)
}

func (h *ArtifactHandler) Show(c *fiber.Ctx) error {
	a, err := h.artifacts.Get(c.Context(), c.Params("id"))
	if errors.Is(err, artifact.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "artifact not found")
	}
	if err != nil {
		h.logger.Error("ARTIFACT", "Failed to load artifact", map[string]interface{}{"id": c.Params("id"), "error": err.Error()})
		return err
	}

	if !a.IsDocument() {
		c.Set(fiber.HeaderContentType, a.MimeType)
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", a.Filename))
		return c.Send(a.Data)
	}

	if c.Query("format") == "html" {
		var body bytes.Buffer
		if err := h.markdown.Convert([]byte(a.Content), &body); err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.SendString(fmt.Sprintf("<!doctype html><html><head><meta charset=\"utf-8\"><title>%s</title></head><body>%s</body></html>",
			html.EscapeString(a.Title), body.String()))
	}

	c.Set(fiber.HeaderContentType, a.MimeType+"; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", a.Filename))
	return c.SendString(a.Content)
}
