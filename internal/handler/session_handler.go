package handler

import (
	"meeting-agent-be/internal/pkg/logger"
	"meeting-agent-be/internal/pkg/serverutils"
	"meeting-agent-be/internal/service"
	internalWS "meeting-agent-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// SessionHandler upgrades /api/ws and hands the connection to the hub.
type SessionHandler struct {
	hub       *internalWS.Hub
	sessions  service.ISessionService
	jwtSecret string
	logger    logger.ILogger
}

func NewSessionHandler(hub *internalWS.Hub, sessions service.ISessionService, jwtSecret string, log logger.ILogger) *SessionHandler {
	return &SessionHandler{hub: hub, sessions: sessions, jwtSecret: jwtSecret, logger: log}
}

func (h *SessionHandler) RegisterRoutes(r fiber.Router) {
	r.Use("/ws", h.Upgrade)
	r.Get("/ws", websocket.New(h.serve))
	r.Get("/health", h.Health)
}

// Upgrade rejects plain HTTP and, when a secret is set, unauthenticated peers.
func (h *SessionHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	if h.jwtSecret != "" {
		claims, err := serverutils.VerifyToken(serverutils.ExtractToken(c), h.jwtSecret)
		if err != nil {
			h.logger.Warn("WS", "Rejected handshake", map[string]interface{}{"ip": c.IP(), "error": err.Error()})
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or missing token"})
		}
		c.Locals("subject", claims["sub"])
	}
	return c.Next()
}

func (h *SessionHandler) serve(c *websocket.Conn) {
	internalWS.ServeWs(h.hub, c, h.sessions)
}

func (h *SessionHandler) Health(c *fiber.Ctx) error {
	return c.JSON(serverutils.SuccessResponse("ok", fiber.Map{"sessions": h.hub.Count()}))
}
