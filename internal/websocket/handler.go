package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs registers the peer and pumps its connection until it closes.
func ServeWs(hub *Hub, c *websocket.Conn, handler InboundHandler) {
	client := hub.Register(c, handler)

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	hub.Serve(client)
}
