package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs attaches a connection to a session and blocks until it closes.
func ServeWs(hub *Hub, c *websocket.Conn, sessionID string, handle MessageHandler) {
	client := &Client{Hub: hub, Conn: c, SessionID: sessionID, Send: make(chan []byte, 256), handle: handle}
	if !hub.join(client) {
		c.Close()
		return
	}

	go client.writePump()
	client.readPump()
}
