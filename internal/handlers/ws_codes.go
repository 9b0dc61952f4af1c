// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom WebSocket close codes used by the room handler.
const (
	BadSubprotocolError websocket.StatusCode = 3000 // Client offered subprotocols but not "rivals".
)
