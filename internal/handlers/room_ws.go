// internal/handlers/room_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/tokenrivals/internal/middleware"
	"github.com/jason-s-yu/tokenrivals/internal/room"
	"github.com/sirupsen/logrus"
)

const (
	// Subprotocol is the optional websocket subprotocol clients may offer.
	Subprotocol = "rivals"

	readLimit    = 64 << 10
	pingInterval = 30 * time.Second
	writeTimeout = 5 * time.Second
)

// RoomWSHandler upgrades the request and binds the socket to the registry
// until either side closes.
func RoomWSHandler(logger *logrus.Logger, reg *room.Registry, originPatterns []string) http.HandlerFunc {
	if len(originPatterns) == 0 {
		originPatterns = []string{"*"}
	}
	return func(w http.ResponseWriter, r *http.Request) {
		remoteAddr := r.RemoteAddr

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{Subprotocol},
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		// Clients may connect without a subprotocol; one that asks for another is refused.
		if r.Header.Get("Sec-WebSocket-Protocol") != "" && c.Subprotocol() != Subprotocol {
			c.Close(BadSubprotocolError, "client must speak the rivals subprotocol")
			return
		}
		c.SetReadLimit(readLimit)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		conn := reg.Connect(remoteAddr)
		middleware.LogWebSocketConnect(logger, remoteAddr, r.URL.Path)

		go writePump(ctx, c, conn, logger)
		readErr := readPump(ctx, c, reg, conn, logger)

		reg.Disconnect(conn)
		middleware.LogWebSocketDisconnect(logger, remoteAddr, r.URL.Path, readErr)
	}
}

// readPump feeds inbound text frames to the registry until the socket fails.
// Normal closures return nil.
func readPump(ctx context.Context, c *websocket.Conn, reg *room.Registry, conn *room.Connection, logger *logrus.Logger) error {
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			logger.Warnf("conn %s: ignoring non-text frame type %d", conn.ID, typ)
			continue
		}
		reg.HandleRaw(conn, msg)
	}
}

// writePump drains the connection's queue and keeps the socket alive with pings.
func writePump(ctx context.Context, c *websocket.Conn, conn *room.Connection, logger *logrus.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-conn.OutChan:
			data, err := json.Marshal(msg)
			if err != nil {
				logger.Warnf("conn %s: failed to marshal %s: %v", conn.ID, msg.Type, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("conn %s: write failed: %v", conn.ID, err)
				c.Close(websocket.StatusGoingAway, "write failed")
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("conn %s: ping failed, assuming disconnect: %v", conn.ID, err)
				c.Close(websocket.StatusGoingAway, "ping failed")
				return
			}
		}
	}
}
