// internal/room/dispatch.go
package room

import (
	"encoding/json"
	"fmt"

	"github.com/jason-s-yu/tokenrivals/internal/models"
)

// HandleRaw decodes one inbound text frame and dispatches it. Malformed JSON
// is answered with an ERROR frame to the sender only.
func (r *Registry) HandleRaw(conn *Connection, data []byte) {
	var msg models.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		r.logger.WithField("conn", conn.ID).WithError(err).Warn("invalid json")
		r.countFailure("invalid_json")
		conn.WriteError("Invalid JSON format")
		return
	}
	r.Handle(conn, msg)
}

// Handle routes a decoded message to the matching registry operation.
func (r *Registry) Handle(conn *Connection, msg models.Message) {
	r.countMessage(msg.Type)

	switch msg.Type {
	case models.MsgCreateRoom:
		_ = r.CreateRoom(conn, msg.HostData)
	case models.MsgGetRoomInfo:
		_ = r.GetRoomInfo(conn, msg.RoomID)
	case models.MsgJoinRoom:
		_ = r.JoinRoom(conn, msg.RoomID, msg.GuestData)
	case models.MsgHandshakeAccept:
		_ = r.AcceptHandshake(conn, msg.RoomID)
	case models.MsgHandshakeReject:
		_ = r.RejectHandshake(conn, msg.RoomID, msg.Reason)
	case models.MsgPlayerReady:
		_ = r.SetPlayerReady(conn, msg.RoomID)
	default:
		r.logger.WithField("conn", conn.ID).Warnf("unknown message type %q", msg.Type)
		r.countFailure("unknown_type")
		conn.WriteError(fmt.Sprintf("Unknown message type: %s", msg.Type))
	}
}

func (r *Registry) countMessage(t models.MessageType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer.MessageHandled(t)
}

func (r *Registry) countFailure(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer.Failure(reason)
}
