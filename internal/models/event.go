// internal/models/event.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomEventType names a room lifecycle transition recorded in the event history.
type RoomEventType string

const (
	EventRoomCreated       RoomEventType = "room_created"
	EventGuestJoined       RoomEventType = "guest_joined"
	EventHandshakeAccepted RoomEventType = "handshake_accepted"
	EventHandshakeRejected RoomEventType = "handshake_rejected"
	EventTournamentStarted RoomEventType = "tournament_started"
	EventHostDisconnected  RoomEventType = "host_disconnected"
	EventGuestDisconnected RoomEventType = "guest_disconnected"
	EventRoomExpired       RoomEventType = "room_expired"
	EventTournamentResult  RoomEventType = "tournament_result"
	EventSettlement        RoomEventType = "settlement"
)

// Closes reports whether the event ends the room's life.
func (t RoomEventType) Closes() bool {
	return t == EventHostDisconnected || t == EventRoomExpired
}

// RoomEvent is the minimal record shipped to the historian.
type RoomEvent struct {
	ID        uuid.UUID              `json:"id"`
	RoomID    string                 `json:"room_id"`
	Type      RoomEventType          `json:"event_type"`
	ConnID    uuid.UUID              `json:"conn_id"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp int64                  `json:"timestamp"` // epoch millis
}

// NewRoomEvent stamps an event with a fresh id and the current time.
func NewRoomEvent(roomID string, typ RoomEventType, connID uuid.UUID, payload map[string]interface{}) RoomEvent {
	return RoomEvent{
		ID:        uuid.New(),
		RoomID:    roomID,
		Type:      typ,
		ConnID:    connID,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
}
