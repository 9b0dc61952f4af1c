// internal/models/message.go
package models

import "github.com/shopspring/decimal"

// MessageType identifies a room protocol message.
type MessageType string

// Client -> server.
const (
	MsgCreateRoom      MessageType = "CREATE_ROOM"
	MsgGetRoomInfo     MessageType = "GET_ROOM_INFO"
	MsgJoinRoom        MessageType = "JOIN_ROOM"
	MsgHandshakeAccept MessageType = "HANDSHAKE_ACCEPT"
	MsgHandshakeReject MessageType = "HANDSHAKE_REJECT"
	MsgPlayerReady     MessageType = "PLAYER_READY"
)

// Server -> client.
const (
	MsgRoomCreated        MessageType = "ROOM_CREATED"
	MsgRoomInfoSuccess    MessageType = "ROOM_INFO_SUCCESS"
	MsgRoomInfoFailed     MessageType = "ROOM_INFO_FAILED"
	MsgRoomCreationFailed MessageType = "ROOM_CREATION_FAILED"
	MsgJoinRoomSuccess    MessageType = "JOIN_ROOM_SUCCESS"
	MsgJoinRoomFailed     MessageType = "JOIN_ROOM_FAILED"
	MsgGuestJoined        MessageType = "GUEST_JOINED"
	MsgHandshakeRequest   MessageType = "HANDSHAKE_REQUEST"
	MsgHandshakeAccepted  MessageType = "HANDSHAKE_ACCEPTED"
	MsgHandshakeRejected  MessageType = "HANDSHAKE_REJECTED"
	MsgHandshakeComplete  MessageType = "HANDSHAKE_COMPLETE"
	MsgTournamentStart    MessageType = "TOURNAMENT_START"
	MsgHostDisconnected   MessageType = "HOST_DISCONNECTED"
	MsgGuestDisconnected  MessageType = "GUEST_DISCONNECTED"
	MsgRoomExpired        MessageType = "ROOM_EXPIRED"
	MsgError              MessageType = "ERROR"
)

// Message is the single JSON envelope used in both directions.
// Only the fields relevant to a given Type are populated.
type Message struct {
	Type          MessageType      `json:"type"`
	RoomID        string           `json:"roomId,omitempty"`
	HostData      *RoomData        `json:"hostData,omitempty"`
	GuestData     *RoomData        `json:"guestData,omitempty"`
	Error         string           `json:"error,omitempty"`
	Reason        string           `json:"reason,omitempty"`
	RequiredStake *decimal.Decimal `json:"requiredStake,omitempty"`
	BetType       BetDirection     `json:"betType,omitempty"`
}
