// internal/room/errors.go
package room

import (
	"errors"
	"fmt"

	"github.com/jason-s-yu/tokenrivals/internal/models"
	"github.com/shopspring/decimal"
)

// Sentinel errors for protocol failures. These allow errors.Is from callers.
var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room is full")
	ErrStakeMismatch  = errors.New("stake mismatch")
	ErrBetMismatch    = errors.New("bet mismatch")
	ErrNotHost        = errors.New("only the host may do this")
	ErrRoomCollision  = errors.New("room id collision")
	ErrInvalidPayload = errors.New("invalid room data")
	ErrAlreadyInRoom  = errors.New("connection is already in a room")
	ErrNotMember      = errors.New("connection is not a member of this room")
	ErrNotHandshaking = errors.New("room has no pending handshake")
)

// ProtocolError pairs a sentinel with the text shown to the player.
type ProtocolError struct {
	Err error
	Msg string
}

func (e *ProtocolError) Error() string { return e.Msg }
func (e *ProtocolError) Unwrap() error { return e.Err }

func stakeMismatch(required decimal.Decimal) error {
	return &ProtocolError{Err: ErrStakeMismatch, Msg: fmt.Sprintf("Stake amount must be $%s", required.String())}
}

func betMismatch(required models.BetDirection) error {
	return &ProtocolError{
		Err: ErrBetMismatch,
		Msg: fmt.Sprintf("This room requires %s betting. Your bet will be automatically set to %s.", required, required),
	}
}

func invalidPayload(err error) error {
	return &ProtocolError{Err: ErrInvalidPayload, Msg: fmt.Sprintf("Invalid room data: %v", err)}
}

// playerText is the failure text sent over the wire.
func playerText(err error) string {
	var pe *ProtocolError
	switch {
	case errors.As(err, &pe):
		return pe.Msg
	case errors.Is(err, ErrRoomNotFound):
		return "Room not found"
	case errors.Is(err, ErrRoomFull):
		return "Room is full"
	case errors.Is(err, ErrRoomCollision):
		return "Room ID collision, please try again"
	default:
		return err.Error()
	}
}

// reasonOf maps an error to a short label for metrics and event logs.
func reasonOf(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return "not_found"
	case errors.Is(err, ErrRoomFull):
		return "full"
	case errors.Is(err, ErrStakeMismatch):
		return "stake_mismatch"
	case errors.Is(err, ErrBetMismatch):
		return "bet_mismatch"
	case errors.Is(err, ErrNotHost):
		return "not_host"
	case errors.Is(err, ErrRoomCollision):
		return "collision"
	case errors.Is(err, ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, ErrAlreadyInRoom):
		return "already_in_room"
	case errors.Is(err, ErrNotMember):
		return "not_member"
	case errors.Is(err, ErrNotHandshaking):
		return "not_handshaking"
	default:
		return "other"
	}
}
