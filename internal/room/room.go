// internal/room/room.go
package room

import (
	"time"

	"github.com/jason-s-yu/tokenrivals/internal/models"
	"github.com/shopspring/decimal"
)

// Status is the room lifecycle phase.
type Status string

const (
	StatusWaiting     Status = "waiting"
	StatusHandshaking Status = "handshaking"
	StatusAccepted    Status = "accepted"
	StatusTournament  Status = "tournament"
)

// Room is one head-to-head match. Guest fields stay nil until a join succeeds.
type Room struct {
	ID        string
	Host      *Connection
	Guest     *Connection
	HostData  *models.RoomData
	GuestData *models.RoomData
	Status    Status

	HostReady  bool
	GuestReady bool

	RequiredStake decimal.Decimal
	BetType       models.BetDirection
	CreatedAt     time.Time
}

func (r *Room) full() bool { return r.Guest != nil }

// clearGuest drops the guest and returns the room to waiting.
func (r *Room) clearGuest() {
	if r.Guest != nil {
		r.Guest.detach()
	}
	r.Guest = nil
	r.GuestData = nil
	r.Status = StatusWaiting
	r.HostReady = false
	r.GuestReady = false
}

// Info is a read-only view of a room.
type Info struct {
	ID            string
	Status        Status
	HasGuest      bool
	HostReady     bool
	GuestReady    bool
	RequiredStake decimal.Decimal
	BetType       models.BetDirection
	CreatedAt     time.Time
}

func (r *Room) info() Info {
	return Info{
		ID:            r.ID,
		Status:        r.Status,
		HasGuest:      r.Guest != nil,
		HostReady:     r.HostReady,
		GuestReady:    r.GuestReady,
		RequiredStake: r.RequiredStake,
		BetType:       r.BetType,
		CreatedAt:     r.CreatedAt,
	}
}
