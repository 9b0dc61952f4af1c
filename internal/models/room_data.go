// internal/models/room_data.go
package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxSquadSize is the number of slots every formation fills.
const MaxSquadSize = 5

var (
	ErrInvalidBet       = errors.New("bet must be LONG or SHORT")
	ErrNegativeStake    = errors.New("stake must not be negative")
	ErrSquadTooLarge    = fmt.Errorf("squad cannot hold more than %d tokens", MaxSquadSize)
	ErrDuplicateToken   = errors.New("token already occupies a slot in this squad")
	ErrMissingToken     = errors.New("squad slot has no token")
	ErrUnknownFormation = errors.New("unknown formation")
	ErrPositionFull     = errors.New("formation has no free slot for this position")
)

// BetDirection is the wager orientation shared by both players in a room.
type BetDirection string

const (
	BetLong  BetDirection = "LONG"
	BetShort BetDirection = "SHORT"
)

// Valid reports whether b is one of the known directions.
func (b BetDirection) Valid() bool {
	return b == BetLong || b == BetShort
}

// Position is the squad role a token is drafted into.
type Position string

const (
	PositionStriker    Position = "ST"
	PositionMidfielder Position = "MF"
	PositionDefender   Position = "CB"
)

// Token is a reference to a tradable asset and the price feed that quotes it.
type Token struct {
	Symbol      string `json:"symbol"`
	Name        string `json:"name,omitempty"`
	PriceFeedID string `json:"priceFeedId"`
}

// FeedKey returns the feed id in the form used for lookups: lower case, no 0x prefix.
func (t Token) FeedKey() string {
	return NormalizeFeedID(t.PriceFeedID)
}

// NormalizeFeedID strips an optional 0x prefix and lower-cases the id.
// Feed providers are inconsistent about the prefix.
func NormalizeFeedID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	return strings.TrimPrefix(id, "0x")
}

// SquadSlot is one drafted position in a squad.
type SquadSlot struct {
	SlotID   string   `json:"slotId"`
	Position Position `json:"position"`
	Token    Token    `json:"token"`
}

// Squad is the set of tokens a player competes with. Slot order carries no meaning.
type Squad []SquadSlot

// Contains reports whether the given token symbol already occupies a slot.
func (s Squad) Contains(symbol string) bool {
	for _, slot := range s {
		if strings.EqualFold(slot.Token.Symbol, symbol) {
			return true
		}
	}
	return false
}

// AddSlot drafts a token into a slot, replacing whatever the slot held before.
// The same token may not be drafted twice.
func (s Squad) AddSlot(slot SquadSlot) (Squad, error) {
	if slot.Token.Symbol == "" {
		return s, ErrMissingToken
	}
	out := make(Squad, 0, len(s)+1)
	for _, existing := range s {
		if existing.SlotID == slot.SlotID {
			continue
		}
		if strings.EqualFold(existing.Token.Symbol, slot.Token.Symbol) {
			return s, ErrDuplicateToken
		}
		out = append(out, existing)
	}
	if len(out) >= MaxSquadSize {
		return s, ErrSquadTooLarge
	}
	return append(out, slot), nil
}

// RemoveSlot drops the slot with the given id, if present.
func (s Squad) RemoveSlot(slotID string) Squad {
	out := make(Squad, 0, len(s))
	for _, slot := range s {
		if slot.SlotID != slotID {
			out = append(out, slot)
		}
	}
	return out
}

// Validate checks the squad invariants enforced at selection time.
func (s Squad) Validate() error {
	if len(s) > MaxSquadSize {
		return ErrSquadTooLarge
	}
	seen := make(map[string]struct{}, len(s))
	for _, slot := range s {
		sym := strings.ToUpper(slot.Token.Symbol)
		if sym == "" {
			return ErrMissingToken
		}
		if _, dup := seen[sym]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateToken, sym)
		}
		seen[sym] = struct{}{}
	}
	return nil
}

// Formation names a squad layout, e.g. "2-2-1" (defenders-midfielders-strikers).
type Formation string

// FormationLayout is the number of slots per position in a formation.
type FormationLayout map[Position]int

// Formations lists the layouts a player can pick from.
var Formations = map[Formation]FormationLayout{
	"2-2-1": {PositionStriker: 1, PositionMidfielder: 2, PositionDefender: 2},
	"0-2-3": {PositionStriker: 3, PositionMidfielder: 2},
	"3-2-0": {PositionMidfielder: 2, PositionDefender: 3},
	"0-0-5": {PositionStriker: 5},
}

// CheckFormation verifies that a squad does not overfill any position of the formation.
// A partially filled formation is acceptable.
func (s Squad) CheckFormation(f Formation) error {
	layout, ok := Formations[f]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFormation, f)
	}
	counts := make(map[Position]int)
	for _, slot := range s {
		counts[slot.Position]++
		if counts[slot.Position] > layout[slot.Position] {
			return fmt.Errorf("%w: %s in %s", ErrPositionFull, slot.Position, f)
		}
	}
	return nil
}

// RoomData is the payload a host creates a room with, or a guest joins with.
type RoomData struct {
	SelectedPlayers Squad           `json:"selectedPlayers"`
	Formation       Formation       `json:"formation"`
	Bet             BetDirection    `json:"bet"`
	Stake           decimal.Decimal `json:"stake"`

	// WalletAddress is where winnings are paid out; optional until settlement.
	WalletAddress string `json:"walletAddress,omitempty"`
}

// Validate rejects payloads the registry should not forward.
func (d *RoomData) Validate() error {
	if d == nil {
		return errors.New("missing room data")
	}
	if !d.Bet.Valid() {
		return fmt.Errorf("%w: got %q", ErrInvalidBet, d.Bet)
	}
	if d.Stake.IsNegative() {
		return ErrNegativeStake
	}
	if len(d.SelectedPlayers) > MaxSquadSize {
		return ErrSquadTooLarge
	}
	for _, slot := range d.SelectedPlayers {
		if slot.Token.Symbol == "" {
			return ErrMissingToken
		}
	}
	return nil
}
