// cmd/rivals/squad.go
package main

import (
	"fmt"
	"strings"

	"github.com/jason-s-yu/tokenrivals/internal/models"
	"github.com/jason-s-yu/tokenrivals/internal/pricefeed"
	"github.com/shopspring/decimal"
)

// positionOrder is the order tokens are drafted into a formation.
var positionOrder = []models.Position{
	models.PositionDefender,
	models.PositionMidfielder,
	models.PositionStriker,
}

// buildSquad drafts symbols into formation slots, defenders first.
func buildSquad(formation models.Formation, symbols []string) (models.Squad, error) {
	layout, ok := models.Formations[formation]
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownFormation, formation)
	}

	var slots []models.SquadSlot
	for _, pos := range positionOrder {
		for i := 1; i <= layout[pos]; i++ {
			slots = append(slots, models.SquadSlot{
				SlotID:   fmt.Sprintf("%s-%d", strings.ToLower(string(pos)), i),
				Position: pos,
			})
		}
	}
	if len(symbols) > len(slots) {
		return nil, fmt.Errorf("formation %s has %d slots, got %d tokens", formation, len(slots), len(symbols))
	}

	var squad models.Squad
	for i, sym := range symbols {
		tok, ok := pricefeed.TokenBySymbol(strings.ToUpper(sym))
		if !ok {
			return nil, fmt.Errorf("unknown token %q", sym)
		}
		slot := slots[i]
		slot.Token = tok
		var err error
		if squad, err = squad.AddSlot(slot); err != nil {
			return nil, fmt.Errorf("draft %s: %w", tok.Symbol, err)
		}
	}
	return squad, nil
}

func buildRoomData(formation, tokens, bet, stake, wallet string) (*models.RoomData, error) {
	var symbols []string
	for _, s := range strings.Split(tokens, ",") {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, s)
		}
	}
	squad, err := buildSquad(models.Formation(formation), symbols)
	if err != nil {
		return nil, err
	}
	amount, err := decimal.NewFromString(stake)
	if err != nil {
		return nil, fmt.Errorf("stake %q: %w", stake, err)
	}
	data := &models.RoomData{
		SelectedPlayers: squad,
		Formation:       models.Formation(formation),
		Bet:             models.BetDirection(strings.ToUpper(bet)),
		Stake:           amount,
		WalletAddress:   wallet,
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	return data, nil
}
