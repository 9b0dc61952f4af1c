// internal/tournament/valuation.go
package tournament

import (
	"strings"
	"time"

	"github.com/jason-s-yu/tokenrivals/internal/models"
)

// ComputeSquadValue values one unit of each drafted token at the given quotes.
// Tokens without a quote contribute nothing and are left out of TokenValues.
func ComputeSquadValue(squad models.Squad, quotes []models.Quote) models.SquadValue {
	bySymbol := make(map[string]float64, len(quotes))
	for _, q := range quotes {
		bySymbol[strings.ToUpper(q.Symbol)] = q.Price
	}

	v := models.SquadValue{
		TokenValues: make(map[string]float64, len(squad)),
		Timestamp:   time.Now(),
	}
	for _, slot := range squad {
		price, ok := bySymbol[strings.ToUpper(slot.Token.Symbol)]
		if !ok {
			continue
		}
		v.TokenValues[slot.Token.FeedKey()] = price
		v.TotalValue += price
	}
	return v
}

// PercentageChange is (final-initial)/initial*100, or 0 when initial is 0.
func PercentageChange(initial, final float64) float64 {
	if initial == 0 {
		return 0
	}
	return (final - initial) / initial * 100
}
