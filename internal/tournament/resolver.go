// internal/tournament/resolver.go
package tournament

import "github.com/jason-s-yu/tokenrivals/internal/models"

// DetermineWinner scores both squads for the room's bet direction.
// LONG scores the raw change, SHORT scores its negation; the strictly higher
// score wins and equal scores tie. Final values are left for the caller.
func DetermineWinner(bet models.BetDirection, hostPct, guestPct float64) models.Result {
	hostScore, guestScore := hostPct, guestPct
	if bet == models.BetShort {
		hostScore, guestScore = -hostPct, -guestPct
	}

	winner := models.WinnerTie
	switch {
	case hostScore > guestScore:
		winner = models.WinnerHost
	case guestScore > hostScore:
		winner = models.WinnerGuest
	}

	return models.Result{
		Winner:                winner,
		HostScore:             hostScore,
		GuestScore:            guestScore,
		HostPercentageChange:  hostPct,
		GuestPercentageChange: guestPct,
	}
}
