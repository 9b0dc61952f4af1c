// internal/models/tournament.go
package models

import "time"

// Quote is a single asset price sampled from the feed.
type Quote struct {
	Symbol      string    `json:"symbol"`
	PriceFeedID string    `json:"priceFeedId"`
	Price       float64   `json:"price"`
	Timestamp   time.Time `json:"timestamp"`
}

// SquadValue is a squad valued against one price snapshot.
// TokenValues is keyed by the token's price feed id.
type SquadValue struct {
	TotalValue  float64            `json:"totalValue"`
	TokenValues map[string]float64 `json:"tokenValues"`
	Timestamp   time.Time          `json:"timestamp"`
}

// Progress is the latest live snapshot of a running tournament.
type Progress struct {
	HostSquad             SquadValue    `json:"hostSquad"`
	GuestSquad            SquadValue    `json:"guestSquad"`
	HostPercentageChange  float64       `json:"hostPercentageChange"`
	GuestPercentageChange float64       `json:"guestPercentageChange"`
	Timestamp             time.Time     `json:"timestamp"`
	TimeRemaining         time.Duration `json:"timeRemaining"`
}

// Winner tags the outcome of a tournament.
type Winner string

const (
	WinnerHost  Winner = "host"
	WinnerGuest Winner = "guest"
	WinnerTie   Winner = "tie"
)

// Result is the final outcome of one tournament run.
type Result struct {
	Winner                Winner  `json:"winner"`
	HostScore             float64 `json:"hostScore"`
	GuestScore            float64 `json:"guestScore"`
	HostPercentageChange  float64 `json:"hostPercentageChange"`
	GuestPercentageChange float64 `json:"guestPercentageChange"`
	FinalHostValue        float64 `json:"finalHostValue"`
	FinalGuestValue       float64 `json:"finalGuestValue"`
}
