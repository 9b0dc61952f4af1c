// Package settlement is the boundary to the escrow contract that holds
// stakes and pays the winner. Game results never depend on it.
package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ZeroAddress marks a native-currency escrow.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// Tournament ids are five digit numbers.
const (
	minTournamentID = 10000
	maxTournamentID = 99999
)

var (
	ErrInvalidAddress     = errors.New("invalid address")
	ErrBadChecksum        = errors.New("address checksum mismatch")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrTournamentExists   = errors.New("tournament already exists")
	ErrNotParticipant     = errors.New("address is not a participant")
	ErrAlreadyDeposited   = errors.New("stake already deposited")
	ErrDepositsIncomplete = errors.New("both participants must deposit first")
	ErrAlreadyCompleted   = errors.New("tournament already completed")
	ErrNothingToWithdraw  = errors.New("nothing to withdraw")
	ErrRelay              = errors.New("settlement relay error")
)

// Created is returned when a tournament is opened on chain.
type Created struct {
	TournamentID uint64
	TxHash       string
}

type Receipt struct {
	TxHash string
}

// Tournament mirrors the contract's tournament record. Amounts are in whole
// currency units, not wei.
type Tournament struct {
	ID           uint64
	Participant1 string
	Participant2 string
	Token1       string
	Token2       string
	Winner       string
	Amount1      decimal.Decimal
	Amount2      decimal.Decimal
	IsCompleted  bool
	Timestamp    time.Time
}

// Escrow is one participant's deposit.
type Escrow struct {
	Participant string
	Token       string
	Amount      decimal.Decimal
	IsDeposited bool
	IsWithdrawn bool
}

// Contract is the escrow contract as seen by one wallet. Calls that move
// funds act on behalf of that wallet.
type Contract interface {
	CreateTournament(ctx context.Context, participant1, participant2 string) (Created, error)
	DepositStake(ctx context.Context, tournamentID uint64, amount decimal.Decimal) (Receipt, error)
	CheckDeposit(ctx context.Context, tournamentID uint64, address string) (Escrow, error)
	AnnounceWinner(ctx context.Context, tournamentID uint64, winner string) (Receipt, error)
	GetTournament(ctx context.Context, tournamentID uint64) (Tournament, error)
	BothDeposited(ctx context.Context, tournamentID uint64) (bool, error)
	EmergencyWithdraw(ctx context.Context, tournamentID uint64) (Receipt, error)
}
