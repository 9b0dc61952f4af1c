// cmd/rivals/escrow.go
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jason-s-yu/tokenrivals/internal/models"
	"github.com/jason-s-yu/tokenrivals/internal/settlement"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const escrowTimeout = time.Minute

// escrowSession opens the on-chain tournament while scoring runs and
// announces the winner afterwards.
type escrowSession struct {
	contract settlement.Contract
	settler  *settlement.Settler
	logger   *logrus.Entry
	// counterparty, when set, deposits for the guest too. Only the
	// in-process ledger can do that.
	counterparty func(wallet string) (settlement.Contract, error)

	ready chan struct{}
	id    uint64
	err   error
}

func newEscrowSession(c settlement.Contract, logger *logrus.Entry) *escrowSession {
	return &escrowSession{
		contract: c,
		settler:  settlement.NewSettler(c, logger),
		logger:   logger,
		ready:    make(chan struct{}),
	}
}

// Open creates the tournament and deposits stakes in the background.
func (e *escrowSession) Open(ctx context.Context, stake decimal.Decimal, hostWallet, guestWallet string) {
	go func() {
		defer close(e.ready)
		cctx, cancel := context.WithTimeout(ctx, escrowTimeout)
		defer cancel()

		created, err := e.contract.CreateTournament(cctx, hostWallet, guestWallet)
		if err != nil {
			e.err = fmt.Errorf("create tournament: %w", err)
			return
		}
		e.id = created.TournamentID
		log := e.logger.WithField("tournament", e.id)
		log.WithField("tx", created.TxHash).Info("escrow opened")

		if !stake.IsPositive() {
			return
		}
		if _, err := e.contract.DepositStake(cctx, e.id, stake); err != nil {
			e.err = fmt.Errorf("deposit host stake: %w", err)
			return
		}
		if e.counterparty == nil {
			return
		}
		guest, err := e.counterparty(guestWallet)
		if err != nil {
			e.err = fmt.Errorf("guest wallet: %w", err)
			return
		}
		if _, err := guest.DepositStake(cctx, e.id, stake); err != nil {
			e.err = fmt.Errorf("deposit guest stake: %w", err)
			return
		}
		log.Info("both stakes deposited")
	}()
}

// Settle waits for Open to finish, then announces the winner.
func (e *escrowSession) Settle(ctx context.Context, result models.Result, hostWallet, guestWallet string) (settlement.Outcome, error) {
	select {
	case <-e.ready:
	case <-ctx.Done():
		return settlement.Outcome{}, ctx.Err()
	}
	if e.err != nil {
		return settlement.Outcome{}, e.err
	}
	e.settler.SettleAsync(ctx, e.id, result, hostWallet, guestWallet)
	select {
	case out := <-e.settler.Outcomes():
		return out, nil
	case <-ctx.Done():
		return settlement.Outcome{}, ctx.Err()
	}
}
