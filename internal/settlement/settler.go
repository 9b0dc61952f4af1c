// internal/settlement/settler.go
package settlement

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jason-s-yu/tokenrivals/internal/models"
	"github.com/sirupsen/logrus"
)

const defaultSettleTimeout = 2 * time.Minute

var ErrMissingWallet = errors.New("winner has no wallet address")

// Outcome reports what happened to one settlement attempt.
type Outcome struct {
	TournamentID  uint64
	Winner        models.Winner
	WinnerAddress string
	TxHash        string
	Skipped       bool
	Err           error
}

// Settler announces winners in the background. Failures are reported on
// Outcomes and logged; they never touch the computed result.
type Settler struct {
	contract Contract
	logger   *logrus.Entry
	timeout  time.Duration
	outcomes chan Outcome
	wg       sync.WaitGroup
}

func NewSettler(c Contract, logger *logrus.Entry) *Settler {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Settler{
		contract: c,
		logger:   logger.WithField("component", "settler"),
		timeout:  defaultSettleTimeout,
		outcomes: make(chan Outcome, 16),
	}
}

func (s *Settler) Outcomes() <-chan Outcome { return s.outcomes }

// SettleAsync returns immediately. A tie announces nothing.
func (s *Settler) SettleAsync(ctx context.Context, tournamentID uint64, result models.Result, hostWallet, guestWallet string) {
	out := Outcome{TournamentID: tournamentID, Winner: result.Winner}
	switch result.Winner {
	case models.WinnerHost:
		out.WinnerAddress = hostWallet
	case models.WinnerGuest:
		out.WinnerAddress = guestWallet
	default:
		out.Skipped = true
		s.logger.WithField("tournament", tournamentID).Info("tie, no winner to announce")
		s.deliver(out)
		return
	}
	if out.WinnerAddress == "" {
		out.Err = ErrMissingWallet
		s.logger.WithField("tournament", tournamentID).Warn("winner has no wallet, skipping settlement")
		s.deliver(out)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		log := s.logger.WithFields(logrus.Fields{"tournament": tournamentID, "winner": out.WinnerAddress})
		receipt, err := s.contract.AnnounceWinner(cctx, tournamentID, out.WinnerAddress)
		if err != nil {
			out.Err = err
			log.Errorf("announce winner failed: %v", err)
		} else {
			out.TxHash = receipt.TxHash
			log.WithField("tx", receipt.TxHash).Info("winner announced")
		}
		s.deliver(out)
	}()
}

// Wait blocks until in-flight settlements finish.
func (s *Settler) Wait() { s.wg.Wait() }

func (s *Settler) deliver(o Outcome) {
	select {
	case s.outcomes <- o:
	default:
		s.logger.Warnf("outcome buffer full, dropping settlement outcome for %d", o.TournamentID)
	}
}
