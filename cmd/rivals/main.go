// cmd/rivals/main.go is a headless player: it hosts or joins a room, plays
// the tournament against live prices and prints the result.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/tokenrivals/internal/cache"
	"github.com/jason-s-yu/tokenrivals/internal/client"
	"github.com/jason-s-yu/tokenrivals/internal/config"
	"github.com/jason-s-yu/tokenrivals/internal/pricefeed"
	"github.com/jason-s-yu/tokenrivals/internal/settlement"
	"github.com/jason-s-yu/tokenrivals/internal/tournament"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	var (
		join      = flag.String("join", "", "room code to join; empty hosts a new room")
		bet       = flag.String("bet", "LONG", "LONG or SHORT; guests adopt the room's bet")
		stake     = flag.String("stake", "0", "stake amount; guests adopt the room's stake")
		formation = flag.String("formation", "2-2-1", "squad formation")
		tokens    = flag.String("tokens", "BTC,ETH,SOL,ARB,OP", "comma separated token symbols")
		wallet    = flag.String("wallet", "", "payout wallet address")
		settle    = flag.Bool("settle", false, "open escrow and announce the winner (host only)")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := cfg.Logger()
	log := logrus.NewEntry(logger)

	data, err := buildRoomData(*formation, *tokens, *bet, *stake, *wallet)
	if err != nil {
		logger.Fatalf("squad: %v", err)
	}

	prices := pricefeed.NewClient(
		pricefeed.NewHermesProvider(cfg.HermesURL),
		nil,
		pricefeed.WithCacheWindow(cfg.PriceCacheWindow),
		pricefeed.WithLogger(log),
	)
	engine := tournament.NewEngine(prices,
		tournament.WithDuration(cfg.TournamentDuration),
		tournament.WithInterval(cfg.TickInterval),
		tournament.WithLogger(log),
	)

	rc := client.NewRoomClient(cfg.ServerURL,
		client.WithLogger(log),
		client.WithBackoff(client.Backoff{
			Base:        cfg.ReconnectBaseDelay,
			Max:         cfg.ReconnectMaxDelay,
			MaxAttempts: cfg.ReconnectAttempts,
		}),
	)
	defer rc.Close()

	p := &player{
		rc:       rc,
		data:     data,
		joinCode: *join,
		engine:   engine,
		logger:   log,
		out:      os.Stdout,
	}

	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Warnf("redis unavailable, results will not be recorded: %v", err)
		} else {
			defer rdb.Close()
			p.sink = cache.NewEventQueue(rdb, cfg.EventQueue)
		}
	}

	if *settle && *join == "" {
		p.escrow, err = openContract(cfg, *wallet, log)
		if err != nil {
			logger.Fatalf("settlement: %v", err)
		}
	}

	if err := rc.Connect(ctx); err != nil {
		logger.Warnf("initial connect failed, retrying: %v", err)
	}
	if _, err := p.play(ctx); err != nil {
		logger.Fatalf("match ended: %v", err)
	}
}

// openContract picks the relay when configured, else an in-process ledger
// that also deposits for the guest.
func openContract(cfg *config.Config, wallet string, log *logrus.Entry) (*escrowSession, error) {
	if cfg.SettlementURL != "" {
		c, err := settlement.NewHTTPContract(cfg.SettlementURL, cfg.SettlementSecret, wallet)
		if err != nil {
			return nil, err
		}
		return newEscrowSession(c, log), nil
	}
	mem, err := settlement.NewMemoryContract(wallet)
	if err != nil {
		return nil, err
	}
	e := newEscrowSession(mem, log)
	e.counterparty = func(addr string) (settlement.Contract, error) { return mem.As(addr) }
	return e, nil
}
