// cmd/rivals/player.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tokenrivals/internal/client"
	"github.com/jason-s-yu/tokenrivals/internal/models"
	"github.com/jason-s-yu/tokenrivals/internal/room"
	"github.com/jason-s-yu/tokenrivals/internal/tournament"
	"github.com/sirupsen/logrus"
)

var errRoomFailed = errors.New("room failed")

// match is what one player saw of a finished room.
type match struct {
	RoomID string
	IsHost bool
	Host   *models.RoomData
	Guest  *models.RoomData
	Result models.Result
}

// player drives one side of a room from connect to result. Hosts accept
// the first challenger; guests adopt the room's stake and bet.
type player struct {
	rc       *client.RoomClient
	data     *models.RoomData
	joinCode string
	engine   *tournament.Engine
	escrow   *escrowSession
	sink     room.EventSink
	logger   *logrus.Entry
	out      io.Writer
}

func (p *player) play(ctx context.Context) (match, error) {
	m := match{IsHost: p.joinCode == ""}
	results := make(chan models.Result, 1)
	p.engine.OnProgress = func(pr models.Progress) {
		fmt.Fprintf(p.out, "[%3ds] host %+.4f%%  guest %+.4f%%\n",
			int(pr.TimeRemaining.Seconds()), pr.HostPercentageChange, pr.GuestPercentageChange)
	}
	p.engine.OnComplete = func(r models.Result) { results <- r }
	defer p.engine.Stop()

	requested := false
	for {
		select {
		case <-ctx.Done():
			return m, ctx.Err()
		case r := <-results:
			m.Result = r
			p.report(ctx, m)
			return m, nil
		case ev := <-p.rc.Events():
			switch ev.Type {
			case client.EventConnectionLost:
				return m, ev.Err
			case client.EventConnected:
				if requested {
					continue
				}
				requested = true
				var err error
				if m.IsHost {
					err = p.rc.CreateRoom(ctx, p.data)
				} else {
					err = p.rc.GetRoomInfo(ctx, p.joinCode)
				}
				if err != nil {
					return m, err
				}
			case client.EventMessage:
				if err := p.onMessage(ctx, ev, &m); err != nil {
					return m, err
				}
			}
		}
	}
}

func (p *player) onMessage(ctx context.Context, ev client.Event, m *match) error {
	msg := ev.Message
	// Once scoring runs, a departing peer no longer matters here.
	if ev.State == client.StateError && p.engine.State() != tournament.StateRunning {
		return fmt.Errorf("%w: %s", errRoomFailed, p.rc.Snapshot().Error)
	}

	switch msg.Type {
	case models.MsgRoomCreated:
		m.RoomID = msg.RoomID
		fmt.Fprintf(p.out, "room %s open, waiting for a challenger\n", msg.RoomID)

	case models.MsgRoomInfoSuccess:
		if msg.RequiredStake == nil {
			return fmt.Errorf("%w: room info without stake", errRoomFailed)
		}
		if p.data.Bet != msg.BetType {
			p.logger.Infof("room requires %s betting, switching from %s", msg.BetType, p.data.Bet)
			p.data.Bet = msg.BetType
		}
		if !p.data.Stake.Equal(*msg.RequiredStake) {
			p.logger.Infof("room stake is %s, matching it", msg.RequiredStake)
			p.data.Stake = *msg.RequiredStake
		}
		return p.rc.JoinRoom(ctx, msg.RoomID, p.data)

	case models.MsgRoomInfoFailed:
		return fmt.Errorf("%w: %s", errRoomFailed, msg.Error)

	case models.MsgJoinRoomSuccess:
		m.RoomID = msg.RoomID
		fmt.Fprintf(p.out, "joined room %s, waiting for the host\n", msg.RoomID)

	case models.MsgHandshakeRequest:
		fmt.Fprintf(p.out, "challenger arrived with %d tokens, accepting\n", len(msg.GuestData.SelectedPlayers))
		return p.rc.AcceptHandshake(ctx, msg.RoomID)

	case models.MsgHandshakeAccepted, models.MsgHandshakeComplete:
		return p.rc.SetPlayerReady(ctx, msg.RoomID)

	case models.MsgTournamentStart:
		if msg.HostData == nil || msg.GuestData == nil {
			return fmt.Errorf("%w: tournament start without squads", errRoomFailed)
		}
		m.Host, m.Guest = msg.HostData, msg.GuestData
		fmt.Fprintf(p.out, "tournament started: %s %s\n", msg.HostData.Bet, msg.HostData.Stake)
		if err := p.engine.Start(ctx, msg.HostData.Bet, msg.HostData.SelectedPlayers, msg.GuestData.SelectedPlayers); err != nil {
			return err
		}
		if p.escrow != nil && m.IsHost {
			p.escrow.Open(ctx, msg.HostData.Stake, msg.HostData.WalletAddress, msg.GuestData.WalletAddress)
		}

	case models.MsgError:
		p.logger.Warnf("server error: %s", msg.Error)
	}
	return nil
}

// report prints the result and, for the host, publishes it and settles.
func (p *player) report(ctx context.Context, m match) {
	r := m.Result
	fmt.Fprintf(p.out, "result: %s wins (host %.4f, guest %.4f)\n", r.Winner, r.HostScore, r.GuestScore)
	if !m.IsHost {
		return
	}
	p.publish(ctx, m.RoomID, models.EventTournamentResult, map[string]interface{}{
		"winner":      string(r.Winner),
		"hostScore":   r.HostScore,
		"guestScore":  r.GuestScore,
		"hostChange":  r.HostPercentageChange,
		"guestChange": r.GuestPercentageChange,
	})
	if p.escrow == nil || m.Host == nil || m.Guest == nil {
		return
	}

	out, err := p.escrow.Settle(ctx, r, m.Host.WalletAddress, m.Guest.WalletAddress)
	payload := map[string]interface{}{"winner": string(r.Winner)}
	switch {
	case err != nil:
		payload["error"] = err.Error()
		fmt.Fprintf(p.out, "settlement failed: %v\n", err)
	case out.Skipped:
		payload["skipped"] = true
		fmt.Fprintln(p.out, "settlement skipped: tie")
	case out.Err != nil:
		payload["tournamentId"] = out.TournamentID
		payload["error"] = out.Err.Error()
		fmt.Fprintf(p.out, "settlement failed: %v\n", out.Err)
	default:
		payload["tournamentId"] = out.TournamentID
		payload["txHash"] = out.TxHash
		fmt.Fprintf(p.out, "winner paid, tx %s\n", out.TxHash)
	}
	p.publish(ctx, m.RoomID, models.EventSettlement, payload)
}

func (p *player) publish(ctx context.Context, roomID string, typ models.RoomEventType, payload map[string]interface{}) {
	if p.sink == nil || roomID == "" {
		return
	}
	if err := p.sink.Publish(ctx, models.NewRoomEvent(roomID, typ, uuid.Nil, payload)); err != nil {
		p.logger.Warnf("publish %s: %v", typ, err)
	}
}
