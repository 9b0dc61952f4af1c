// internal/database/room_events.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/tokenrivals/internal/models"
)

// EventStore persists the room event stream and keeps a per-room summary row.
type EventStore struct {
	pool *pgxpool.Pool
}

func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// InsertBatch writes events in a single transaction. Replayed events are ignored.
func (s *EventStore) InsertBatch(ctx context.Context, events []models.RoomEvent) error {
	if len(events) == 0 {
		return nil
	}
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, ev := range events {
			if err := insertRoomEventTx(ctx, tx, ev); err != nil {
				return fmt.Errorf("insert event %s: %w", ev.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx insert room events: %w", err)
	}
	return nil
}

// AbandonStale marks rooms that saw no event since cutoff and are still open.
func (s *EventStore) AbandonStale(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE rooms
		SET status = 'abandoned', closed_at = NOW()
		WHERE closed_at IS NULL AND status <> 'completed' AND updated_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("abandon stale rooms: %w", err)
	}
	return tag.RowsAffected(), nil
}

func insertRoomEventTx(ctx context.Context, tx pgx.Tx, ev models.RoomEvent) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return err
	}
	at := time.UnixMilli(ev.Timestamp).UTC()

	tag, err := tx.Exec(ctx, `
		INSERT INTO room_events (id, room_id, event_type, conn_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, ev.ID, ev.RoomID, string(ev.Type), ev.ConnID, payload, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	sum, ok := summarize(ev)
	if !ok {
		return nil
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO rooms (id, status, required_stake, bet_type, winner, created_at, updated_at, closed_at)
		VALUES ($1, $2, $3::text::numeric, $4, $5, $6, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			status         = CASE WHEN rooms.status = 'completed' THEN rooms.status ELSE EXCLUDED.status END,
			updated_at     = EXCLUDED.updated_at,
			required_stake = COALESCE(EXCLUDED.required_stake, rooms.required_stake),
			bet_type       = COALESCE(EXCLUDED.bet_type, rooms.bet_type),
			winner         = COALESCE(EXCLUDED.winner, rooms.winner),
			closed_at      = COALESCE(EXCLUDED.closed_at, rooms.closed_at)
	`, ev.RoomID, sum.Status, sum.Stake, sum.Bet, sum.Winner, at, sum.closedAt(at))
	return err
}

// roomSummary is the change an event makes to its room row.
type roomSummary struct {
	Status string
	Stake  *string
	Bet    *string
	Winner *string
	Closed bool
}

func (s roomSummary) closedAt(at time.Time) *time.Time {
	if !s.Closed {
		return nil
	}
	return &at
}

// summarize maps an event to the room status it leaves behind. Events that do
// not move the room (settlement reports) return false.
func summarize(ev models.RoomEvent) (roomSummary, bool) {
	sum := roomSummary{
		Stake:  payloadString(ev.Payload, "stake"),
		Bet:    payloadString(ev.Payload, "bet"),
		Winner: payloadString(ev.Payload, "winner"),
		Closed: ev.Type.Closes(),
	}
	switch ev.Type {
	case models.EventRoomCreated, models.EventHandshakeRejected, models.EventGuestDisconnected:
		sum.Status = "waiting"
	case models.EventGuestJoined:
		sum.Status = "handshaking"
	case models.EventHandshakeAccepted:
		sum.Status = "accepted"
	case models.EventTournamentStarted:
		sum.Status = "tournament"
	case models.EventTournamentResult:
		sum.Status = "completed"
	case models.EventHostDisconnected:
		sum.Status = "closed"
	case models.EventRoomExpired:
		sum.Status = "expired"
	default:
		return roomSummary{}, false
	}
	return sum, true
}

func payloadString(p map[string]interface{}, key string) *string {
	v, ok := p[key].(string)
	if !ok || v == "" {
		return nil
	}
	return &v
}
